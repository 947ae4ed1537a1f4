package triage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Metadata is an insertion-ordered string to string mapping holding fields
// extracted ad hoc from a message (deadline, interviewer, date ...).
// Keys and values are always valid UTF-8: Set replaces each invalid byte with
// U+FFFD, the same substitution JSON encoding makes, so Encode and
// DecodeMetadata round-trip exactly.
// The zero value is an empty mapping ready to use.
type Metadata struct {
	keys   []string
	values map[string]string
}

func NewMetadata() Metadata {
	return Metadata{values: make(map[string]string)}
}

// MetadataFromMap copies m. Key order follows the map iteration order.
func MetadataFromMap(m map[string]string) Metadata {
	md := NewMetadata()
	for k, v := range m {
		md.Set(k, v)
	}
	return md
}

// Set stores value under key. Setting an existing key keeps its position.
func (m *Metadata) Set(key, value string) {
	key, value = validUTF8(key), validUTF8(value)
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m Metadata) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m Metadata) Len() int {
	return len(m.keys)
}

func (m Metadata) Keys() []string {
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

func (m Metadata) Map() map[string]string {
	out := make(map[string]string, len(m.keys))
	for _, k := range m.keys {
		out[k] = m.values[k]
	}
	return out
}

// Clone returns a copy that shares no state with m.
func (m Metadata) Clone() Metadata {
	c := Metadata{values: make(map[string]string, len(m.values))}
	if len(m.keys) > 0 {
		c.keys = m.Keys()
	}
	for k, v := range m.values {
		c.values[k] = v
	}
	return c
}

// Encode returns the canonical storage form: a JSON object in insertion order.
func (m Metadata) Encode() (string, error) {
	b, err := m.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeMetadata parses the output of Encode. An empty string decodes to an
// empty mapping.
func DecodeMetadata(s string) (Metadata, error) {
	md := NewMetadata()
	if s == "" {
		return md, nil
	}
	if err := md.UnmarshalJSON([]byte(s)); err != nil {
		return Metadata{}, err
	}
	return md, nil
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts any JSON object. Non-string values are flattened:
// numbers and booleans to their literal text, arrays and objects to their
// compact JSON, null to the empty string.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = NewMetadata()
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata must be a JSON object")
	}

	out := NewMetadata()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("metadata key must be a string, got %T", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("metadata value for %q: %w", key, err)
		}
		value, err := flattenValue(raw)
		if err != nil {
			return fmt.Errorf("metadata value for %q: %w", key, err)
		}
		out.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*m = out
	return nil
}

func flattenValue(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case 'n':
		return "", nil
	case 't', 'f':
		b, err := strconv.ParseBool(string(trimmed))
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		return string(trimmed), nil
	}
}

func validUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}
