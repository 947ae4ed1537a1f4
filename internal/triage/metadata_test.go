package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]string
	}{
		{name: "empty", in: map[string]string{}},
		{name: "single", in: map[string]string{"Deadline": "Friday"}},
		{
			name: "interview fields",
			in: map[string]string{
				"Date":        "2024-05-01",
				"Time":        "10:00",
				"Interviewer": "Jane \"JD\" Doe",
				"Topics":      "system design, go",
			},
		},
		{name: "unicode and empty values", in: map[string]string{"Ort": "Zürich", "": "", "emoji": "🚀"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := MetadataFromMap(tt.in).Encode()
			require.NoError(t, err)

			decoded, err := DecodeMetadata(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.in, decoded.Map())
		})
	}
}

func TestMetadata_InvalidUTF8IsReplacedOnSet(t *testing.T) {
	md := MetadataFromMap(map[string]string{"raw": "\xff\xfe", "mixed\xc3": "a\xffb"})

	v, ok := md.Get("raw")
	require.True(t, ok)
	assert.Equal(t, "\uFFFD\uFFFD", v)
	v, ok = md.Get("mixed\uFFFD")
	require.True(t, ok)
	assert.Equal(t, "a\uFFFDb", v)

	encoded, err := md.Encode()
	require.NoError(t, err)
	decoded, err := DecodeMetadata(encoded)
	require.NoError(t, err)
	assert.Equal(t, md.Map(), decoded.Map())
}

func TestMetadata_EncodeKeepsInsertionOrder(t *testing.T) {
	md := NewMetadata()
	md.Set("b", "2")
	md.Set("a", "1")
	md.Set("b", "3")

	encoded, err := md.Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"b":"3","a":"1"}`, encoded)
	assert.Equal(t, []string{"b", "a"}, md.Keys())
}

func TestMetadata_ZeroValueEncodesEmptyObject(t *testing.T) {
	var md Metadata
	encoded, err := md.Encode()
	require.NoError(t, err)
	assert.Equal(t, "{}", encoded)

	md.Set("k", "v")
	v, ok := md.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestMetadata_UnmarshalFlattensNonStrings(t *testing.T) {
	var md Metadata
	err := md.UnmarshalJSON([]byte(`{"Rounds": 3, "Remote": true, "Panel": ["a","b"], "Extra": {"x": 1}, "None": null}`))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Rounds": "3",
		"Remote": "true",
		"Panel":  `["a","b"]`,
		"Extra":  `{"x":1}`,
		"None":   "",
	}, md.Map())
	assert.Equal(t, []string{"Rounds", "Remote", "Panel", "Extra", "None"}, md.Keys())
}

func TestMetadata_UnmarshalRejectsNonObject(t *testing.T) {
	_, err := DecodeMetadata(`["not", "an", "object"]`)
	assert.Error(t, err)
}

func TestDecodeMetadata_Empty(t *testing.T) {
	md, err := DecodeMetadata("")
	require.NoError(t, err)
	assert.Equal(t, 0, md.Len())
}

func TestMetadata_CloneIsIndependent(t *testing.T) {
	md := NewMetadata()
	md.Set("a", "1")
	c := md.Clone()
	c.Set("a", "2")
	c.Set("b", "3")

	v, _ := md.Get("a")
	assert.Equal(t, "1", v)
	assert.Equal(t, 1, md.Len())
}

func TestTruncateBody(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		limit int
		want  string
	}{
		{name: "shorter than limit", body: "hello", limit: 10, want: "hello"},
		{name: "exact limit", body: "hello", limit: 5, want: "hello"},
		{name: "truncated", body: "hello world", limit: 5, want: "hello"},
		{name: "multibyte runes", body: "äöüß", limit: 2, want: "äö"},
		{name: "no limit", body: "hello", limit: 0, want: "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateBody(tt.body, tt.limit))
		})
	}
}

func TestTruncateBody_Deterministic(t *testing.T) {
	body := make([]rune, BodyLimit+250)
	for i := range body {
		body[i] = rune('a' + i%26)
	}
	first := TruncateBody(string(body), BodyLimit)
	second := TruncateBody(string(body), BodyLimit)

	assert.Equal(t, first, second)
	assert.Len(t, []rune(first), BodyLimit)
	assert.Equal(t, string(body[:BodyLimit]), first)
}

func TestPipelineContext_StagesReturnNewValues(t *testing.T) {
	msg := RawMessage{Subject: "s", Sender: "a@b", Source: "gmail"}
	start := NewPipelineContext(msg)

	classified := start.WithClassification(Fallback("s"))
	routed := classified.WithDecision(DecisionStoreOnly)
	stored := routed.WithRecordID(7)

	assert.Equal(t, StageStart, start.Stage)
	assert.False(t, start.Classified())
	assert.True(t, classified.Classified())
	assert.Equal(t, Decision(""), classified.Decision)
	assert.Equal(t, DecisionStoreOnly, routed.Decision)
	assert.Equal(t, RecordID(0), routed.RecordID)
	assert.Equal(t, RecordID(7), stored.RecordID)
	assert.Equal(t, StageCompleted, stored.Done().Stage)
}
