package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"triage/internal/triage"
)

// StripCodeFences removes markdown code fence markers that models like to
// wrap JSON in.
func StripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ParseResponse decodes a raw model response into a fully populated
// ClassificationResult. Each field is read on its own: one that is absent or
// of the wrong JSON type takes its default and the rest are kept. Only a body
// that is not a JSON object yields a KindMalformed error.
func ParseResponse(raw, subject string) (triage.ClassificationResult, error) {
	content := StripCodeFences(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		// Some models surround the object with prose.
		start, end := strings.Index(content, "{"), strings.LastIndex(content, "}")
		if start < 0 || end <= start {
			return triage.ClassificationResult{}, NewError(KindMalformed, fmt.Errorf("decode response: %w", err))
		}
		fields = nil
		if err2 := json.Unmarshal([]byte(content[start:end+1]), &fields); err2 != nil {
			return triage.ClassificationResult{}, NewError(KindMalformed, fmt.Errorf("decode response: %w", err2))
		}
	}
	if fields == nil {
		return triage.ClassificationResult{}, NewError(KindMalformed, fmt.Errorf("decode response: not a JSON object"))
	}

	result := triage.ClassificationResult{
		Summary:  subject,
		Category: triage.CategoryInfo,
		Priority: triage.PriorityMedium,
		Metadata: triage.NewMetadata(),
	}

	if s, ok := stringField(fields, "summary"); ok && s != "" {
		result.Summary = s
	}

	if s, ok := stringField(fields, "category"); ok {
		if c := triage.Category(strings.ToLower(s)); c.Valid() {
			result.Category = c
		}
	}

	if s, ok := stringField(fields, "priority"); ok && s != "" {
		result.Priority = triage.Priority(strings.ToLower(s))
	}

	if s, ok := stringField(fields, "action_required"); ok && s != "" {
		result.ActionRequired = &s
	}

	if rawMD, ok := fields["dynamic_metadata"]; ok {
		var md triage.Metadata
		if err := json.Unmarshal(rawMD, &md); err == nil {
			result.Metadata = md.Clone()
		}
	}

	return result, nil
}

// stringField returns the trimmed string under key. ok is false when the key
// is missing or holds anything other than a JSON string.
func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}
