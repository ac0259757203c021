package scanning

import (
	"encoding/json"
	"strings"
)

// RawExtraction is the decoded shape of a model response: either a parsed
// field mapping or the untouched text when no payload could be located.
type RawExtraction interface {
	rawExtraction()
}

// ParsedPayload holds the field mapping found inside the response.
type ParsedPayload struct {
	Fields map[string]any
}

// Unparseable holds the original response text when decoding failed.
type Unparseable struct {
	Text string
}

func (*ParsedPayload) rawExtraction() {}
func (*Unparseable) rawExtraction()   {}

// DecodePayload locates and parses the JSON object embedded in free text.
// Models fence the payload inconsistently: a labeled code block, a bare code
// block, or no fence at all. Never returns an error; a response with no
// usable payload comes back as Unparseable.
func DecodePayload(text string) RawExtraction {
	candidate := unfence(text)

	// Trim any prose around the object itself.
	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start == -1 || end < start {
		return &Unparseable{Text: text}
	}
	candidate = candidate[start : end+1]

	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return &Unparseable{Text: text}
	}
	return &ParsedPayload{Fields: fields}
}

// unfence extracts the contents of a markdown code block when one is present,
// preferring a ```json-labeled block over a bare one.
func unfence(text string) string {
	text = strings.TrimSpace(text)

	for _, marker := range []string{"```json", "```"} {
		start := strings.Index(text, marker)
		if start == -1 {
			continue
		}
		inner := text[start+len(marker):]
		if end := strings.Index(inner, "```"); end != -1 {
			inner = inner[:end]
		}
		return strings.TrimSpace(inner)
	}
	return text
}
