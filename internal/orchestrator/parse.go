package orchestrator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ziadkadry99/auto-migrate/internal/assemble"
)

// Parsed is a model response in structured form. Raw is set when the
// response carried bare code instead of the JSON object.
type Parsed struct {
	MigratedCode    string          `json:"migratedCode"`
	Summary         string          `json:"summary"`
	Changes         stringList      `json:"changes"`
	Files           []assemble.File `json:"files"`
	Warnings        stringList      `json:"warnings"`
	Recommendations stringList      `json:"recommendations"`
	Raw             bool            `json:"-"`
}

// Code returns the translated code, preferring migratedCode over the first
// entry of files.
func (p Parsed) Code() string {
	if strings.TrimSpace(p.MigratedCode) != "" {
		return p.MigratedCode
	}
	for _, f := range p.Files {
		if strings.TrimSpace(f.Content) != "" {
			return f.Content
		}
	}
	return ""
}

var (
	fencedJSON  = regexp.MustCompile("(?s)```json\\s*\\n?(.*?)```")
	fencedBlock = regexp.MustCompile("(?s)```[A-Za-z0-9_+#.-]*[ \\t]*\\n(.*?)```")
)

// ParseResponse decodes a model response. It tries, in order: the first
// fenced json block, a JSON string wrapping a fenced json block, the whole
// text as JSON, the first fenced code block, and finally the whole text.
func ParseResponse(text string) Parsed {
	p, ok := parseStructured(text, true)
	if !ok {
		p = parseRaw(text)
	}
	p.MigratedCode = decodeEscapes(p.MigratedCode)
	for i := range p.Files {
		p.Files[i].Content = decodeEscapes(p.Files[i].Content)
	}
	p.unwrapNested()
	return p
}

func parseStructured(text string, allowDoubleEncoded bool) (Parsed, bool) {
	trimmed := strings.TrimSpace(text)

	if m := fencedJSON.FindStringSubmatch(trimmed); m != nil {
		if p, ok := decodeObject(m[1]); ok {
			return p, true
		}
	}

	if allowDoubleEncoded && strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err == nil {
			inner = strings.TrimSpace(inner)
			if strings.HasPrefix(inner, "```json") || strings.HasPrefix(inner, "{") {
				if p, ok := parseStructured(inner, false); ok {
					return p, true
				}
			}
		}
	}

	if p, ok := decodeObject(trimmed); ok {
		return p, true
	}
	return Parsed{}, false
}

func parseRaw(text string) Parsed {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return Parsed{MigratedCode: strings.TrimRight(m[1], "\n"), Raw: true}
	}
	return Parsed{MigratedCode: strings.TrimSpace(text), Raw: true}
}

// decodeObject accepts only objects that carry code somewhere.
func decodeObject(s string) (Parsed, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return Parsed{}, false
	}
	var p Parsed
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return Parsed{}, false
	}
	if p.Code() == "" && p.Summary == "" {
		return Parsed{}, false
	}
	return p, true
}

// unwrapNested replaces migratedCode with the migratedCode of a JSON object
// it contains. It unwraps one level only.
func (p *Parsed) unwrapNested() {
	inner, ok := decodeObject(p.MigratedCode)
	if !ok || inner.MigratedCode == "" {
		return
	}
	p.MigratedCode = decodeEscapes(inner.MigratedCode)
	if p.Summary == "" {
		p.Summary = inner.Summary
	}
	if len(p.Changes) == 0 {
		p.Changes = inner.Changes
	}
	p.Raw = false
}

// decodeEscapes turns literal \n and \r\n sequences into newlines when the
// code has no real line breaks, which is how double-escaped output looks.
func decodeEscapes(s string) string {
	if strings.Contains(s, "\n") || !strings.Contains(s, `\n`) {
		return s
	}
	s = strings.ReplaceAll(s, `\r\n`, "\n")
	return strings.ReplaceAll(s, `\n`, "\n")
}

// stringList decodes a JSON array of strings, tolerating objects and other
// values that models sometimes put in place of plain strings.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var plain []string
	if err := json.Unmarshal(data, &plain); err == nil {
		*l = plain
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*l = []string{single}
		}
		return nil
	}
	var mixed []json.RawMessage
	if err := json.Unmarshal(data, &mixed); err != nil {
		return fmt.Errorf("expected a list: %w", err)
	}
	out := make([]string, 0, len(mixed))
	for _, item := range mixed {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
			continue
		}
		var obj map[string]any
		if json.Unmarshal(item, &obj) == nil {
			if d, ok := obj["description"].(string); ok {
				out = append(out, d)
				continue
			}
		}
		out = append(out, string(item))
	}
	*l = out
	return nil
}
