package chunker

import (
	"regexp"
	"strings"
)

var (
	sectionOpenRe = regexp.MustCompile(`(?i)<(script|template|style)\b([^>]*)>`)
	idAttrRe      = regexp.MustCompile(`(?i)\bid\s*=\s*["']([^"']+)["']`)
	constructRe   = regexp.MustCompile(`\.\s*(controller|service|directive|factory|filter|component)\s*\(\s*(?:['"]([^'"]+)['"])?`)
)

var sectionKinds = map[string]Kind{
	"script":   KindScript,
	"template": KindTemplate,
	"style":    KindStyle,
}

// splitHTML partitions a page into its top-level script, template and style
// sections; scripts are further split at framework construct openings.
func splitHTML(f *source) []Chunk {
	var chunks []Chunk
	for i := 0; i < len(f.lines); i++ {
		m := sectionOpenRe.FindStringSubmatch(f.lines[i])
		if m == nil {
			continue
		}
		tag := strings.ToLower(m[1])
		start := i + 1
		end := findClose(f.lines, i, tag)

		name := tag
		if id := idAttrRe.FindStringSubmatch(m[2]); id != nil {
			name = id[1]
		}

		if tag == "script" {
			chunks = append(chunks, splitScript(f, start, end, name)...)
		} else {
			chunks = append(chunks, f.span(sectionKinds[tag], name, start, end, tag))
		}
		i = end - 1
	}
	return chunks
}

// findClose returns the 1-based line holding the closing tag, or the last
// line when the section never closes.
func findClose(lines []string, from int, tag string) int {
	closer := "</" + tag
	for j := from; j < len(lines); j++ {
		lower := strings.ToLower(lines[j])
		if j == from {
			// Only count a closer that follows the opener on the same line.
			idx := strings.Index(lower, "<"+tag)
			if strings.Contains(lower[idx+1:], closer) {
				return j + 1
			}
			continue
		}
		if strings.Contains(lower, closer) {
			return j + 1
		}
	}
	return len(lines)
}

// splitScript emits construct chunks for each framework registration in a
// script section, with any leading code as a plain script chunk.
func splitScript(f *source, start, end int, name string) []Chunk {
	type opening struct {
		line int
		name string
	}
	var opens []opening
	for ln := start; ln <= end; ln++ {
		m := constructRe.FindStringSubmatch(f.lines[ln-1])
		if m == nil {
			continue
		}
		cname := m[2]
		if cname == "" {
			cname = UnknownConstructName
		}
		opens = append(opens, opening{line: ln, name: cname})
	}

	if len(opens) == 0 {
		return []Chunk{f.span(KindScript, name, start, end, "script")}
	}

	var chunks []Chunk
	if opens[0].line > start && hasCode(f.lines[start-1:opens[0].line-1]) {
		chunks = append(chunks, f.span(KindScript, name, start, opens[0].line-1, "script"))
	}
	for i, o := range opens {
		last := end
		if i+1 < len(opens) {
			last = opens[i+1].line - 1
		}
		chunks = append(chunks, f.span(KindFramework, o.name, o.line, last, "script"))
	}
	return chunks
}

func hasCode(lines []string) bool {
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t != "" && !strings.HasPrefix(strings.ToLower(t), "<script") {
			return true
		}
	}
	return false
}
