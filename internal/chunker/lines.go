package chunker

import "strings"

// construct is a block opened by a recognised line.
type construct struct {
	kind   Kind
	name   string
	start  int
	base   int
	indent int
	opened bool
}

// splitLines is the brace-depth (or indentation) fallback. Only top-level
// constructs are emitted; openings inside an open construct are absorbed.
func splitLines(lang *Language, f *source) []Chunk {
	if lang.indentBased {
		return splitIndented(lang, f)
	}

	var (
		chunks     []Chunk
		cur        *construct
		depth      int
		lastClosed int
	)
	for i, line := range f.lines {
		lineNo := i + 1
		opens, closes := countBraces(line)

		if cur != nil && !cur.opened {
			// A brace-less construct ends where the next one begins.
			if _, _, ok := lang.matchOpening(line); ok {
				chunks = append(chunks, f.span(cur.kind, cur.name, cur.start, lineNo-1, ""))
				lastClosed = lineNo - 1
				cur = nil
			}
		}
		if cur == nil {
			if kind, name, ok := lang.matchOpening(line); ok {
				cur = &construct{kind: kind, name: name, start: lineNo, base: depth}
				if opens == 0 && strings.HasSuffix(strings.TrimSpace(line), ";") {
					chunks = append(chunks, f.span(kind, name, lineNo, lineNo, ""))
					lastClosed = lineNo
					cur = nil
					continue
				}
			}
		}

		depth += opens - closes
		if depth < 0 {
			depth = 0
		}
		if cur == nil {
			continue
		}
		if opens > 0 {
			cur.opened = true
		}
		if cur.opened && depth <= cur.base {
			chunks = append(chunks, f.span(cur.kind, cur.name, cur.start, lineNo, ""))
			lastClosed = lineNo
			cur = nil
		}
	}

	if cur != nil {
		// Unbalanced: everything after the last closed construct.
		chunks = append(chunks, f.span(cur.kind, cur.name, lastClosed+1, len(f.lines), ""))
	}
	return chunks
}

// splitIndented closes a construct at the first non-blank line indented at
// or above the construct's own indentation.
func splitIndented(lang *Language, f *source) []Chunk {
	var (
		chunks   []Chunk
		cur      *construct
		lastBody int
	)
	for i, line := range f.lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		indent := indentOf(line)

		if cur != nil && indent <= cur.indent && !strings.HasPrefix(trimmed, ")") {
			chunks = append(chunks, f.span(cur.kind, cur.name, cur.start, lastBody, ""))
			cur = nil
		}
		if cur == nil {
			if kind, name, ok := lang.matchOpening(line); ok {
				cur = &construct{kind: kind, name: name, start: lineNo, indent: indent}
			}
		}
		lastBody = lineNo
	}
	if cur != nil {
		chunks = append(chunks, f.span(cur.kind, cur.name, cur.start, lastBody, ""))
	}
	return chunks
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

// countBraces counts braces outside string literals and line comments.
// Opening and closing braces on the same line are both counted, so a line
// like "} else {" leaves the depth unchanged.
func countBraces(line string) (opens, closes int) {
	var quote byte
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if quote != 0 {
			if ch == '\\' {
				i++
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'', '`':
			quote = ch
		case '/':
			if i+1 < len(line) && line[i+1] == '/' {
				return opens, closes
			}
		case '{':
			opens++
		case '}':
			closes++
		}
	}
	return opens, closes
}
