package chunker

import "regexp"

// MaxComplexity caps the complexity score.
const MaxComplexity = 100

// Analyze derives the read-only metadata for a chunk. The embedding fields
// are filled in later by the embedder.
func Analyze(c Chunk) Metadata {
	lang := LanguageFor(c.Extension)
	return Metadata{
		Language:     lang.Name,
		Complexity:   complexity(c),
		Dependencies: matchAll(lang.importRegexp, c.Content),
		Exports:      matchAll(lang.exportRegexp, c.Content),
	}
}

// complexity is one point per ten lines, at least one, capped.
func complexity(c Chunk) int {
	n := c.Lines()/10 + 1
	if n > MaxComplexity {
		return MaxComplexity
	}
	return n
}

// matchAll collects the first capture of every match, deduplicated.
func matchAll(res []*regexp.Regexp, content string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, re := range res {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			if len(m) < 2 || m[1] == "" || seen[m[1]] {
				continue
			}
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
