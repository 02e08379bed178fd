package chunker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"regexp"
	"strings"
)

// Chunker splits source files into semantic chunks.
type Chunker struct {
	logger *slog.Logger
}

// New creates a Chunker. A nil logger discards parse diagnostics.
func New(logger *slog.Logger) *Chunker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Chunker{logger: logger}
}

// Chunk reads filePath and splits it. relativePath is recorded on every
// chunk; extension selects the language record and may be empty, in which
// case it is taken from relativePath.
func (c *Chunker) Chunk(ctx context.Context, filePath, relativePath, extension string) ([]Chunk, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filePath, err)
	}
	return c.ChunkContent(ctx, relativePath, extension, string(data)), nil
}

// ChunkContent splits in-memory content. It never fails: parse errors fall
// through to the line-based and HTML paths, and a non-empty file that no
// path can split comes back as a single file chunk.
func (c *Chunker) ChunkContent(ctx context.Context, relativePath, extension, content string) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if extension == "" {
		extension = extOf(relativePath)
	}
	extension = normalizeExt(extension)

	f := newSource(relativePath, extension, content)
	if len(f.lines) < SmallFileLines {
		return []Chunk{f.span(KindFile, f.name, 1, len(f.lines), "")}
	}

	lang := LanguageFor(extension)

	if lang.HasGrammar() {
		chunks, err := walkAST(ctx, lang, f)
		switch {
		case err != nil:
			c.logger.Debug("ast parse failed, using line fallback", "file", relativePath, "error", err)
		case len(chunks) > 0:
			return chunks
		}
	}

	var chunks []Chunk
	if lang.html {
		chunks = splitHTML(f)
	} else {
		chunks = splitLines(lang, f)
	}
	if len(chunks) > 0 {
		return chunks
	}
	return []Chunk{f.span(KindFile, f.name, 1, len(f.lines), "")}
}

// source is a file split into lines for span extraction.
type source struct {
	relPath string
	name    string
	ext     string
	raw     []byte
	lines   []string
}

func newSource(relPath, ext, content string) *source {
	relPath = strings.ReplaceAll(relPath, "\\", "/")
	lines := strings.Split(content, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return &source{
		relPath: relPath,
		name:    path.Base(relPath),
		ext:     ext,
		raw:     []byte(content),
		lines:   lines,
	}
}

// span builds a chunk covering lines start..end (1-based, inclusive).
func (s *source) span(kind Kind, name string, start, end int, nodeType string) Chunk {
	if start < 1 {
		start = 1
	}
	if end > len(s.lines) {
		end = len(s.lines)
	}
	if end < start {
		end = start
	}
	if name == "" {
		name = AnonymousName
	}
	return Chunk{
		FilePath:  s.relPath,
		FileName:  s.name,
		Extension: s.ext,
		Kind:      kind,
		Name:      name,
		Content:   strings.Join(s.lines[start-1:end], "\n"),
		StartLine: start,
		EndLine:   end,
		NodeType:  nodeType,
	}
}

var signatureKeywords = map[string]bool{
	"export": true, "default": true, "async": true, "function": true, "class": true,
	"def": true, "const": true, "let": true, "var": true, "public": true, "private": true,
	"protected": true, "internal": true, "static": true, "abstract": true, "final": true,
	"interface": true, "enum": true, "struct": true, "void": true, "import": true,
	"from": true, "using": true, "declare": true, "readonly": true, "override": true,
	"virtual": true, "inline": true, "extern": true, "unsigned": true, "signed": true,
	"int": true, "char": true, "long": true, "short": true, "float": true, "double": true,
	"bool": true, "type": true, "new": true, "sealed": true, "partial": true,
	"return": true,
}

var identRe = regexp.MustCompile(`[A-Za-z_$][\w$]*`)

// signatureName returns the first identifier on line that is not a keyword.
func signatureName(line string) string {
	for _, id := range identRe.FindAllString(line, -1) {
		if !signatureKeywords[id] {
			return id
		}
	}
	return ""
}

// errNoTree is wrapped into ErrParse when a grammar yields nothing.
var errNoTree = errors.New("grammar returned no tree")
