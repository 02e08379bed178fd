package chunker

import "errors"

// Kind classifies what a chunk contains.
type Kind string

const (
	KindFunction  Kind = "function"
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindEnum      Kind = "enum"
	KindVariable  Kind = "variable"
	KindImport    Kind = "import"
	KindExport    Kind = "export"
	KindFile      Kind = "file"
	KindScript    Kind = "script"
	KindTemplate  Kind = "template"
	KindStyle     Kind = "style"
	KindFramework Kind = "framework-construct"
	KindOther     Kind = "other"
)

const (
	// AnonymousName is used when no identifier can be extracted.
	AnonymousName = "anonymous"
	// UnknownConstructName names framework constructs without a readable name.
	UnknownConstructName = "UnknownConstruct"
)

// SmallFileLines is the line count below which a file becomes a single chunk.
const SmallFileLines = 500

// ErrParse is returned when a grammar fails to produce a usable tree.
var ErrParse = errors.New("parse failed")

// Chunk is a contiguous span of a source file.
type Chunk struct {
	FilePath  string `json:"file_path"`
	FileName  string `json:"file_name"`
	Extension string `json:"extension"`
	Kind      Kind   `json:"kind"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	NodeType  string `json:"node_type,omitempty"`
}

// Lines returns the number of lines the chunk spans.
func (c Chunk) Lines() int {
	return c.EndLine - c.StartLine + 1
}

// Metadata is derived from a chunk once and never changed afterwards.
type Metadata struct {
	Language          string   `json:"language"`
	Complexity        int      `json:"complexity"`
	Dependencies      []string `json:"dependencies"`
	Exports           []string `json:"exports"`
	EmbeddingProvider string   `json:"embedding_provider"`
	Fallback          bool     `json:"fallback,omitempty"`
}
