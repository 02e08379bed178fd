// Package prompt builds the translation prompts sent to the LLM.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/auto-migrate/internal/lang"
	"github.com/ziadkadry99/auto-migrate/internal/llm"
	"github.com/ziadkadry99/auto-migrate/internal/store"
)

// DefaultMinAnalyticsChars is the smallest acceptable analytics schema.
const DefaultMinAnalyticsChars = 15000

const systemPrompt = `You are a senior software engineer migrating production code between languages and frameworks. Translate faithfully. Never summarize code instead of translating it and never invent behaviour that is not in the source.`

// invariants apply to every pair.
var invariants = []string{
	"Preserve the structure of the source: same modules, classes, functions and their order.",
	"Preserve identifiers. Rename only where the target language requires it.",
	"Do not drop classes, methods, functions, exports or comments that document behaviour.",
	"Return the complete translated code in the migratedCode field as a plain string. Do not put JSON inside migratedCode.",
}

// AnalyticsChecklist lists what an analytics schema must contain.
var AnalyticsChecklist = []string{
	"Dimension tables (dim_*) for every descriptive entity",
	"Fact tables (fact_*) for events and measures, referencing the dimensions",
	"Materialized views for the aggregations the index served",
	"Functions (CREATE FUNCTION) for refresh and lookup logic",
	"Triggers (CREATE TRIGGER) keeping derived columns current",
	"Indexes for every foreign key and filter column",
	"Partitioning (PARTITION BY RANGE on the time column) for fact tables",
}

// Composer renders prompts. It holds no per-request state.
type Composer struct {
	minAnalyticsChars int
}

// NewComposer creates a Composer. A non-positive minAnalyticsChars uses
// DefaultMinAnalyticsChars.
func NewComposer(minAnalyticsChars int) *Composer {
	if minAnalyticsChars <= 0 {
		minAnalyticsChars = DefaultMinAnalyticsChars
	}
	return &Composer{minAnalyticsChars: minAnalyticsChars}
}

// Command builds the canonical instruction for a pair.
func Command(pair lang.Pair) string {
	return fmt.Sprintf("Convert the following code from %s to %s.", pair.Source, pair.Target)
}

// AllowsRawCode reports whether the model may answer with bare code instead
// of the JSON object. That holds for JavaScript/TypeScript pairs over JSX.
func AllowsRawCode(pair lang.Pair, chunks []store.StoredChunk) bool {
	return pair.ScriptFamily() && majority(jsxPattern, contents(chunks))
}

// Compose renders the user prompt for command over chunks. The output only
// depends on its inputs.
func (c *Composer) Compose(command string, chunks []store.StoredChunk, pair lang.Pair) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Translate code from %s to %s.\n", pair.Source, pair.Target)
	if command = strings.TrimSpace(command); command != "" {
		fmt.Fprintf(&sb, "Request: %s\n", command)
	}

	sb.WriteString("\n## Source context\n\n")
	for i, ch := range chunks {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		language := ch.Metadata.Language
		if language == "" {
			language = pair.Source
		}
		fmt.Fprintf(&sb, "File: %s | Type: %s | Language: %s | Content:\n%s\n", ch.FilePath, ch.Kind, language, ch.Content)
	}

	sb.WriteString("\n## Rules you must follow\n\n")
	for _, rule := range invariants {
		fmt.Fprintf(&sb, "- %s\n", rule)
	}
	if pair.ScriptFamily() {
		sb.WriteString("- Keep JSX as JSX. Never rewrite JSX into React.createElement calls.\n")
	}

	if r := selectRecipe(pair, contents(chunks)); r != nil {
		fmt.Fprintf(&sb, "\n## %s rules\n\n", pair)
		for _, rule := range r.Rules {
			fmt.Fprintf(&sb, "- %s\n", rule)
		}
	}

	if pair.Analytics() {
		fmt.Fprintf(&sb, "\n## Required schema\n\nThe output must be a complete analytics schema of at least %d characters. It must contain:\n", c.minAnalyticsChars)
		for i, item := range AnalyticsChecklist {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, item)
		}
		sb.WriteString("A single denormalized table is not acceptable.\n")
	}

	sb.WriteString("\n## Response format\n\n")
	sb.WriteString(responseSchema)
	if AllowsRawCode(pair, chunks) {
		sb.WriteString("\nFor this conversion you may instead reply with only the translated code in a single fenced code block.\n")
	}
	return sb.String()
}

// Messages wraps Compose into the system and user messages of a request.
func (c *Composer) Messages(command string, chunks []store.StoredChunk, pair lang.Pair) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: c.Compose(command, chunks, pair)},
	}
}

const responseSchema = `Return a JSON object with exactly these fields:

{
  "migratedCode": "the complete translated file",
  "summary": "one or two sentences describing the translation",
  "changes": ["each notable change"],
  "files": [{"filename": "source file name", "migratedFilename": "target file name", "content": "translated content"}],
  "warnings": ["anything that needs manual review"],
  "recommendations": ["follow-up improvements"]
}

Omit empty arrays.
`

func contents(chunks []store.StoredChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}
