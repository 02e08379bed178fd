// Package lang names the languages a translation pair can refer to.
package lang

import (
	"path/filepath"
	"slices"
	"strings"
)

// Category groups languages whose translations need extra checks.
type Category string

const (
	CategoryCode        Category = "code"
	CategorySearchIndex Category = "search-index"
	CategoryRelational  Category = "relational"
	CategoryMarkup      Category = "markup"
)

// Language is one translatable language. The first extension is the one
// generated files receive.
type Language struct {
	ID         string
	Aliases    []string
	Extensions []string
	Category   Category
	// Comment starts a line comment in the language, if it has one.
	Comment string
}

var languages = []Language{
	{ID: "typescript", Aliases: []string{"ts", "tsx", "react-ts", "angular", "angular-ts"}, Extensions: []string{".ts", ".tsx", ".mts", ".cts"}, Category: CategoryCode, Comment: "//"},
	{ID: "javascript", Aliases: []string{"js", "jsx", "react", "node", "express", "angularjs", "angularjs-js", "jquery"}, Extensions: []string{".js", ".jsx", ".mjs", ".cjs"}, Category: CategoryCode, Comment: "//"},
	{ID: "python2", Aliases: []string{"py2", "python 2", "python-2"}, Extensions: []string{".py"}, Category: CategoryCode, Comment: "#"},
	{ID: "python3", Aliases: []string{"py3", "python 3", "python-3"}, Extensions: []string{".py"}, Category: CategoryCode, Comment: "#"},
	{ID: "python", Aliases: []string{"py", "django", "flask"}, Extensions: []string{".py", ".pyi"}, Category: CategoryCode, Comment: "#"},
	{ID: "java", Aliases: []string{"spring"}, Extensions: []string{".java"}, Category: CategoryCode, Comment: "//"},
	{ID: "kotlin", Aliases: []string{"kt"}, Extensions: []string{".kt", ".kts"}, Category: CategoryCode, Comment: "//"},
	{ID: "scala", Extensions: []string{".scala"}, Category: CategoryCode, Comment: "//"},
	{ID: "csharp", Aliases: []string{"c#", "cs", "aspnet", "dotnet"}, Extensions: []string{".cs"}, Category: CategoryCode, Comment: "//"},
	{ID: "go", Aliases: []string{"golang"}, Extensions: []string{".go"}, Category: CategoryCode, Comment: "//"},
	{ID: "rust", Aliases: []string{"rs"}, Extensions: []string{".rs"}, Category: CategoryCode, Comment: "//"},
	{ID: "c", Extensions: []string{".c", ".h"}, Category: CategoryCode, Comment: "//"},
	{ID: "cpp", Aliases: []string{"c++"}, Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh"}, Category: CategoryCode, Comment: "//"},
	{ID: "ruby", Aliases: []string{"rb"}, Extensions: []string{".rb"}, Category: CategoryCode, Comment: "#"},
	{ID: "php", Extensions: []string{".php"}, Category: CategoryCode, Comment: "//"},
	{ID: "swift", Extensions: []string{".swift"}, Category: CategoryCode, Comment: "//"},
	{ID: "dart", Extensions: []string{".dart"}, Category: CategoryCode, Comment: "//"},
	{ID: "vue", Extensions: []string{".vue"}, Category: CategoryCode},
	{ID: "svelte", Extensions: []string{".svelte"}, Category: CategoryCode},
	{ID: "graphql", Aliases: []string{"gql"}, Extensions: []string{".graphql", ".gql"}, Category: CategoryCode, Comment: "#"},
	{ID: "postgresql", Aliases: []string{"postgres", "pg", "psql"}, Extensions: []string{".sql"}, Category: CategoryRelational, Comment: "--"},
	{ID: "mysql", Aliases: []string{"mariadb"}, Extensions: []string{".sql"}, Category: CategoryRelational, Comment: "--"},
	{ID: "sql", Aliases: []string{"sqlite", "tsql", "t-sql"}, Extensions: []string{".sql"}, Category: CategoryRelational, Comment: "--"},
	{ID: "elasticsearch", Aliases: []string{"es", "opensearch"}, Extensions: []string{".json"}, Category: CategorySearchIndex},
	{ID: "html", Aliases: []string{"htm"}, Extensions: []string{".html", ".htm"}, Category: CategoryMarkup},
	{ID: "css", Aliases: []string{"scss", "sass", "less"}, Extensions: []string{".css", ".scss", ".sass", ".less"}, Category: CategoryMarkup},
	{ID: "json", Extensions: []string{".json"}, Category: CategoryMarkup},
	{ID: "yaml", Aliases: []string{"yml"}, Extensions: []string{".yaml", ".yml"}, Category: CategoryMarkup, Comment: "#"},
}

var byName = func() map[string]*Language {
	m := make(map[string]*Language)
	for i := range languages {
		l := &languages[i]
		m[l.ID] = l
		for _, a := range l.Aliases {
			m[a] = l
		}
	}
	return m
}()

// Lookup finds a language by id or alias, ignoring case and surrounding space.
func Lookup(name string) (*Language, bool) {
	l, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return l, ok
}

// Normalize returns the canonical id for name, or name lower-cased when it
// is not a known language.
func Normalize(name string) string {
	if l, ok := Lookup(name); ok {
		return l.ID
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// Accepts reports whether a file with the given path is written in the
// language. Unknown languages accept nothing.
func Accepts(id, path string) bool {
	l, ok := Lookup(id)
	if !ok {
		return false
	}
	return slices.Contains(l.Extensions, strings.ToLower(filepath.Ext(path)))
}

// Extension returns the canonical output extension for a language, or "".
func Extension(id string) string {
	if l, ok := Lookup(id); ok && len(l.Extensions) > 0 {
		return l.Extensions[0]
	}
	return ""
}

// Pair is a normalized (source, target) translation direction.
type Pair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// NewPair normalizes both sides.
func NewPair(source, target string) Pair {
	return Pair{Source: Normalize(source), Target: Normalize(target)}
}

func (p Pair) String() string {
	return p.Source + "->" + p.Target
}

// Analytics reports whether the pair turns a search index into a relational
// schema, which is held to a structural checklist.
func (p Pair) Analytics() bool {
	return category(p.Source) == CategorySearchIndex && category(p.Target) == CategoryRelational
}

// ScriptFamily reports whether both sides are JavaScript or TypeScript.
func (p Pair) ScriptFamily() bool {
	return isScript(p.Source) && isScript(p.Target)
}

func isScript(id string) bool {
	return id == "javascript" || id == "typescript"
}

func category(id string) Category {
	if l, ok := Lookup(id); ok {
		return l.Category
	}
	return ""
}
