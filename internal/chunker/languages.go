package chunker

import (
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// linePattern marks the opening line of a construct for the line-based path.
type linePattern struct {
	re   *regexp.Regexp
	kind Kind
}

// Language describes how one family of source files is chunked. Adding a
// language means adding a record to the registry below.
type Language struct {
	Name       string
	Extensions []string

	// grammar is nil for languages without an AST path.
	grammar func() *sitter.Language
	// nodeKinds maps grammar node types to chunk kinds.
	nodeKinds map[string]Kind
	// topLevelOnly lists node types that only count directly under the root.
	topLevelOnly map[string]bool

	openings     []linePattern
	indentBased  bool
	html         bool
	importRegexp []*regexp.Regexp
	exportRegexp []*regexp.Regexp
}

// HasGrammar reports whether the AST path is available.
func (l *Language) HasGrammar() bool {
	return l.grammar != nil
}

// classify maps a node type onto the taxonomy.
func (l *Language) classify(nodeType string) (Kind, bool) {
	k, ok := l.nodeKinds[nodeType]
	return k, ok
}

// matchOpening returns the construct that starts on line, if any.
func (l *Language) matchOpening(line string) (Kind, string, bool) {
	for _, p := range l.openings {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := ""
		if len(m) > 1 {
			name = m[1]
		}
		if controlKeywords[name] {
			continue
		}
		if name == "" {
			name = signatureName(line)
		}
		return p.kind, name, true
	}
	return "", "", false
}

var controlKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "sizeof": true, "else": true, "do": true, "new": true,
}

var (
	jsImports = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*import\s+(?:[^'"]*?\s+from\s+)?['"]([^'"]+)['"]`),
		regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`),
		regexp.MustCompile(`(?m)^\s*export\s+[^'"]*?\s+from\s+['"]([^'"]+)['"]`),
	}
	jsExports = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*export\s+(?:default\s+)?(?:abstract\s+)?(?:async\s+)?(?:class|function\*?|const|let|var|interface|enum|type)\s+([A-Za-z_$][\w$]*)`),
		regexp.MustCompile(`(?m)^\s*module\.exports\.([A-Za-z_$][\w$]*)\s*=`),
	}
	jsOpenings = []linePattern{
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`), KindClass},
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:declare\s+)?interface\s+([A-Za-z_$][\w$]*)`), KindInterface},
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:declare\s+)?(?:const\s+)?enum\s+([A-Za-z_$][\w$]*)`), KindEnum},
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)?\s*[(<]`), KindFunction},
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:function\b|\([^)]*\)\s*(?::[^=]+)?=>|[A-Za-z_$][\w$]*\s*=>)`), KindFunction},
	}

	pyImports = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*import\s+([\w.]+)`),
		regexp.MustCompile(`(?m)^\s*from\s+([\w.]+)\s+import\b`),
	}
	pyExports = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^(?:async\s+)?def\s+([A-Za-z]\w*)`),
		regexp.MustCompile(`(?m)^class\s+([A-Za-z]\w*)`),
	}
	pyOpenings = []linePattern{
		{regexp.MustCompile(`^\s*class\s+(\w+)`), KindClass},
		{regexp.MustCompile(`^\s*(?:async\s+)?def\s+(\w+)`), KindFunction},
	}

	jvmModifiers = `(?:(?:public|private|protected|internal|static|abstract|final|sealed|partial|readonly|virtual|override|async|synchronized|native|extern|unsafe|new)\s+)`
	javaImports  = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*import\s+(?:static\s+)?([\w.]+(?:\.\*)?)\s*;`),
		regexp.MustCompile(`(?m)^\s*using\s+(?:static\s+)?([\w.]+)\s*;`),
	}
	javaExports = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*public\s+(?:(?:static|abstract|final|sealed|partial)\s+)*(?:class|interface|enum|record|struct)\s+(\w+)`),
	}
	javaOpenings = []linePattern{
		{regexp.MustCompile(`^\s*` + jvmModifiers + `*(?:class|record|struct)\s+(\w+)`), KindClass},
		{regexp.MustCompile(`^\s*` + jvmModifiers + `*interface\s+(\w+)`), KindInterface},
		{regexp.MustCompile(`^\s*` + jvmModifiers + `*enum\s+(\w+)`), KindEnum},
		{regexp.MustCompile(`^\s*` + jvmModifiers + `+[\w<>\[\],.?\s]+?\s+(\w+)\s*\(`), KindFunction},
	}

	cImports = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*#\s*include\s+[<"]([^>"]+)[>"]`),
	}
	cOpenings = []linePattern{
		{regexp.MustCompile(`^\s*(?:template\s*<[^>]*>\s*)?(?:class|struct)\s+(\w+)[^;]*$`), KindClass},
		{regexp.MustCompile(`^\s*(?:[\w:*&<>,]+\s+)+[*&]*(~?\w+(?:::~?\w+)*)\s*\([^;]*$`), KindFunction},
	}

	genericOpenings = []linePattern{
		{regexp.MustCompile(`^\s*(?:(?:pub|public|private|protected|export|abstract|final|open|data|sealed)\s+)*(?:class|struct|trait|object)\s+(\w+)`), KindClass},
		{regexp.MustCompile(`^\s*(?:(?:pub|public|private|protected|export)\s+)*interface\s+(\w+)`), KindInterface},
		{regexp.MustCompile(`^\s*(?:(?:pub|public|private|protected|export)\s+)*enum\s+(\w+)`), KindEnum},
		{regexp.MustCompile(`^\s*(?:(?:pub|public|private|protected|static|async|export|suspend)\s+)*(?:func|fn|function|fun|def)\s+(?:\([^)]*\)\s*)?(\w+)`), KindFunction},
	}
)

var jsNodeKinds = map[string]Kind{
	"class_declaration":              KindClass,
	"abstract_class_declaration":     KindClass,
	"interface_declaration":          KindInterface,
	"enum_declaration":               KindEnum,
	"function_declaration":           KindFunction,
	"generator_function_declaration": KindFunction,
	"method_definition":              KindFunction,
	"lexical_declaration":            KindVariable,
	"variable_declaration":           KindVariable,
	"import_statement":               KindImport,
	"export_statement":               KindExport,
}

var jsTopLevel = map[string]bool{
	"lexical_declaration":  true,
	"variable_declaration": true,
}

var languages = []*Language{
	{
		Name:         "javascript",
		Extensions:   []string{".js", ".jsx", ".mjs", ".cjs"},
		grammar:      javascript.GetLanguage,
		nodeKinds:    jsNodeKinds,
		topLevelOnly: jsTopLevel,
		openings:     jsOpenings,
		importRegexp: jsImports,
		exportRegexp: jsExports,
	},
	{
		Name:         "typescript",
		Extensions:   []string{".ts", ".mts", ".cts"},
		grammar:      typescript.GetLanguage,
		nodeKinds:    jsNodeKinds,
		topLevelOnly: jsTopLevel,
		openings:     jsOpenings,
		importRegexp: jsImports,
		exportRegexp: jsExports,
	},
	{
		Name:         "tsx",
		Extensions:   []string{".tsx"},
		grammar:      tsx.GetLanguage,
		nodeKinds:    jsNodeKinds,
		topLevelOnly: jsTopLevel,
		openings:     jsOpenings,
		importRegexp: jsImports,
		exportRegexp: jsExports,
	},
	{
		Name:       "python",
		Extensions: []string{".py", ".pyi"},
		grammar:    python.GetLanguage,
		nodeKinds: map[string]Kind{
			"class_definition":      KindClass,
			"function_definition":   KindFunction,
			"decorated_definition":  KindFunction,
			"import_statement":      KindImport,
			"import_from_statement": KindImport,
			"expression_statement":  KindVariable,
		},
		topLevelOnly: map[string]bool{"expression_statement": true},
		openings:     pyOpenings,
		indentBased:  true,
		importRegexp: pyImports,
		exportRegexp: pyExports,
	},
	{
		Name:       "java",
		Extensions: []string{".java"},
		grammar:    java.GetLanguage,
		nodeKinds: map[string]Kind{
			"class_declaration":       KindClass,
			"record_declaration":      KindClass,
			"interface_declaration":   KindInterface,
			"enum_declaration":        KindEnum,
			"method_declaration":      KindFunction,
			"constructor_declaration": KindFunction,
			"import_declaration":      KindImport,
			"field_declaration":       KindVariable,
		},
		openings:     javaOpenings,
		importRegexp: javaImports,
		exportRegexp: javaExports,
	},
	{
		Name:       "csharp",
		Extensions: []string{".cs"},
		grammar:    csharp.GetLanguage,
		nodeKinds: map[string]Kind{
			"class_declaration":       KindClass,
			"struct_declaration":      KindClass,
			"record_declaration":      KindClass,
			"interface_declaration":   KindInterface,
			"enum_declaration":        KindEnum,
			"method_declaration":      KindFunction,
			"constructor_declaration": KindFunction,
			"using_directive":         KindImport,
			"field_declaration":       KindVariable,
		},
		openings:     javaOpenings,
		importRegexp: javaImports,
		exportRegexp: javaExports,
	},
	{
		Name:       "c",
		Extensions: []string{".c", ".h"},
		grammar:    c.GetLanguage,
		nodeKinds: map[string]Kind{
			"function_definition": KindFunction,
			"struct_specifier":    KindClass,
		},
		openings:     cOpenings,
		importRegexp: cImports,
	},
	{
		Name:       "cpp",
		Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hxx", ".hh"},
		grammar:    cpp.GetLanguage,
		nodeKinds: map[string]Kind{
			"function_definition": KindFunction,
			"class_specifier":     KindClass,
			"struct_specifier":    KindClass,
		},
		openings:     cOpenings,
		importRegexp: cImports,
	},
	{
		Name:       "html",
		Extensions: []string{".html", ".htm"},
		html:       true,
	},
}

// generic covers brace languages without a dedicated record.
var generic = &Language{
	Name:     "text",
	openings: genericOpenings,
}

var byExtension = func() map[string]*Language {
	m := make(map[string]*Language)
	for _, l := range languages {
		for _, ext := range l.Extensions {
			m[ext] = l
		}
	}
	return m
}()

// LanguageFor returns the record registered for ext, or a generic
// brace-language record when none is registered.
func LanguageFor(ext string) *Language {
	ext = normalizeExt(ext)
	if l, ok := byExtension[ext]; ok {
		return l
	}
	return generic
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// extOf returns the lower-cased extension of a path.
func extOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
