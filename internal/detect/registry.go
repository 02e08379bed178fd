package detect

import "regexp"

// Framework is a build-time record scored by extension and content patterns.
type Framework struct {
	Name       string
	Extensions []string
	Patterns   []*regexp.Regexp
	// Priority scales the raw score; it is kept below 1 so an extension
	// match alone never reaches the detection threshold.
	Priority float64
}

// Syntax is a concrete dialect with a short tag used in filenames and prompts.
type Syntax struct {
	Name       string
	Tag        string
	Extensions []string
	Patterns   []*regexp.Regexp
}

// patterns compiles exprs in multi-line mode so ^ anchors at each line.
func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile("(?m)" + e)
	}
	return out
}

var jsxPatterns = []string{
	`<[A-Z]\w*[\s/>]`,
	`return\s*\(?\s*<\w`,
	`className=`,
	`\{/\*.*\*/\}|onClick=\{`,
}

var tsPatterns = []string{
	`:\s*(string|number|boolean|any|void|unknown)\b`,
	`\binterface\s+\w+`,
	`\btype\s+\w+\s*=`,
	`\b(public|private|protected|readonly)\s+\w+`,
	`\bas\s+[A-Z]\w*`,
}

// Frameworks is the registry, scored in order; earlier records win ties.
var Frameworks = []Framework{
	{
		Name:       "react",
		Extensions: []string{".jsx", ".tsx", ".js", ".ts"},
		Patterns: patterns(
			`from\s+['"]react['"]|require\(['"]react['"]\)`,
			`\buse(State|Effect|Memo|Callback|Ref|Context|Reducer)\s*\(`,
			`<[A-Z]\w*[\s/>]`,
			`className=`,
			`React\.(Component|createElement|Fragment)`,
		),
		Priority: 0.95,
	},
	{
		Name:       "angular",
		Extensions: []string{".ts"},
		Patterns: patterns(
			`from\s+['"]@angular/`,
			`@Component\s*\(`,
			`@(NgModule|Injectable|Directive|Pipe)\s*\(`,
			`@(Input|Output|ViewChild)\s*\(`,
			`\bngOnInit\s*\(`,
		),
		Priority: 0.95,
	},
	{
		Name:       "angularjs",
		Extensions: []string{".js", ".html", ".htm"},
		Patterns: patterns(
			`angular\.module\s*\(`,
			`\.(controller|directive|factory|service|filter|component)\s*\(\s*['"]`,
			`\$scope\b`,
			`\bng-(app|controller|model|repeat|click)\b`,
			`\$(http|q|timeout|rootScope)\b`,
		),
		Priority: 0.9,
	},
	{
		Name:       "vue",
		Extensions: []string{".vue", ".js", ".ts"},
		Patterns: patterns(
			`<template>`,
			`from\s+['"]vue['"]`,
			`\bdefineComponent\s*\(|Vue\.component\s*\(`,
			`\bv-(if|for|model|bind|on)\b`,
			`export\s+default\s*\{[\s\S]*\b(data|methods|computed)\s*[:(]`,
		),
		Priority: 0.9,
	},
	{
		Name:       "svelte",
		Extensions: []string{".svelte"},
		Patterns: patterns(
			`<script[^>]*>`,
			`\{#(if|each|await)\b`,
			`\bexport\s+let\s+\w+`,
			`\$:\s*\w+`,
		),
		Priority: 0.9,
	},
	{
		Name:       "express",
		Extensions: []string{".js", ".ts"},
		Patterns: patterns(
			`require\(['"]express['"]\)|from\s+['"]express['"]`,
			`\b(app|router)\.(get|post|put|delete|use)\s*\(`,
			`\(\s*req\s*,\s*res\b`,
			`\bres\.(json|send|status)\s*\(`,
		),
		Priority: 0.85,
	},
	{
		Name:       "jquery",
		Extensions: []string{".js", ".html", ".htm"},
		Patterns: patterns(
			`\$\(\s*document\s*\)\.ready`,
			`\$\.(ajax|get|post|each)\s*\(`,
			`\$\(['"][#.]?\w`,
			`\.on\(\s*['"](click|change|submit)['"]`,
		),
		Priority: 0.7,
	},
	{
		Name:       "django",
		Extensions: []string{".py"},
		Patterns: patterns(
			`from\s+django\b`,
			`models\.Model\b`,
			`\b(render|redirect|get_object_or_404)\s*\(`,
			`\burlpatterns\s*=`,
		),
		Priority: 0.9,
	},
	{
		Name:       "flask",
		Extensions: []string{".py"},
		Patterns: patterns(
			`from\s+flask\s+import`,
			`Flask\(\s*__name__\s*\)`,
			`@\w+\.route\s*\(`,
			`\bjsonify\s*\(`,
		),
		Priority: 0.85,
	},
	{
		Name:       "spring",
		Extensions: []string{".java"},
		Patterns: patterns(
			`import\s+org\.springframework\.`,
			`@(SpringBootApplication|RestController|Controller|Service|Repository)\b`,
			`@(Autowired|GetMapping|PostMapping|RequestMapping)\b`,
		),
		Priority: 0.9,
	},
	{
		Name:       "aspnet",
		Extensions: []string{".cs"},
		Patterns: patterns(
			`using\s+Microsoft\.AspNetCore`,
			`\[(ApiController|HttpGet|HttpPost|Route)\b`,
			`:\s*(Controller|ControllerBase)\b`,
			`\bIActionResult\b`,
		),
		Priority: 0.9,
	},
	{
		Name:       "elasticsearch",
		Extensions: []string{".json", ".js", ".py"},
		Patterns: patterns(
			`"mappings"\s*:`,
			`"(query|bool|must|should|filter)"\s*:`,
			`"(aggs|aggregations)"\s*:`,
			`"_source"|"_index"`,
			`\bes\.(search|index)\s*\(|new\s+Client\(\s*\{\s*node`,
		),
		Priority: 0.9,
	},
}

// Syntaxes is the syntax registry, scored in order.
var Syntaxes = []Syntax{
	{Name: "typescript", Tag: "ts", Extensions: []string{".ts", ".mts", ".cts"}, Patterns: patterns(tsPatterns...)},
	{Name: "tsx", Tag: "tsx", Extensions: []string{".tsx"}, Patterns: patterns(append(append([]string{}, tsPatterns[:3]...), jsxPatterns...)...)},
	{Name: "javascript", Tag: "js", Extensions: []string{".js", ".mjs", ".cjs"}, Patterns: patterns(
		`\bfunction\b`,
		`\b(const|let|var)\s+\w+\s*=`,
		`\brequire\(|module\.exports`,
		`=>`,
	)},
	{Name: "jsx", Tag: "jsx", Extensions: []string{".jsx"}, Patterns: patterns(jsxPatterns...)},
	{Name: "python", Tag: "py", Extensions: []string{".py", ".pyi"}, Patterns: patterns(
		`^\s*def\s+\w+\s*\(`,
		`^\s*(from\s+\S+\s+)?import\s+\w+`,
		`^\s*class\s+\w+(\(.*\))?:`,
		`\bself\.\w+`,
	)},
	{Name: "java", Tag: "java", Extensions: []string{".java"}, Patterns: patterns(
		`\bpublic\s+(static\s+)?(class|interface|void)\b`,
		`^\s*package\s+[\w.]+;`,
		`^\s*import\s+[\w.]+(\.\*)?;`,
		`System\.out\.println`,
	)},
	{Name: "csharp", Tag: "cs", Extensions: []string{".cs"}, Patterns: patterns(
		`^\s*using\s+[\w.]+;`,
		`\bnamespace\s+[\w.]+`,
		`\{\s*get;\s*(set;)?\s*\}`,
		`\b(public|private|internal)\s+(async\s+)?\w+(<[\w, ]+>)?\s+\w+\s*\(`,
	)},
	{Name: "html", Tag: "html", Extensions: []string{".html", ".htm"}, Patterns: patterns(
		`(?i)<!doctype\s+html`,
		`(?i)<(html|head|body|div)\b`,
		`(?i)<script\b`,
	)},
	{Name: "sql", Tag: "sql", Extensions: []string{".sql"}, Patterns: patterns(
		`(?i)\bcreate\s+(table|index|view|function)\b`,
		`(?i)\bselect\b[\s\S]+\bfrom\b`,
		`(?i)\binsert\s+into\b`,
	)},
	{Name: "json", Tag: "json", Extensions: []string{".json"}, Patterns: patterns(
		`^\s*[\[{]`,
		`"\w+"\s*:`,
	)},
}
