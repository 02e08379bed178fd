package walker

import (
	"path/filepath"
	"strings"
)

// extensionToLanguage maps file extensions to base language ids.
var extensionToLanguage = map[string]string{
	".js":     "javascript",
	".jsx":    "javascript",
	".mjs":    "javascript",
	".cjs":    "javascript",
	".ts":     "typescript",
	".tsx":    "typescript",
	".mts":    "typescript",
	".py":     "python",
	".pyi":    "python",
	".java":   "java",
	".kt":     "kotlin",
	".kts":    "kotlin",
	".scala":  "scala",
	".cs":     "csharp",
	".c":      "c",
	".h":      "c",
	".cpp":    "cpp",
	".cc":     "cpp",
	".cxx":    "cpp",
	".hpp":    "cpp",
	".go":     "go",
	".rs":     "rust",
	".rb":     "ruby",
	".php":    "php",
	".swift":  "swift",
	".dart":   "dart",
	".sql":    "sql",
	".html":   "html",
	".htm":    "html",
	".vue":    "vue",
	".svelte": "svelte",
	".css":    "css",
	".scss":   "css",
	".sass":   "css",
	".less":   "css",
	".json":   "json",
	".yaml":   "yaml",
	".yml":    "yaml",
	".md":     "markdown",
	".sh":     "shell",
}

// filenameToLanguage maps specific filenames to language ids.
var filenameToLanguage = map[string]string{
	"Dockerfile":  "dockerfile",
	"Makefile":    "makefile",
	"Jenkinsfile": "groovy",
	"Gemfile":     "ruby",
	"Rakefile":    "ruby",
}

// DetectLanguage returns the base language id for a filename based on its
// extension or exact name. Returns "unknown" for unrecognised files.
func DetectLanguage(filename string) string {
	base := filepath.Base(filename)

	if lang, ok := filenameToLanguage[base]; ok {
		return lang
	}

	ext := strings.ToLower(filepath.Ext(base))
	if lang, ok := extensionToLanguage[ext]; ok {
		return lang
	}
	return "unknown"
}
