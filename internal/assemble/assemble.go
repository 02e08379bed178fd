// Package assemble derives output filenames for translated files.
package assemble

import (
	"path"
	"regexp"
	"strings"

	"github.com/ziadkadry99/auto-migrate/internal/lang"
)

// File is one translated file as returned to callers.
type File struct {
	Filename         string `json:"filename"`
	MigratedFilename string `json:"migratedFilename"`
	Content          string `json:"content"`
}

// A tag directly after an identifier is a type argument (Promise<string>,
// f<T>), so tags only count when no identifier character precedes them.
// Lowercase tags inside string literals still count.
var jsxPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)(^|[\s(=?:>{,]|return)<[A-Z][A-Za-z0-9.]*[\s/>]`),
	regexp.MustCompile(`(?m)(^|[^A-Za-z0-9_$])<[a-z][a-z0-9-]*(\s[^<>]*)?/?>`),
	regexp.MustCompile(`<[a-z][a-z0-9-]*(\s[^<>]*)?>[^<>]*</[a-z]`),
	regexp.MustCompile(`<[A-Za-z][A-Za-z0-9.-]*\s*/>`),
	regexp.MustCompile(`className=`),
	regexp.MustCompile(`onClick=`),
	regexp.MustCompile(`>\s*\{[^{}]+\}\s*</`),
	regexp.MustCompile(`\.map\(`),
}

// HasJSX reports whether body looks like it contains JSX.
func HasJSX(body string) bool {
	for _, re := range jsxPatterns {
		if re.MatchString(body) {
			return true
		}
	}
	return false
}

// Assemble names the translation of sourceFilename into targetLang. It is a
// pure function of its arguments.
func Assemble(sourceFilename, targetLang, body string) File {
	return File{
		Filename:         sourceFilename,
		MigratedFilename: TargetFilename(sourceFilename, targetLang, body),
		Content:          body,
	}
}

// TargetFilename applies the extension rules for targetLang.
func TargetFilename(sourceFilename, targetLang, body string) string {
	ext := path.Ext(sourceFilename)
	stem := strings.TrimSuffix(sourceFilename, ext)
	lower := strings.ToLower(ext)
	target := lang.Normalize(targetLang)

	switch target {
	case "javascript":
		switch lower {
		case ".tsx", ".jsx":
			return stem + ".jsx"
		case ".ts", ".js", ".mts", ".cts", ".mjs", ".cjs":
			if HasJSX(body) {
				return stem + ".jsx"
			}
			return stem + ".js"
		}
	case "typescript":
		switch lower {
		case ".jsx", ".tsx":
			return stem + ".tsx"
		case ".js", ".ts", ".mjs", ".cjs", ".mts", ".cts":
			if HasJSX(body) {
				return stem + ".tsx"
			}
			return stem + ".ts"
		}
	}

	if out := lang.Extension(target); out != "" {
		return stem + out
	}
	return sourceFilename
}
