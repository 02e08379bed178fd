// Package detect classifies a source file by framework and by syntax.
package detect

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ziadkadry99/auto-migrate/internal/walker"
)

const (
	// DetectedThreshold is the confidence at which a label counts as detected.
	DetectedThreshold = 0.5
	// fallbackThreshold is the best score under which extension rules decide.
	fallbackThreshold = 0.3

	frameworkFallbackConfidence = 0.8
	syntaxFallbackConfidence    = 0.9
)

// Result is the outcome of classifying one file.
type Result struct {
	Framework           string  `json:"framework"`
	FrameworkConfidence float64 `json:"framework_confidence"`
	Syntax              string  `json:"syntax"`
	SyntaxConfidence    float64 `json:"syntax_confidence"`
	Extension           string  `json:"extension"`
	DisplayName         string  `json:"display_name"`
	Tag                 string  `json:"tag"`
	FrameworkDetected   bool    `json:"framework_detected"`
	SyntaxDetected      bool    `json:"syntax_detected"`
}

// Detector scores files against framework and syntax registries.
type Detector struct {
	frameworks []Framework
	syntaxes   []Syntax
}

// New returns a detector over the built-in registries.
func New() *Detector {
	return &Detector{frameworks: Frameworks, syntaxes: Syntaxes}
}

// Detect classifies filename using its extension and content. It never fails;
// unknown files come back with zero confidence.
func (d *Detector) Detect(filename, content string) Result {
	ext := strings.ToLower(filepath.Ext(filename))
	res := Result{Extension: ext}

	var fw *Framework
	best := 0.0
	for i := range d.frameworks {
		f := &d.frameworks[i]
		score := (0.3*extMatch(f.Extensions, ext) + 0.7*patternFraction(f.Patterns, content)) * f.Priority
		if score > best {
			best, fw = score, f
		}
	}
	if fw != nil && best >= fallbackThreshold {
		res.Framework = fw.Name
		res.FrameworkConfidence = round(best)
	} else if base := walker.DetectLanguage(filename); base != "unknown" {
		res.Framework = base
		res.FrameworkConfidence = frameworkFallbackConfidence
	} else {
		res.Framework = base
	}

	var syn *Syntax
	best = 0
	for i := range d.syntaxes {
		s := &d.syntaxes[i]
		score := 0.4*extMatch(s.Extensions, ext) + 0.6*patternFraction(s.Patterns, content)
		if score > best {
			best, syn = score, s
		}
	}
	if syn != nil && best >= fallbackThreshold {
		res.Syntax, res.Tag = syn.Name, syn.Tag
		res.SyntaxConfidence = round(best)
	} else {
		res.Syntax = walker.DetectLanguage(filename)
		res.Tag = strings.TrimPrefix(ext, ".")
		if res.Syntax != "unknown" {
			res.SyntaxConfidence = syntaxFallbackConfidence
		}
	}

	res.FrameworkDetected = res.FrameworkConfidence >= DetectedThreshold
	res.SyntaxDetected = res.SyntaxConfidence >= DetectedThreshold
	res.DisplayName = displayName(res)
	return res
}

// displayName joins framework and syntax into the label shown to users and
// used to pick prompt recipes.
func displayName(r Result) string {
	switch {
	case r.Framework == "react" && (r.Tag == "tsx" || r.Tag == "ts"):
		return "react-ts"
	case r.Framework == "react":
		return "react"
	case r.Framework == r.Syntax, r.Framework == "" || r.Framework == "unknown":
		return r.Syntax
	case isBaseLanguage(r.Framework):
		// Extension fallback; the syntax is the more specific label.
		return r.Syntax
	default:
		return r.Framework + "-" + r.Tag
	}
}

func isBaseLanguage(name string) bool {
	for _, f := range Frameworks {
		if f.Name == name {
			return false
		}
	}
	return true
}

func extMatch(exts []string, ext string) float64 {
	for _, e := range exts {
		if e == ext {
			return 1
		}
	}
	return 0
}

func patternFraction(ps []*regexp.Regexp, content string) float64 {
	if len(ps) == 0 || content == "" {
		return 0
	}
	matched := 0
	for _, p := range ps {
		if p.MatchString(content) {
			matched++
		}
	}
	return float64(matched) / float64(len(ps))
}

func round(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
