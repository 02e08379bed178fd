package walker

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludes are directory names never descended into.
var DefaultExcludes = []string{
	".git",
	"node_modules",
	"vendor",
	"__pycache__",
	".automigrate",
	"dist",
	"build",
	".next",
	"target",
	".venv",
	".idea",
	".vscode",
}

// BinaryAssetPatterns match files that are never fetched or chunked.
var BinaryAssetPatterns = []string{
	"**/*.{png,jpg,jpeg,gif,bmp,ico,webp,tiff,psd}",
	"**/*.{woff,woff2,ttf,otf,eot}",
	"**/*.{mp3,mp4,wav,ogg,webm,avi,mov,flac}",
	"**/*.{zip,tar,gz,tgz,bz2,xz,7z,rar,jar,war}",
	"**/*.{pdf,exe,dll,so,dylib,class,pyc,o,a,wasm}",
	"**/.DS_Store",
}

// StaticAssetPatterns match files that are kept for context but are not
// translated unless the requested pair targets them directly.
var StaticAssetPatterns = []string{
	"**/*.{html,htm}",
	"**/*.{css,scss,sass,less}",
	"**/*.json",
	"**/*.{md,markdown}",
	"**/*.svg",
}

// shouldExcludeDir checks whether a directory name matches any default
// exclusion. This is used during traversal to skip entire subtrees.
func shouldExcludeDir(name string) bool {
	for _, excl := range DefaultExcludes {
		if strings.EqualFold(name, excl) {
			return true
		}
	}
	return false
}

// IsBinaryAsset reports whether relPath is an image, font, media file,
// archive or compiled artefact.
func IsBinaryAsset(relPath string) bool {
	return matchesAny(strings.ToLower(relPath), BinaryAssetPatterns)
}

// IsStaticAsset reports whether relPath is markup, styling, data or
// documentation, or a binary asset.
func IsStaticAsset(relPath string) bool {
	lower := strings.ToLower(relPath)
	return matchesAny(lower, StaticAssetPatterns) || matchesAny(lower, BinaryAssetPatterns)
}

// MatchesExclude returns true if the given relative path matches any of the
// exclude patterns. If patterns is empty, nothing is excluded.
func MatchesExclude(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	return matchesAny(relPath, patterns)
}

// matchesAny checks relPath, then its base name, against the globs.
func matchesAny(relPath string, patterns []string) bool {
	normalized := strings.ReplaceAll(relPath, "\\", "/")
	base := path.Base(normalized)

	for _, pattern := range patterns {
		if matched, err := doublestar.Match(pattern, normalized); err == nil && matched {
			return true
		}
		if matched, err := doublestar.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}
