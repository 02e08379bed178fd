package chunker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pad appends comment lines until the file is past the small-file cutoff.
func pad(body, comment string) string {
	var b strings.Builder
	b.WriteString(body)
	for i := 0; i < SmallFileLines; i++ {
		b.WriteString(comment)
		b.WriteString(" filler\n")
	}
	return b.String()
}

// assertSpans checks that every chunk's content is exactly its line span.
func assertSpans(t *testing.T, content string, chunks []Chunk) {
	t.Helper()
	lines := strings.Split(content, "\n")
	for _, c := range chunks {
		require.GreaterOrEqual(t, c.StartLine, 1, c.Name)
		require.GreaterOrEqual(t, c.EndLine, c.StartLine, c.Name)
		want := strings.Join(lines[c.StartLine-1:c.EndLine], "\n")
		assert.Equal(t, want, c.Content, "chunk %s %d-%d", c.Name, c.StartLine, c.EndLine)
		assert.Equal(t, c.EndLine-c.StartLine+1, strings.Count(c.Content, "\n")+1)
		assert.NotEmpty(t, c.Kind)
		assert.NotEmpty(t, c.Name)
	}
}

func TestChunkContent_Empty(t *testing.T) {
	c := New(nil)
	assert.Empty(t, c.ChunkContent(context.Background(), "a.js", "", ""))
	assert.Empty(t, c.ChunkContent(context.Background(), "a.js", "", "  \n\n"))
}

func TestChunkContent_SmallFile(t *testing.T) {
	content := "export const add = (a, b) => a + b;\n\nfunction sub(a, b) {\n  return a - b;\n}\n"
	chunks := New(nil).ChunkContent(context.Background(), "src/math.js", ".js", content)

	require.Len(t, chunks, 1)
	c := chunks[0]
	assert.Equal(t, KindFile, c.Kind)
	assert.Equal(t, "math.js", c.Name)
	assert.Equal(t, "src/math.js", c.FilePath)
	assert.Equal(t, 1, c.StartLine)
	assert.Equal(t, 5, c.EndLine)
	assertSpans(t, content, chunks)
}

func TestChunkContent_JavaScriptAST(t *testing.T) {
	body := `import { a } from './a';

class Greeter {
  greet() {
    return 'hi';
  }
}

function helper(x) {
  return x + 1;
}

const arrow = (y) => {
  return y * 2;
};

const LIMIT = 10;
`
	content := pad(body, "//")
	chunks := New(nil).ChunkContent(context.Background(), "src/app.js", ".js", content)

	var got []string
	for _, c := range chunks {
		got = append(got, string(c.Kind)+":"+c.Name)
	}
	assert.Equal(t, []string{
		"import:./a",
		"class:Greeter",
		"function:helper",
		"function:arrow",
		"variable:LIMIT",
	}, got)

	// Methods are absorbed into their class.
	for _, c := range chunks {
		assert.NotEqual(t, "greet", c.Name)
	}
	assertSpans(t, content, chunks)
}

func TestChunkContent_Deterministic(t *testing.T) {
	content := pad("class A {\n  m() {}\n}\nfunction f() {}\n", "//")
	c := New(nil)
	first := c.ChunkContent(context.Background(), "a.ts", ".ts", content)
	second := c.ChunkContent(context.Background(), "a.ts", ".ts", content)
	assert.Equal(t, first, second)
}

func TestChunk_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.py")
	require.NoError(t, os.WriteFile(path, []byte("print('hi')\n"), 0o644))

	chunks, err := New(nil).Chunk(context.Background(), path, "pkg/x.py", "")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, ".py", chunks[0].Extension)
	assert.Equal(t, "pkg/x.py", chunks[0].FilePath)

	_, err = New(nil).Chunk(context.Background(), filepath.Join(dir, "missing.py"), "missing.py", "")
	assert.Error(t, err)
}

func TestSplitLines_AbsorbsNestedFunctions(t *testing.T) {
	content := "class Foo {\n  fun bar() {\n  }\n}\nfun baz() { return 1 }\n"
	f := newSource("a.kt", ".kt", content)
	chunks := splitLines(LanguageFor(".kt"), f)

	require.Len(t, chunks, 2)
	assert.Equal(t, KindClass, chunks[0].Kind)
	assert.Equal(t, "Foo", chunks[0].Name)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 4, chunks[0].EndLine)
	assert.Equal(t, KindFunction, chunks[1].Kind)
	assert.Equal(t, "baz", chunks[1].Name)
	assert.Equal(t, 5, chunks[1].StartLine)
	assert.Equal(t, 5, chunks[1].EndLine)
	assertSpans(t, content, chunks)
}

func TestSplitLines_UnbalancedBraces(t *testing.T) {
	content := "func a() {\n  return\n}\n\nfunc b() {\n  if x {\n"
	f := newSource("a.go", ".go", content)
	chunks := splitLines(LanguageFor(".go"), f)

	require.Len(t, chunks, 2)
	assert.Equal(t, "a", chunks[0].Name)
	assert.Equal(t, 3, chunks[0].EndLine)
	// The trailing chunk runs from just after the last closed construct to EOF.
	assert.Equal(t, "b", chunks[1].Name)
	assert.Equal(t, 4, chunks[1].StartLine)
	assert.Equal(t, 6, chunks[1].EndLine)
	assertSpans(t, content, chunks)
}

func TestSplitLines_JavaBraceOnNextLine(t *testing.T) {
	content := "public class Service\n{\n    public void run()\n    {\n    }\n}\n"
	f := newSource("Service.cs", ".cs", content)
	chunks := splitLines(LanguageFor(".cs"), f)

	require.Len(t, chunks, 1)
	assert.Equal(t, KindClass, chunks[0].Kind)
	assert.Equal(t, "Service", chunks[0].Name)
	assert.Equal(t, 6, chunks[0].EndLine)
}

func TestCountBraces(t *testing.T) {
	tests := []struct {
		line          string
		opens, closes int
	}{
		{"} else {", 1, 1},
		{"function f() { return 1 }", 1, 1},
		{`x = "{"; // }`, 0, 0},
		{"s = '\\'{'", 0, 0},
		{"{{", 2, 0},
	}
	for _, tt := range tests {
		o, c := countBraces(tt.line)
		assert.Equal(t, tt.opens, o, tt.line)
		assert.Equal(t, tt.closes, c, tt.line)
	}
}

func TestSplitIndented_Python(t *testing.T) {
	content := "import os\n\nclass A:\n    def m(self):\n        return 1\n\ndef f():\n    return 2\nX = 1\n"
	f := newSource("m.py", ".py", content)
	chunks := splitLines(LanguageFor(".py"), f)

	require.Len(t, chunks, 2)
	assert.Equal(t, "A", chunks[0].Name)
	assert.Equal(t, 3, chunks[0].StartLine)
	assert.Equal(t, 5, chunks[0].EndLine)
	assert.Equal(t, "f", chunks[1].Name)
	assert.Equal(t, 7, chunks[1].StartLine)
	assert.Equal(t, 8, chunks[1].EndLine)
	assertSpans(t, content, chunks)
}

const angularPage = `<html>
<template id="row">
  <tr></tr>
</template>
<script>
var app = angular.module('app', []);
app.controller('MainCtrl', function($scope) {
  $scope.x = 1;
});
app.service('DataService', function() {
});
</script>
<style>.a{}</style>
</html>
`

func TestSplitHTML(t *testing.T) {
	f := newSource("index.html", ".html", angularPage)
	chunks := splitHTML(f)

	var got []string
	for _, c := range chunks {
		got = append(got, string(c.Kind)+":"+c.Name)
	}
	assert.Equal(t, []string{
		"template:row",
		"script:script",
		"framework-construct:MainCtrl",
		"framework-construct:DataService",
		"style:style",
	}, got)
	assertSpans(t, angularPage, chunks)
}

func TestChunkContent_LargeHTMLUsesSections(t *testing.T) {
	content := pad(angularPage, "<!-- -->")
	chunks := New(nil).ChunkContent(context.Background(), "index.html", ".html", content)
	require.Len(t, chunks, 5)
	assertSpans(t, content, chunks)
}

func TestChunkContent_FallsBackToFileChunk(t *testing.T) {
	content := pad("", "#")
	chunks := New(nil).ChunkContent(context.Background(), "notes.txt", ".txt", content)
	require.Len(t, chunks, 1)
	assert.Equal(t, KindFile, chunks[0].Kind)
	assert.Equal(t, SmallFileLines, chunks[0].EndLine)
}

func TestSignatureName(t *testing.T) {
	assert.Equal(t, "handler", signatureName("export default async function handler(req) {"))
	assert.Equal(t, "", signatureName("export default {"))
	assert.Equal(t, "", signatureName("export default function () { return 1 }"))
}

func TestAnalyze(t *testing.T) {
	c := Chunk{
		Extension: ".ts",
		Content:   "import { x } from 'lib';\nexport class Foo {}\nconst y = require('fs');",
		StartLine: 1,
		EndLine:   3,
	}
	md := Analyze(c)
	assert.Equal(t, "typescript", md.Language)
	assert.Equal(t, []string{"lib", "fs"}, md.Dependencies)
	assert.Equal(t, []string{"Foo"}, md.Exports)
	assert.Equal(t, 1, md.Complexity)

	big := Chunk{Extension: ".go", StartLine: 1, EndLine: 5000}
	assert.Equal(t, MaxComplexity, Analyze(big).Complexity)
}
