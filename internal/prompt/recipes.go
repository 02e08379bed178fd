package prompt

import (
	"regexp"

	"github.com/ziadkadry99/auto-migrate/internal/lang"
)

// Recipe holds the rules added to prompts for one translation pair. A nil
// Pattern matches every chunk.
type Recipe struct {
	Name    string
	Pair    lang.Pair
	Pattern *regexp.Regexp
	Rules   []string
}

var jsxPattern = regexp.MustCompile(`<[A-Za-z][A-Za-z0-9.]*[\s/>]|className=|onClick=`)

// Recipes are tried in order; see selectRecipe.
var Recipes = []Recipe{
	{
		Name:    "tsx-to-jsx",
		Pair:    lang.Pair{Source: "typescript", Target: "javascript"},
		Pattern: jsxPattern,
		Rules: []string{
			"Keep every JSX element exactly as written. Only remove TypeScript syntax around it.",
			"Remove prop type annotations from destructured parameters, e.g. ({title}: {title: string}) becomes ({title}).",
			"Delete interface and type declarations that only describe props or state.",
			"Keep hooks, imports and exports unchanged apart from type-only imports, which are removed.",
		},
	},
	{
		Name: "ts-to-js",
		Pair: lang.Pair{Source: "typescript", Target: "javascript"},
		Rules: []string{
			"Remove type annotations, generics, interfaces, type aliases and access modifiers.",
			"Turn enums into frozen objects with the same member names and values.",
			"Keep ES module imports and exports. Drop imports that only bring in types.",
			"Convert parameter properties in constructors into explicit assignments.",
		},
	},
	{
		Name:    "jsx-to-tsx",
		Pair:    lang.Pair{Source: "javascript", Target: "typescript"},
		Pattern: jsxPattern,
		Rules: []string{
			"Keep every JSX element exactly as written.",
			"Declare a Props interface for each component and annotate the destructured props with it.",
			"Type useState and useRef calls when the initial value does not determine the type.",
			"Type event handlers with the matching React event types.",
		},
	},
	{
		Name:    "angularjs-controller-to-angular",
		Pair:    lang.Pair{Source: "javascript", Target: "typescript"},
		Pattern: regexp.MustCompile(`\.(controller|service|factory|directive)\s*\(`),
		Rules: []string{
			"Turn each controller into an @Component class and move $scope members to class properties.",
			"Turn services and factories into @Injectable classes provided in root.",
			"Replace $http with HttpClient and promises with Observables where the caller subscribes.",
		},
	},
	{
		Name: "js-to-ts",
		Pair: lang.Pair{Source: "javascript", Target: "typescript"},
		Rules: []string{
			"Add explicit parameter and return types to every function, e.g. function greet(name: string): string.",
			"Describe object shapes with interfaces instead of inline types when they are reused.",
			"Avoid any. Use unknown with narrowing when a type cannot be determined.",
			"Convert require/module.exports to import/export.",
		},
	},
	{
		Name: "python2-to-python3",
		Pair: lang.Pair{Source: "python2", Target: "python3"},
		Rules: []string{
			"Turn print statements into print() calls, e.g. print \"hi\" becomes print(\"hi\").",
			"Replace xrange with range, dict.iteritems/itervalues/iterkeys with items/values/keys.",
			"Rewrite except X, e as except X as e and raise X, msg as raise X(msg).",
			"Use // where integer division was intended and replace unicode() with str().",
			"Remove __future__ imports that Python 3 makes redundant.",
		},
	},
	{
		Name: "java-to-kotlin",
		Pair: lang.Pair{Source: "java", Target: "kotlin"},
		Rules: []string{
			"Use data classes for plain value holders and val for fields that are never reassigned.",
			"Map nullable Java references to nullable Kotlin types instead of using !!.",
			"Replace getters and setters with properties.",
		},
	},
	{
		Name: "javascript-to-python",
		Pair: lang.Pair{Source: "javascript", Target: "python3"},
		Rules: []string{
			"Translate classes to Python classes with __init__ and snake_case method names.",
			"Translate promises and async functions to asyncio coroutines.",
		},
	},
	{
		Name: "search-index-to-relational",
		Pair: lang.Pair{Source: "elasticsearch", Target: "postgresql"},
		Rules: []string{
			"Model every index as a star schema: dimension tables for descriptive fields and fact tables for events and measures.",
			"Map nested and object fields to child tables with foreign keys, not JSON columns.",
			"Map keyword fields to text with B-tree indexes and text fields to tsvector columns with GIN indexes.",
			"Replace aggregations used by dashboards with materialized views and a refresh function.",
		},
	},
}

// selectRecipe returns the first recipe for pair whose pattern matches more
// than half of the contents. When none does it returns the first recipe
// registered for the pair, or nil.
func selectRecipe(pair lang.Pair, contents []string) *Recipe {
	var first *Recipe
	for i := range Recipes {
		r := &Recipes[i]
		if !matchesPair(r.Pair, pair) {
			continue
		}
		if first == nil {
			first = r
		}
		if r.Pattern == nil || majority(r.Pattern, contents) {
			return r
		}
	}
	return first
}

// matchesPair lets relational recipes serve every relational dialect.
func matchesPair(recipe, pair lang.Pair) bool {
	if recipe == pair {
		return true
	}
	return recipe.Analytics() && pair.Analytics()
}

func majority(re *regexp.Regexp, contents []string) bool {
	if len(contents) == 0 {
		return false
	}
	n := 0
	for _, c := range contents {
		if re.MatchString(c) {
			n++
		}
	}
	return n*2 > len(contents)
}
