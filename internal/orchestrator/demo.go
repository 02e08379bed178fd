package orchestrator

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/ziadkadry99/auto-migrate/internal/lang"
)

// demoFunc renders the stand-in translation of one file.
type demoFunc func(name, source string) string

// demos are substituted when the model cannot produce a usable file. They
// are deterministic and never used as normal output.
var demos = map[lang.Pair]demoFunc{
	{Source: "python2", Target: "python3"}:          demoPython3,
	{Source: "typescript", Target: "javascript"}:    demoStripTypes,
	{Source: "elasticsearch", Target: "postgresql"}: demoAnalyticsSchema,
}

// demoFor returns the registered demo for pair, falling back to the source
// annotated with a review banner.
func demoFor(pair lang.Pair) demoFunc {
	if fn, ok := demos[pair]; ok {
		return fn
	}
	if pair.Analytics() {
		return demoAnalyticsSchema
	}
	return func(name, source string) string {
		return banner(pair.Target, name) + source
	}
}

func banner(target, name string) string {
	comment := "//"
	if l, ok := lang.Lookup(target); ok && l.Comment != "" {
		comment = l.Comment
	}
	return fmt.Sprintf("%s Demo translation of %s: automatic translation was unavailable. Review before use.\n", comment, name)
}

var (
	printStmt = regexp.MustCompile(`(?m)(^[ \t]*|:[ \t]*)print[ \t]+([^(\s][^\n]*?)[ \t]*$`)
	exceptAs  = regexp.MustCompile(`(?m)except\s+(\w+(?:\.\w+)*)\s*,\s*(\w+)\s*:`)
	iterDict  = regexp.MustCompile(`\.iter(items|keys|values)\(\)`)
)

func demoPython3(name, source string) string {
	out := printStmt.ReplaceAllString(source, "${1}print(${2})")
	out = strings.ReplaceAll(out, "xrange(", "range(")
	out = exceptAs.ReplaceAllString(out, "except ${1} as ${2}:")
	out = iterDict.ReplaceAllString(out, ".${1}()")
	return banner("python3", name) + out
}

var (
	typeOnlyImport = regexp.MustCompile(`(?m)^\s*import\s+type\s+[^\n]*\n`)
	interfaceDecl  = regexp.MustCompile(`(?ms)^(export\s+)?interface\s+\w+[^{]*\{.*?^\}\s*\n`)
	typeAlias      = regexp.MustCompile(`(?m)^(export\s+)?type\s+\w+(<[^>]*>)?\s*=[^;]*;\s*\n`)
	signature      = regexp.MustCompile(`\(([^()]*)\)(\s*:\s*[\w.<>\[\]| ]+?)?(\s*(?:=>|\{))`)
)

// demoStripTypes removes the common TypeScript-only syntax: type imports,
// interfaces, aliases and annotations in parameter lists.
func demoStripTypes(name, source string) string {
	out := typeOnlyImport.ReplaceAllString(source, "")
	out = interfaceDecl.ReplaceAllString(out, "")
	out = typeAlias.ReplaceAllString(out, "")
	out = signature.ReplaceAllStringFunc(out, func(m string) string {
		sub := signature.FindStringSubmatch(m)
		return "(" + stripParams(sub[1]) + ")" + sub[3]
	})
	return banner("javascript", name) + out
}

// stripParams drops the type annotation of every parameter in list and
// keeps default values. Lists it does not understand come back unchanged.
func stripParams(list string) string {
	params := splitTopLevel(list, ',')
	for i, p := range params {
		colon := indexTopLevel(p, ':')
		if colon < 0 {
			continue
		}
		if q := strings.IndexByte(p, '?'); q >= 0 && q != colon-1 {
			return list
		}
		head := strings.TrimSuffix(p[:colon], "?")
		tail := ""
		if eq := indexTopLevel(p[colon:], '='); eq >= 0 {
			tail = " " + strings.TrimSpace(p[colon+eq:])
		}
		params[i] = strings.TrimRight(head, " ") + tail
	}
	return strings.Join(params, ",")
}

func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{', '[', '<':
			depth++
		case '}', ']', '>':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

func indexTopLevel(s string, c byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{', '[', '<':
			depth++
		case '}', ']', '>':
			depth--
		case c:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func demoAnalyticsSchema(name, _ string) string {
	entity := strings.TrimSuffix(path.Base(name), path.Ext(name))
	entity = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return '_'
	}, entity)
	if entity == "" {
		entity = "document"
	}
	return strings.ReplaceAll(analyticsTemplate, "{{entity}}", entity)
}

const analyticsTemplate = `-- Demo translation: automatic translation was unavailable. Review before use.
CREATE TABLE dim_date (
    date_key     integer PRIMARY KEY,
    full_date    date NOT NULL UNIQUE,
    year         smallint NOT NULL,
    month        smallint NOT NULL,
    day          smallint NOT NULL
);

CREATE TABLE dim_{{entity}} (
    {{entity}}_key  bigserial PRIMARY KEY,
    source_id       text NOT NULL UNIQUE,
    title           text,
    search_vector   tsvector,
    updated_at      timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX dim_{{entity}}_search_idx ON dim_{{entity}} USING gin (search_vector);

CREATE TABLE fact_{{entity}}_event (
    event_id        bigserial,
    {{entity}}_key  bigint NOT NULL REFERENCES dim_{{entity}} ({{entity}}_key),
    date_key        integer NOT NULL REFERENCES dim_date (date_key),
    occurred_at     timestamptz NOT NULL,
    quantity        numeric NOT NULL DEFAULT 0,
    PRIMARY KEY (event_id, occurred_at)
) PARTITION BY RANGE (occurred_at);

CREATE INDEX fact_{{entity}}_event_key_idx ON fact_{{entity}}_event ({{entity}}_key);
CREATE INDEX fact_{{entity}}_event_date_idx ON fact_{{entity}}_event (date_key);

CREATE MATERIALIZED VIEW mv_{{entity}}_daily AS
SELECT date_key, {{entity}}_key, count(*) AS events, sum(quantity) AS quantity
FROM fact_{{entity}}_event
GROUP BY date_key, {{entity}}_key;

CREATE OR REPLACE FUNCTION refresh_{{entity}}_views() RETURNS void AS $$
BEGIN
    REFRESH MATERIALIZED VIEW mv_{{entity}}_daily;
END;
$$ LANGUAGE plpgsql;

CREATE OR REPLACE FUNCTION dim_{{entity}}_search_vector() RETURNS trigger AS $$
BEGIN
    NEW.search_vector := to_tsvector('simple', coalesce(NEW.title, ''));
    NEW.updated_at := now();
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

CREATE TRIGGER dim_{{entity}}_search_vector_trg
BEFORE INSERT OR UPDATE ON dim_{{entity}}
FOR EACH ROW EXECUTE FUNCTION dim_{{entity}}_search_vector();
`
