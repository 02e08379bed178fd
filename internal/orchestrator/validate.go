package orchestrator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrQualityRejected marks output that failed the structural checks for its pair.
var ErrQualityRejected = errors.New("output rejected by quality check")

var analyticsChecks = []struct {
	name string
	re   *regexp.Regexp
}{
	{"dimension tables", regexp.MustCompile(`(?i)create\s+table\s+(if\s+not\s+exists\s+)?[\w."]*(dim_\w+|\w+_dim\b|dimension)`)},
	{"fact tables", regexp.MustCompile(`(?i)create\s+table\s+(if\s+not\s+exists\s+)?[\w."]*(fact_\w+|\w+_fact\b|\w+_facts\b)`)},
	{"materialized views", regexp.MustCompile(`(?i)create\s+(or\s+replace\s+)?materialized\s+view`)},
	{"functions", regexp.MustCompile(`(?i)create\s+(or\s+replace\s+)?function`)},
	{"triggers", regexp.MustCompile(`(?i)create\s+(or\s+replace\s+)?(constraint\s+)?trigger`)},
	{"partitioning", regexp.MustCompile(`(?i)partition\s+(by|of)\b`)},
}

var createTable = regexp.MustCompile(`(?i)create\s+table\b`)

// ValidateAnalytics checks a relational schema produced from a search index.
// The error wraps ErrQualityRejected and lists what is missing.
func ValidateAnalytics(code string, minChars int) error {
	var missing []string
	if n := len(code); n < minChars {
		missing = append(missing, fmt.Sprintf("at least %d characters (got %d)", minChars, n))
	}
	if len(createTable.FindAllStringIndex(code, 2)) < 2 {
		missing = append(missing, "more than a single denormalized table")
	}
	for _, c := range analyticsChecks {
		if !c.re.MatchString(code) {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrQualityRejected, strings.Join(missing, ", "))
	}
	return nil
}
