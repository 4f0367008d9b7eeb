// Package search holds the title predicate applied by listing stores.
package search

import (
	"regexp"
	"strings"
)

// Filter matches listings whose title contains Term, ignoring case. An empty Term matches everything.
type Filter struct {
	Term string
}

// NewTitleFilter trims term so that whitespace-only input behaves like no term at all.
func NewTitleFilter(term string) Filter {
	return Filter{Term: strings.TrimSpace(term)}
}

func (f Filter) IsEmpty() bool { return f.Term == "" }

// Matches evaluates the predicate in memory.
func (f Filter) Matches(title string) bool {
	if f.IsEmpty() {
		return true
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(f.Term))
}

// RegexPattern returns a pattern that treats Term literally, for stores with regex matching.
// Pair it with the case-insensitive option.
func (f Filter) RegexPattern() string {
	return regexp.QuoteMeta(f.Term)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern returns a %term% pattern with LIKE wildcards in Term escaped.
func (f Filter) LikePattern() string {
	return "%" + likeEscaper.Replace(f.Term) + "%"
}
