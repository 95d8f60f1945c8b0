// Package filter defines the search predicate shared by paging and counting.
package filter

import "strings"

// Predicate selects live records for a listing request.
// The zero value matches every record.
type Predicate struct {
	// Term is matched as a case-insensitive substring of name or description.
	Term string
}

// Search builds the predicate for a search term. An empty term matches all.
func Search(term string) Predicate {
	return Predicate{Term: term}
}

// MatchesAll reports whether the predicate selects every record.
func (p Predicate) MatchesAll() bool {
	return p.Term == ""
}

// Matches evaluates the predicate in memory.
func (p Predicate) Matches(name, description string) bool {
	if p.MatchesAll() {
		return true
	}
	term := strings.ToLower(p.Term)
	return strings.Contains(strings.ToLower(name), term) ||
		strings.Contains(strings.ToLower(description), term)
}

// LikePattern returns the term as a LIKE/ILIKE substring pattern.
// Wildcards inside the term are escaped with EscapeChar.
func (p Predicate) LikePattern() string {
	return "%" + EscapeLike(p.Term) + "%"
}

// EscapeChar is the escape character used by LikePattern.
const EscapeChar = `\`

var likeEscaper = strings.NewReplacer(
	`\`, `\\`,
	`%`, `\%`,
	`_`, `\_`,
)

// EscapeLike escapes LIKE wildcards so s matches literally.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
