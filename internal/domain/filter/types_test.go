package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestPredicate_Matches(t *testing.T) {
	tests := []struct {
		name        string
		term        string
		recName     string
		description string
		want        bool
	}{
		{"empty term matches all", "", "alpha", "", true},
		{"name substring", "a", "gamma", "x", true},
		{"case insensitive name", "ALP", "alpha", "", true},
		{"description substring", "test", "beta", "a Test repo", true},
		{"no match", "zeta", "beta", "test repo", false},
		{"wildcards are literal", "%", "alpha", "beta", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Search(tt.term).Matches(tt.recName, tt.description))
		})
	}
}

func TestPredicate_LikePattern(t *testing.T) {
	assert.Equal(t, "%alpha%", Search("alpha").LikePattern())
	assert.Equal(t, `%50\%\_off\\%`, Search(`50%_off\`).LikePattern())
}

func TestEscapeLike_NoBareWildcards(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		s := rapid.String().Draw(r, "s")
		escaped := EscapeLike(s)

		// Every wildcard in the output must be preceded by an odd run of escapes.
		for i, ch := range escaped {
			if ch != '%' && ch != '_' {
				continue
			}
			run := 0
			for j := i - 1; j >= 0 && escaped[j] == '\\'; j-- {
				run++
			}
			if run%2 == 0 {
				r.Fatalf("unescaped wildcard at %d in %q (input %q)", i, escaped, s)
			}
		}

		unescaped := strings.NewReplacer(`\\`, `\`, `\%`, `%`, `\_`, `_`).Replace(escaped)
		if unescaped != s {
			r.Fatalf("round trip mismatch: %q -> %q -> %q", s, escaped, unescaped)
		}
	})
}
