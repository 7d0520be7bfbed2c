package bets

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizeTeam folds case, accents and spacing so bookmaker spellings of
// the same team compare equal.
func normalizeTeam(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(name))
	if err != nil {
		folded = strings.ToLower(name)
	}
	return strings.Join(strings.Fields(folded), " ")
}

// sameTeam reports whether two team names refer to the same side.
func sameTeam(a, b string) bool {
	na := normalizeTeam(a)
	return na != "" && na == normalizeTeam(b)
}
