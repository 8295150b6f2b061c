package fserr

import (
	"fmt"
	"strings"
	"unicode"
)

// Suggest returns the candidate the user most likely meant by input.
//
// Bundle and form names differ mostly in case and separators
// ("Date_Library" for "date-library"), so both are ignored. For data paths
// ("address.zpi") the last segment is matched too, which lets a short key
// find its fully qualified path. The allowed edit distance grows with the
// input: one edit up to three characters, three from twelve, two between.
// Ties go to the earlier candidate.
func Suggest(input string, candidates []string) (string, bool) {
	in := fold(input)
	if in == "" {
		return "", false
	}
	limit := 2
	switch n := len([]rune(in)); {
	case n <= 3:
		limit = 1
	case n >= 12:
		limit = 3
	}

	best, bestDist := "", limit+1
	for _, c := range candidates {
		d := distance(in, fold(c))
		if last := lastSegment(c); last != c {
			if ld := distance(in, fold(last)); ld < d {
				d = ld
			}
		}
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, best != ""
}

// DidYouMean formats the Suggest result as a help line, or returns "".
func DidYouMean(input string, candidates []string) string {
	if match, ok := Suggest(input, candidates); ok {
		return fmt.Sprintf("did you mean '%s'?", match)
	}
	return ""
}

// fold lowercases s and drops the separators authors swap freely.
func fold(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '-', '_', ' ':
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// lastSegment strips row indices and parents from a data path:
// "pets[0].name" -> "name".
func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.IndexByte(path, '['); i >= 0 {
		path = path[:i]
	}
	return path
}

// distance is the Levenshtein distance between a and b, counted in runes.
func distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		diag := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			above := row[j]
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			row[j] = min(row[j]+1, row[j-1]+1, diag+cost)
			diag = above
		}
	}
	return row[len(rb)]
}
