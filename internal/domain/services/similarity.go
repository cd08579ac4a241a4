package services

import (
	"strings"
	"unicode"
)

// leetSubstitutions maps common leet characters back to their letter form.
// Applied during username normalization so "a1ice" and "alice" compare equal.
var leetSubstitutions = map[rune]rune{
	'0': 'o',
	'1': 'l',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'7': 't',
	'8': 'b',
	'9': 'g',
	'@': 'a',
	'$': 's',
	'!': 'i',
}

// normalizeUsername folds case, strips separators and reverses known leet
// substitutions, reducing a handle to its comparable core.
func normalizeUsername(username string) string {
	var b strings.Builder
	b.Grow(len(username))
	for _, r := range strings.ToLower(strings.TrimSpace(username)) {
		switch {
		case r == '.' || r == '_' || r == '-' || r == ' ':
			continue
		default:
			if sub, ok := leetSubstitutions[r]; ok {
				b.WriteRune(sub)
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// normalizeEmail lowercases and trims an email address. Gmail-style dot and
// plus-suffix variations in the local part are collapsed as well.
func normalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local, domain := email[:at], email[at+1:]
	if plus := strings.Index(local, "+"); plus >= 0 {
		local = local[:plus]
	}
	local = strings.ReplaceAll(local, ".", "")
	return local + "@" + domain
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// similarityRatio converts edit distance to a [0,1] similarity score.
func similarityRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	return 1.0 - float64(levenshteinDistance(a, b))/float64(longest)
}

// tokenize splits free text into lowercase word tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '#' && r != '@'
	})
}

// tokenOverlap computes the Jaccard similarity of the token sets of two texts.
func tokenOverlap(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		setB[t] = struct{}{}
	}
	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// domainContainment scores two domain names: 1.0 for exact match, 0.8 when one
// is a subdomain of the other, otherwise 0.
func domainContainment(a, b string) float64 {
	a = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(a), "."))
	b = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(b), "."))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	if strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a) {
		return 0.8
	}
	return 0
}

// normalizeRegion reduces declared locations to a coarse comparable region:
// the last comma-separated segment of the first non-empty location, folded.
// "Berlin, Germany" and "Hamburg,germany" land in the same bucket.
func normalizeRegion(locations []string) string {
	for _, loc := range locations {
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}
		parts := strings.Split(loc, ",")
		region := strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
		if region != "" {
			return region
		}
	}
	return ""
}

// clamp bounds a value to [min, max]
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
