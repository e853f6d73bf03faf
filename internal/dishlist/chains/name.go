package chains

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const trailingSeparators = " \t-–—|"

var (
	// "<base> - <suffix>" with a spaced dash, or "<base> | <suffix>".
	separatorPattern = regexp.MustCompile(`^(.+?)(?:\s+[-–—]\s+|\s*\|\s*)(.+)$`)
	// "<base>, <suffix>"
	commaPattern = regexp.MustCompile(`^(.+?),\s*(.+)$`)
)

// ParsedName is a restaurant name split into its brand and location parts.
type ParsedName struct {
	Cleaned string // input with surrounding whitespace and trailing separators removed
	Base    string
	Suffix  string // empty when no location suffix was found
}

// NameParser splits location suffixes off restaurant names. The zero value
// recognizes separator and comma suffixes only.
type NameParser struct {
	neighbourhoods []string // longest first
}

func NewNameParser(neighbourhoods []string) *NameParser {
	list := make([]string, 0, len(neighbourhoods))
	for _, n := range neighbourhoods {
		if n = strings.TrimSpace(n); n != "" {
			list = append(list, n)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return utf8.RuneCountInString(list[i]) > utf8.RuneCountInString(list[j])
	})
	return &NameParser{neighbourhoods: list}
}

// ParseRestaurantName is a one-off NewNameParser(neighbourhoods).Parse(name).
func ParseRestaurantName(name string, neighbourhoods []string) ParsedName {
	return NewNameParser(neighbourhoods).Parse(name)
}

// Parse tries, in order, a separator suffix, a comma suffix and a trailing
// known neighbourhood. Without a match the base is the cleaned name.
func (p *NameParser) Parse(name string) ParsedName {
	cleaned := CleanName(name)
	parsed := ParsedName{Cleaned: cleaned, Base: cleaned}
	if cleaned == "" {
		return parsed
	}

	for _, re := range []*regexp.Regexp{separatorPattern, commaPattern} {
		if m := re.FindStringSubmatch(cleaned); m != nil {
			base, suffix := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
			if base != "" && suffix != "" {
				parsed.Base, parsed.Suffix = base, suffix
				return parsed
			}
		}
	}

	for _, n := range p.neighbourhoods {
		if base, ok := cutNeighbourhood(cleaned, n); ok {
			parsed.Base, parsed.Suffix = base, n
			return parsed
		}
	}
	return parsed
}

// CleanName trims whitespace and any trailing separator punctuation. A name
// made only of whitespace and separators cleans to "".
func CleanName(name string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(name), trailingSeparators))
}

// cutNeighbourhood matches n case-insensitively as the final whole words of
// name and returns what precedes it. The tail is cut by runes since case
// folding can change a rune's encoded width.
func cutNeighbourhood(name, n string) (string, bool) {
	runes, want := []rune(name), utf8.RuneCountInString(n)
	if len(runes) <= want {
		return "", false
	}
	cut := len(runes) - want
	if !strings.EqualFold(string(runes[cut:]), n) {
		return "", false
	}
	head := string(runes[:cut])
	if !strings.HasSuffix(head, " ") {
		return "", false
	}
	base := strings.TrimSpace(head)
	return base, base != ""
}

// NeighbourhoodFromAddress picks the locality part of a comma separated
// address, the second to last component. Single-part addresses are returned
// whole.
func NeighbourhoodFromAddress(address string) string {
	parts := strings.Split(address, ",")
	if len(parts) < 2 {
		return strings.TrimSpace(address)
	}
	return strings.TrimSpace(parts[len(parts)-2])
}
