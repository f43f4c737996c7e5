package availability

import (
	"regexp"
	"strings"
)

// TitlePrefix starts every submitted entry title
const TitlePrefix = "Available: "

var titlePattern = regexp.MustCompile(`^(.+?)\s*\((.+?)\)$`)

// EncodeTitle builds "Available: <name> (<email>)"
func EncodeTitle(name, email string) string {
	return TitlePrefix + name + " (" + email + ")"
}

// ParseTitle extracts name and email from an encoded title. A title that does
// not match yields the whole title, minus the prefix, as the name and an empty email.
func ParseTitle(title string) (name, email string) {
	rest := strings.TrimPrefix(title, TitlePrefix)
	if m := titlePattern.FindStringSubmatch(rest); m != nil {
		return m[1], m[2]
	}
	return rest, ""
}
