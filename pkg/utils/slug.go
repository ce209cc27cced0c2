package utils

import (
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile("[^a-z0-9]+")

// Slugify reduces a label to the token used in locally minted layer and
// page ids: lowercase, runs of non-alphanumerics collapsed to one hyphen,
// no leading or trailing hyphen.
func Slugify(s string) string {
	s = nonSlugChars.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}
