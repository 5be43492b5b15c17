package markup

import (
	"errors"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ErrInvalidPhoneNumber = errors.New("invalid format, required format e.g. +49 (0) 7777 77 77 77")

	phonePattern   = regexp.MustCompile(`^\+(\d{1,3})\s?(\(0\))?\s?\d{1,4}[\s.-]?\d{1,4}[\s.-]?\d{1,4}[\s.-]?\d{1,4}$`)
	phoneSeparator = regexp.MustCompile(`\s+|\(0\)|[\s.-]`)

	textPolicy = bluemonday.StrictPolicy()
)

const DefaultScheme = "tel:"

// TelLink renders an anchor whose href is the compacted international number
// behind scheme and whose text is the number as written.
func TelLink(number, scheme string, attrs ...Attr) (string, error) {
	if !phonePattern.MatchString(number) {
		return "", ErrInvalidPhoneNumber
	}
	if scheme == "" {
		scheme = DefaultScheme
	}

	t := &tag{name: "a", attrs: append([]Attr(nil), attrs...)}
	t.add("href", scheme+phoneSeparator.ReplaceAllString(number, ""))
	t.content = textPolicy.Sanitize(number)
	return t.render(), nil
}

// CompactNumber strips the separators TelLink removes for its href.
func CompactNumber(number string) string {
	return phoneSeparator.ReplaceAllString(strings.TrimSpace(number), "")
}
