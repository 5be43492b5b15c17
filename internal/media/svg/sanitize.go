package svg

import (
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

// Elements removed together with their subtree. Compared case-insensitively
// because an HTML parser lowercases tag names of inline SVG.
var forbiddenElements = map[string]struct{}{
	"script":        {},
	"foreignobject": {},
	"iframe":        {},
	"object":        {},
	"embed":         {},
	"image":         {},
	"feimage":       {},
}

var externalURLPattern = regexp.MustCompile(`(?i)url\(\s*['"]?(https?:|data:|javascript:)`)

// Sanitize strips dangerous nodes and attributes from doc in place. It never
// fails, and running it twice yields the same document.
//
// The url() check only inspects values wrapped in url(...). A raw
// "javascript:" value outside href/xlink:href is not caught.
func Sanitize(doc *etree.Document) {
	if doc == nil {
		return
	}
	for i := len(doc.Child) - 1; i >= 0; i-- {
		switch doc.Child[i].(type) {
		case *etree.Directive:
			doc.RemoveChildAt(i)
		}
	}
	if root := doc.Root(); root != nil {
		sanitizeElement(root)
	}
}

func sanitizeElement(el *etree.Element) {
	el.Attr = filterAttrs(el.Attr)

	for i := len(el.Child) - 1; i >= 0; i-- {
		switch tok := el.Child[i].(type) {
		case *etree.Element:
			if isForbiddenElement(tok) {
				el.RemoveChildAt(i)
				continue
			}
			sanitizeElement(tok)
		case *etree.Directive:
			el.RemoveChildAt(i)
		case *etree.ProcInst, *etree.Comment:
			// An HTML parser closes both earlier than XML does, so their
			// raw text could reopen markup once embedded.
			el.RemoveChildAt(i)
		}
	}
}

func isForbiddenElement(el *etree.Element) bool {
	_, ok := forbiddenElements[strings.ToLower(el.Tag)]
	return ok
}

func filterAttrs(attrs []etree.Attr) []etree.Attr {
	if len(attrs) == 0 {
		return attrs
	}
	kept := attrs[:0:0]
	for _, attr := range attrs {
		if isDangerousAttr(attr) {
			continue
		}
		kept = append(kept, attr)
	}
	return kept
}

func isDangerousAttr(attr etree.Attr) bool {
	local := strings.ToLower(attr.Key)
	full := strings.ToLower(attr.FullKey())

	if strings.HasPrefix(local, "on") || strings.HasPrefix(full, "on") {
		return true
	}
	if local == "style" {
		return true
	}
	if local == "href" && attr.Space != "xmlns" {
		value := strings.TrimLeft(attr.Value, " \t\r\n\f\v")
		if value == "" || !strings.HasPrefix(value, "#") {
			return true
		}
	}
	return externalURLPattern.MatchString(attr.Value)
}
