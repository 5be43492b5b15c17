package markup

import (
	"html"
	"strings"
)

// Attr is one attribute of a generated tag. Values are escaped on render.
type Attr struct {
	Name  string
	Value string
}

type tag struct {
	name         string
	attrs        []Attr
	content      string
	forceClosing bool
}

func (t *tag) add(name, value string) {
	for i := range t.attrs {
		if t.attrs[i].Name == name {
			t.attrs[i].Value = value
			return
		}
	}
	t.attrs = append(t.attrs, Attr{Name: name, Value: value})
}

func (t *tag) render() string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(t.name)
	for _, attr := range t.attrs {
		if !validAttrName(attr.Name) {
			continue
		}
		b.WriteString(" ")
		b.WriteString(attr.Name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(attr.Value))
		b.WriteString(`"`)
	}
	if t.content == "" && !t.forceClosing {
		b.WriteString(" />")
		return b.String()
	}
	b.WriteString(">")
	b.WriteString(t.content)
	b.WriteString("</")
	b.WriteString(t.name)
	b.WriteString(">")
	return b.String()
}

func validAttrName(name string) bool {
	if name == "" || strings.HasPrefix(strings.ToLower(name), "on") {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == ':':
		default:
			return false
		}
	}
	return true
}
