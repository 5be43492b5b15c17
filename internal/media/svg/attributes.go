package svg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Attr is a single caller supplied attribute. Value is nil when the
// attribute should be omitted.
type Attr struct {
	Name  string
	Value any
}

// AttrList is an ordered attribute mapping. Decoding from a JSON object keeps
// the order in which the keys appear.
type AttrList []Attr

func (l *AttrList) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*l = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("attribute list must be an object")
	}

	out := AttrList{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("attribute %q: %w", key, err)
		}
		out = append(out, Attr{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*l = out
	return nil
}

// Presentation holds the attributes a caller wants on the embedded root.
// Named slots take precedence over Additional entries of the same name.
type Presentation struct {
	ID         any
	Class      any
	Width      any
	Height     any
	ViewBox    any
	Data       AttrList
	Additional AttrList
}

// Attributes is an insertion ordered name to value mapping.
type Attributes struct {
	names  []string
	values map[string]string
}

func NewAttributes() *Attributes {
	return &Attributes{values: make(map[string]string)}
}

func (a *Attributes) Set(name, value string) {
	if _, ok := a.values[name]; !ok {
		a.names = append(a.names, name)
	}
	a.values[name] = value
}

func (a *Attributes) Get(name string) (string, bool) {
	v, ok := a.values[name]
	return v, ok
}

func (a *Attributes) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

func (a *Attributes) Len() int {
	return len(a.names)
}

// Names returns the attribute names in insertion order.
func (a *Attributes) Names() []string {
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

// Sorted returns name/value pairs ordered by name.
func (a *Attributes) Sorted() [][2]string {
	names := a.Names()
	sort.Strings(names)
	out := make([][2]string, 0, len(names))
	for _, name := range names {
		out = append(out, [2]string{name, a.values[name]})
	}
	return out
}

// Normalize flattens a presentation request into the canonical attribute
// map: id, class, width, height, viewBox, then data-* entries, then
// additional entries that do not collide with a name already set. Names
// failing IsAllowedAttributeName and nil values are dropped.
func Normalize(p Presentation) *Attributes {
	attrs := NewAttributes()

	named := []Attr{
		{Name: "id", Value: p.ID},
		{Name: "class", Value: p.Class},
		{Name: "width", Value: p.Width},
		{Name: "height", Value: p.Height},
		{Name: "viewBox", Value: p.ViewBox},
	}
	for _, attr := range named {
		if value, ok := stringify(attr.Value); ok {
			attrs.Set(attr.Name, value)
		}
	}

	for _, attr := range p.Data {
		key := strings.TrimSpace(attr.Name)
		if key == "" {
			continue
		}
		name := "data-" + key
		if !IsAllowedAttributeName(name) {
			continue
		}
		if value, ok := stringify(attr.Value); ok {
			attrs.Set(name, value)
		}
	}

	for _, attr := range p.Additional {
		if attrs.Has(attr.Name) || !IsAllowedAttributeName(attr.Name) {
			continue
		}
		if value, ok := stringify(attr.Value); ok {
			attrs.Set(attr.Name, value)
		}
	}

	return attrs
}

// IsAllowedAttributeName reports whether a caller supplied attribute may be
// placed on the embedded root element. The deny checks run before the allow
// list, so "onclick" or "xmlns:id" never pass.
func IsAllowedAttributeName(name string) bool {
	if name == "" || !isNameToken(name) {
		return false
	}
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "on") || strings.HasPrefix(lower, "xmlns") || strings.Contains(name, ":") {
		return false
	}

	switch name {
	case "id", "class", "width", "height", "viewBox":
		return true
	}

	if (strings.HasPrefix(name, "data-") && len(name) > len("data-")) ||
		(strings.HasPrefix(name, "aria-") && len(name) > len("aria-")) {
		return true
	}

	switch lower {
	case "role", "tabindex", "focusable":
		return true
	}
	return false
}

// isNameToken limits names to characters that serialize as a single
// attribute name.
func isNameToken(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9', c == '-', c == '.', c == '_', c == ':':
			if i == 0 && c != '_' && c != ':' {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func stringify(v any) (string, bool) {
	switch value := v.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(value), true
	case *string:
		if value == nil {
			return "", false
		}
		return strings.TrimSpace(*value), true
	case json.Number:
		return strings.TrimSpace(value.String()), true
	case bool:
		return strconv.FormatBool(value), true
	case int:
		return strconv.Itoa(value), true
	case int64:
		return strconv.FormatInt(value, 10), true
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true
	case fmt.Stringer:
		return strings.TrimSpace(value.String()), true
	default:
		return "", false
	}
}
