package svg

import (
	"fmt"

	"github.com/beevik/etree"
)

// Serialize applies attrs to the root element of doc, replacing attributes of
// the same name, and returns the markup of the root element alone.
func Serialize(doc *etree.Document, attrs *Attributes) (string, error) {
	root := doc.Root()
	if root == nil {
		return "", ErrMalformed
	}

	if attrs != nil {
		for _, name := range attrs.names {
			root.CreateAttr(name, attrs.values[name])
		}
	}

	out := etree.NewDocument()
	out.SetRoot(root.Copy())
	markup, err := out.WriteToString()
	if err != nil {
		return "", fmt.Errorf("write svg: %w", err)
	}
	return markup, nil
}

// Clean parses, sanitizes and serializes content without presentation
// attributes.
func Clean(content []byte) (string, error) {
	doc, err := Parse(content)
	if err != nil {
		return "", err
	}
	Sanitize(doc)
	return Serialize(doc, nil)
}
