package svg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

var (
	ErrMalformed  = errors.New("malformed svg document")
	ErrNotSVGRoot = errors.New("root element is not svg")
)

// Parse reads an SVG document into a DOM. The decoder never resolves
// external entities or DTDs, and undeclared entities fail the parse.
// Failures are reported as ErrMalformed or ErrNotSVGRoot.
func Parse(content []byte) (doc *etree.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	doc = etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	doc.ReadSettings.Permissive = false

	if err := doc.ReadFromBytes(content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	root := doc.Root()
	if root == nil {
		return nil, ErrMalformed
	}
	if !strings.EqualFold(root.Tag, "svg") {
		return nil, fmt.Errorf("%w: %s", ErrNotSVGRoot, root.FullTag())
	}

	return doc, nil
}
