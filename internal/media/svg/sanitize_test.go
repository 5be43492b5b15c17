package svg

import (
	"bytes"
	"strings"
	"testing"

	svgo "github.com/ajstarks/svgo"
	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
)

func clean(t *testing.T, input string) string {
	t.Helper()
	out, err := Clean([]byte(input))
	require.NoError(t, err)
	return out
}

func TestSanitizeRemovesDangerousElements(t *testing.T) {
	svgs := []string{
		`<svg><script>alert(1)</script><g/></svg>`,
		`<svg><g><g><script type="text/javascript">alert(1)</script></g></g></svg>`,
		`<svg><foreignObject><body xmlns="http://www.w3.org/1999/xhtml"><p>x</p></body></foreignObject></svg>`,
		`<svg><g><iframe src="https://evil.example"/></g></svg>`,
		`<svg><object data="https://evil.example/x.swf"/></svg>`,
		`<svg><embed src="https://evil.example/x.swf"/></svg>`,
		`<svg><image href="https://evil.example/track.png"/></svg>`,
		`<svg><filter><feImage href="#local"/></filter></svg>`,
		`<svg xmlns:s="http://www.w3.org/2000/svg"><s:script>alert(1)</s:script></svg>`,
		`<svg><SCRIPT>alert(1)</SCRIPT></svg>`,
		`<svg><script/><script/><script/><g/></svg>`,
	}

	forbidden := []string{"<script", "foreignobject", "<iframe", "<object", "<embed", "<image", "feimage", ":script"}

	for _, input := range svgs {
		out := strings.ToLower(clean(t, input))
		require.NotEmpty(t, out, input)
		for _, name := range forbidden {
			require.NotContains(t, out, name, input)
		}
	}
}

func TestSanitizeKeepsSiblingsAfterRemoval(t *testing.T) {
	out := clean(t, `<svg><script/><circle r="1"/><script/><circle r="2"/><image/><circle r="3"/></svg>`)
	require.Equal(t, `<svg><circle r="1"/><circle r="2"/><circle r="3"/></svg>`, out)
}

func TestSanitizeStripsEventHandlersAndStyle(t *testing.T) {
	cases := map[string]string{
		`<svg><rect onclick="alert(1)" width="10"/></svg>`:          `<svg><rect width="10"/></svg>`,
		`<svg onload="alert(1)" width="5"><g/></svg>`:               `<svg width="5"><g/></svg>`,
		`<svg><rect ONMOUSEOVER="alert(1)" height="2"/></svg>`:      `<svg><rect height="2"/></svg>`,
		`<svg><rect style="fill:red" x="1"/></svg>`:                 `<svg><rect x="1"/></svg>`,
		`<svg><circle STYLE="fill:red" r="4" onfocus="x()"/></svg>`: `<svg><circle r="4"/></svg>`,
	}

	for input, expected := range cases {
		require.Equal(t, expected, clean(t, input), input)
	}
}

func TestSanitizeHrefPolicy(t *testing.T) {
	input := `<svg xmlns:xlink="http://www.w3.org/1999/xlink">` +
		`<use href="#icon-a"/>` +
		`<use xlink:href="  #icon-b"/>` +
		`<use href="https://evil.example/x"/>` +
		`<a xlink:href="javascript:alert(1)"/>` +
		`<use href=""/>` +
		`<use href="   "/>` +
		`</svg>`

	expected := `<svg xmlns:xlink="http://www.w3.org/1999/xlink">` +
		`<use href="#icon-a"/>` +
		`<use xlink:href="  #icon-b"/>` +
		`<use/>` +
		`<a/>` +
		`<use/>` +
		`<use/>` +
		`</svg>`

	require.Equal(t, expected, clean(t, input))
}

func TestSanitizeExternalURLReferences(t *testing.T) {
	input := `<svg>` +
		`<rect fill="url(#grad)"/>` +
		`<rect fill="url( 'https://evil.example/a')"/>` +
		`<rect filter="URL(data:image/svg+xml;base64,AAAA)"/>` +
		`<rect mask="url(&quot;javascript:alert(1)&quot;)"/>` +
		`<rect fill="url(http://evil.example/b)"/>` +
		`</svg>`

	expected := `<svg><rect fill="url(#grad)"/><rect/><rect/><rect/><rect/></svg>`
	require.Equal(t, expected, clean(t, input))
}

// Only the four listed schemes are matched inside url(); other schemes and
// escaped forms pass through unchanged.
func TestSanitizeURLDenylistIsSchemeBound(t *testing.T) {
	input := `<svg>` +
		`<rect fill="url(ftp://evil.example/a)"/>` +
		`<rect fill="url(\68ttp://evil.example/b)"/>` +
		`</svg>`

	require.Equal(t, input, clean(t, input))
}

func TestSanitizeRemovesDoctypeCommentsAndProcessingInstructions(t *testing.T) {
	input := `<?xml version="1.0"?>` +
		`<!DOCTYPE svg PUBLIC "-//W3C//DTD SVG 1.1//EN" "http://www.w3.org/Graphics/SVG/1.1/DTD/svg11.dtd">` +
		`<svg><!-- icon --><?xml-stylesheet href="https://evil.example/x.css"?><circle r="1"/></svg>`

	doc, err := Parse([]byte(input))
	require.NoError(t, err)
	Sanitize(doc)

	for _, tok := range doc.Child {
		_, isDirective := tok.(*etree.Directive)
		require.False(t, isDirective)
	}

	out, err := Serialize(doc, nil)
	require.NoError(t, err)
	require.Equal(t, `<svg><circle r="1"/></svg>`, out)
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{
		`<svg xmlns="http://www.w3.org/2000/svg" onload="evil()"><script>alert(1)</script><circle r="5"/></svg>`,
		`<svg><g style="x"><use href="#a"/><use href="//evil"/><rect fill="url(https://x)"/></g></svg>`,
		`<svg viewBox="0 0 24 24"><path d="M0 0h24v24H0z" fill="none"/></svg>`,
	}

	for _, input := range inputs {
		once := clean(t, input)
		twice := clean(t, once)
		require.Equal(t, once, twice, input)
	}
}

func TestSanitizePreservesGeneratedIcon(t *testing.T) {
	var buf bytes.Buffer
	canvas := svgo.New(&buf)
	canvas.Start(24, 24)
	canvas.Def()
	canvas.Gid("icon-a")
	canvas.Circle(12, 12, 10, "fill:red")
	canvas.Gend()
	canvas.DefEnd()
	canvas.Use(0, 0, "#icon-a")
	canvas.Use(0, 0, "https://evil.example/sprite.svg#x")
	canvas.End()

	out := clean(t, buf.String())

	require.Contains(t, out, `<circle cx="12" cy="12" r="10"/>`)
	require.Contains(t, out, `xlink:href="#icon-a"`)
	require.Contains(t, out, `<g id="icon-a">`)
	require.NotContains(t, out, "evil.example")
	require.NotContains(t, out, "style=")
	require.NotContains(t, out, "<?xml")
	require.True(t, strings.HasPrefix(out, "<svg"))
}

func TestSanitizeNilDocument(t *testing.T) {
	require.NotPanics(t, func() { Sanitize(nil) })
}
