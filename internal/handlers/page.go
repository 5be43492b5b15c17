package handlers

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

type previewView struct {
	Title        string
	Status       string
	Markup       string
	ThumbnailURL string
}

// previewPage embeds already sanitized markup; everything else is escaped.
func previewPage(v previewView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`+
			templ.EscapeString(v.Title)+`</title></head><body><main><h1>`+
			templ.EscapeString(v.Title)+`</h1><p class="status">`+
			templ.EscapeString(v.Status)+`</p><figure class="inline">`); err != nil {
			return err
		}
		if v.Markup == "" {
			if _, err := io.WriteString(w, `<figcaption>not renderable</figcaption>`); err != nil {
				return err
			}
		} else if err := templ.Raw(v.Markup).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</figure>`); err != nil {
			return err
		}
		if v.ThumbnailURL != "" {
			if _, err := io.WriteString(w, `<figure class="raster"><img alt="preview" src="`+
				templ.EscapeString(v.ThumbnailURL)+`"></figure>`); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}
