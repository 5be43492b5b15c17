package handlers

import (
	"errors"
	"net/http"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"svgembed/internal/media/svg"
)

// imageHandle is either an uploaded image id or inline file content.
type imageHandle struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

type renderRequest struct {
	Src                string       `json:"src"`
	Image              *imageHandle `json:"image"`
	TreatIDAsReference bool         `json:"treatIdAsReference"`
	ID                 any          `json:"id"`
	Class              any          `json:"class"`
	Width              any          `json:"width"`
	Height             any          `json:"height"`
	ViewBox            any          `json:"viewBox"`
	Data               svg.AttrList `json:"data"`
	AdditionalAttrs    svg.AttrList `json:"additionalAttributes"`
}

func (r renderRequest) input() svg.EmbedInput {
	in := svg.EmbedInput{
		Src:                r.Src,
		TreatIDAsReference: r.TreatIDAsReference,
		Presentation: svg.Presentation{
			ID:         r.ID,
			Class:      r.Class,
			Width:      r.Width,
			Height:     r.Height,
			ViewBox:    r.ViewBox,
			Data:       r.Data,
			Additional: r.AdditionalAttrs,
		},
	}
	if r.Image != nil {
		in.Image = r.Image.source()
	}
	return in
}

func (h imageHandle) source() *svg.Source {
	if h.Content == "" {
		if h.ID == "" {
			return nil
		}
		return &svg.Source{Identifier: "image:" + h.ID}
	}
	ext := strings.TrimPrefix(path.Ext(h.Filename), ".")
	if h.Filename == "" {
		ext = "svg"
	}
	return &svg.Source{Content: []byte(h.Content), Extension: ext}
}

type renderItem struct {
	Markup *string `json:"markup,omitempty"`
	Error  string  `json:"error,omitempty"`
}

func (h HandlerSet) Render(c *gin.Context) {
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	markup, err := h.pipeline.NewSession().Embed(c.Request.Context(), req.input())
	if err != nil {
		c.JSON(renderStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"markup": markup})
}

type batchRequest struct {
	Items []renderRequest `json:"items" binding:"required,max=100"`
}

// RenderBatch renders every item in one session, so repeated files and
// attribute sets are parsed once.
func (h HandlerSet) RenderBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := h.pipeline.NewSession()
	items := make([]renderItem, 0, len(req.Items))
	for _, item := range req.Items {
		markup, err := session.Embed(c.Request.Context(), item.input())
		if err != nil {
			items = append(items, renderItem{Error: err.Error()})
			continue
		}
		items = append(items, renderItem{Markup: &markup})
	}

	hits, misses := session.Cache().Stats()
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"cache": gin.H{"hits": hits, "misses": misses},
	})
}

func renderStatus(err error) int {
	var inputErr *svg.InputError
	switch {
	case errors.Is(err, svg.ErrResolve):
		return http.StatusNotFound
	case errors.Is(err, svg.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &inputErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// presentationFromQuery maps query parameters onto root attributes: the
// named slots by key, data-* into data, anything else as additional.
func presentationFromQuery(query map[string][]string, skip ...string) svg.Presentation {
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var p svg.Presentation
	for _, key := range keys {
		values := query[key]
		if len(values) == 0 || slices.Contains(skip, key) {
			continue
		}
		value := values[len(values)-1]
		switch key {
		case "id":
			p.ID = value
		case "class":
			p.Class = value
		case "width":
			p.Width = value
		case "height":
			p.Height = value
		case "viewBox":
			p.ViewBox = value
		default:
			if name, ok := strings.CutPrefix(key, "data-"); ok {
				p.Data = append(p.Data, svg.Attr{Name: name, Value: value})
			} else {
				p.Additional = append(p.Additional, svg.Attr{Name: key, Value: value})
			}
		}
	}
	return p
}
