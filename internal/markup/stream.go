package markup

import (
	"net/url"
	"strings"
)

type StreamOptions struct {
	StreamID   string
	CustomerID string
	// Preload defaults to "none"; set it to "-" to omit the parameter.
	Preload  string
	Loop     bool
	Muted    bool
	Autoplay bool
	Attrs    []Attr
}

// StreamIframe renders the Cloudflare Stream player iframe for a video.
func StreamIframe(opts StreamOptions) string {
	base := "https://customer-" + url.PathEscape(opts.CustomerID) + ".cloudflarestream.com/" +
		url.PathEscape(opts.StreamID) + "/iframe"

	preload := opts.Preload
	if preload == "" {
		preload = "none"
	}

	var params []string
	if preload != "-" {
		params = append(params, "preload="+url.QueryEscape(preload))
	}
	if opts.Loop {
		params = append(params, "loop=true")
	}
	if opts.Muted {
		params = append(params, "muted=true")
	}
	if opts.Autoplay {
		params = append(params, "autoplay=true")
	}

	t := &tag{name: "iframe", attrs: append([]Attr(nil), opts.Attrs...), forceClosing: true}
	t.add("src", base+"?"+strings.Join(params, "&"))
	return t.render()
}
