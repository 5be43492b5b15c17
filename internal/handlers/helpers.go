package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"svgembed/internal/markup"
)

func (h HandlerSet) TelLink(c *gin.Context) {
	out, err := markup.TelLink(c.Query("number"), c.Query("scheme"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"markup": out})
}

func (h HandlerSet) ClientIP(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ip": markup.ClientIP(c.Request)})
}

func (h HandlerSet) StreamIframe(c *gin.Context) {
	opts := markup.StreamOptions{
		StreamID:   c.Query("streamId"),
		CustomerID: c.Query("customerId"),
		Preload:    c.Query("preload"),
	}
	if opts.StreamID == "" || opts.CustomerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "streamId and customerId are required"})
		return
	}

	for name, target := range map[string]*bool{"loop": &opts.Loop, "muted": &opts.Muted, "autoplay": &opts.Autoplay} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
			return
		}
		*target = v
	}

	c.JSON(http.StatusOK, gin.H{"markup": markup.StreamIframe(opts)})
}
