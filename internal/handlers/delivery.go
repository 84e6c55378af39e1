package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/masa162/imgbase/internal/metrics"
	"github.com/masa162/imgbase/internal/service"
)

func (h HandlerSet) Variant(c *gin.Context) {
	d, err := h.delivery.Variant(c.Request.Context(), c.Param("identifier"), c.Param("sizeSpec"))
	h.serve(c, "variant", d, err)
}

func (h HandlerSet) ShortLink(c *gin.Context) {
	d, err := h.delivery.Short(c.Request.Context(), c.Param("shortId"))
	h.serve(c, "short", d, err)
}

func (h HandlerSet) serve(c *gin.Context, kind string, d *service.Delivery, err error) {
	if err != nil {
		status := service.AsError(err).Status()
		metrics.DeliveriesTotal.WithLabelValues(kind, strconv.Itoa(status)).Inc()
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("delivery failed")
		}
		h.writeTextError(c, err)
		return
	}
	defer d.Body.Close()

	extra := map[string]string{
		"Cache-Control": service.CacheControlImmutable,
	}
	if d.ETag != "" {
		extra["ETag"] = quoteETag(d.ETag)
	}
	if !d.LastModified.IsZero() {
		extra["Last-Modified"] = d.LastModified.UTC().Format(http.TimeFormat)
	}

	metrics.DeliveriesTotal.WithLabelValues(kind, strconv.Itoa(http.StatusOK)).Inc()
	c.DataFromReader(http.StatusOK, d.Size, d.ContentType, d.Body, extra)
}

func quoteETag(etag string) string {
	if strings.HasPrefix(etag, `"`) || strings.HasPrefix(etag, "W/") {
		return etag
	}
	return `"` + etag + `"`
}
