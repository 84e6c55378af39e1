package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/masa162/imgbase/internal/config"
	"github.com/masa162/imgbase/internal/middleware"
	"github.com/masa162/imgbase/internal/service"
)

// CheckFunc reports whether a backing service is reachable.
type CheckFunc func(ctx context.Context) error

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	upload   *service.UploadService
	library  *service.LibraryService
	delivery *service.DeliveryService
	checks   map[string]CheckFunc
}

// NewHandlerSet wires the services over the given stores. checks are reported
// by /healthz under their map key.
func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, images service.ImageStore, blobs service.BlobStore, checks map[string]CheckFunc) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		upload:   service.NewUploadService(images, blobs, cfg, log),
		library:  service.NewLibraryService(images, blobs, log),
		delivery: service.NewDeliveryService(images, blobs, log),
		checks:   checks,
	}
}

func (h HandlerSet) Register(router gin.IRouter) {
	router.GET("/healthz", h.Health)

	protected := router.Group("")
	protected.Use(middleware.BasicAuth(h.cfg.Auth))
	{
		protected.POST("/upload/sign", h.SignUpload)
		protected.POST("/upload/proxy", h.ProxyUpload)
		protected.POST("/upload/complete", h.CompleteUpload)
		protected.GET("/images", h.ListImages)
		protected.DELETE("/images/batch", h.DeleteImages)
	}

	router.GET("/i/:identifier/:sizeSpec", h.Variant)
	router.GET("/:shortId", h.ShortLink)
}

// NotFound answers unmatched routes.
func (h HandlerSet) NotFound(c *gin.Context) {
	c.String(http.StatusNotFound, "Not found")
}

func (h HandlerSet) writeError(c *gin.Context, err error) {
	svcErr := service.AsError(err)
	status := svcErr.Status()

	if status >= http.StatusInternalServerError {
		h.log.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(c)).
			Str("path", c.FullPath()).
			Msg("request failed")
	}

	body := gin.H{"error": svcErr.Code}
	if svcErr.Message != "" {
		body["message"] = svcErr.Message
	}
	c.JSON(status, body)
}

func (h HandlerSet) writeTextError(c *gin.Context, err error) {
	svcErr := service.AsError(err)
	c.String(svcErr.Status(), svcErr.Code)
}

func invalidJSON(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
}
