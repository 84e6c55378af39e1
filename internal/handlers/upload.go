package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/masa162/imgbase/internal/service"
)

type completeRequest struct {
	ImageID string `json:"imageId"`
}

func (h HandlerSet) SignUpload(c *gin.Context) {
	var req service.SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}

	result, err := h.upload.Sign(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h HandlerSet) ProxyUpload(c *gin.Context) {
	result, err := h.upload.Proxy(c.Request.Context(), service.ProxyInput{
		ContentType: c.GetHeader("Content-Type"),
		FileName:    c.GetHeader("X-Filename"),
		Body:        c.Request.Body,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h HandlerSet) CompleteUpload(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}

	result, err := h.upload.Complete(c.Request.Context(), req.ImageID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
