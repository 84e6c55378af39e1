package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/masa162/imgbase/internal/service"
)

type deleteBatchRequest struct {
	ImageIDs []string `json:"imageIds"`
}

func (h HandlerSet) ListImages(c *gin.Context) {
	result, err := h.library.List(c.Request.Context(), service.ListRequest{
		Limit:  c.Query("limit"),
		Cursor: c.Query("cursor"),
		Query:  c.Query("q"),
		Status: c.Query("status"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h HandlerSet) DeleteImages(c *gin.Context) {
	var req deleteBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}

	result, err := h.library.DeleteBatch(c.Request.Context(), req.ImageIDs)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
