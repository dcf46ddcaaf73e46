package controller

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	service "github.com/clauselens/backend/service"
)

// Ask answers a question grounded in a completed document's content.
func (c *DocumentController) Ask(ctx *gin.Context) {
	var req struct {
		DocumentID string `json:"documentId" binding:"required"`
		Query      string `json:"query" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "documentId and query are required"})
		return
	}

	result, err := c.service.Ask(ctx.Request.Context(), strings.TrimSpace(req.DocumentID), strings.TrimSpace(req.Query))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrDocumentNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		case errors.Is(err, service.ErrDocumentNotReady):
			ctx.JSON(http.StatusConflict, gin.H{"error": "Document analysis not completed yet"})
		default:
			log.Printf("ERROR answering question for %s: %v", req.DocumentID, err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate answer. Please try again."})
		}
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// Health is the liveness and configuration probe.
func (c *DocumentController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  c.service.Health(),
	})
}
