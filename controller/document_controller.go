package controller

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	service "github.com/clauselens/backend/service"
)

// DocumentController manages HTTP requests for document upload and analysis.
type DocumentController struct {
	service *service.DocumentService
}

// NewDocumentController initializes the controller with the service
func NewDocumentController(service *service.DocumentService) *DocumentController {
	return &DocumentController{service}
}

// UploadDocument handles the file upload request and starts the background pipeline.
func (c *DocumentController) UploadDocument(ctx *gin.Context) {
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Failed to get file from request"})
		return
	}
	defer file.Close()

	pdfBytes, err := io.ReadAll(file)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	doc, err := c.service.CreateDocument(header.Filename, pdfBytes)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("ERROR uploading document: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{
		"documentId": doc.ID,
		"pdfUrl":     "/pdf/" + doc.ID,
		"message":    "Upload successful, analysis started",
	})
}

// GetDocument returns the polling projection for a document.
func (c *DocumentController) GetDocument(ctx *gin.Context) {
	id := ctx.Param("id")
	projection, err := c.service.GetDocument(id)
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return
		}
		log.Printf("ERROR fetching document %s: %v", id, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, projection)
}

// GetPDF serves the document's PDF: a redirect to a presigned URL when blob
// storage is configured, the raw bytes otherwise.
func (c *DocumentController) GetPDF(ctx *gin.Context) {
	id := ctx.Param("id")
	location, err := c.service.GetPDF(id)
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "PDF not found"})
			return
		}
		log.Printf("ERROR serving PDF %s: %v", id, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if location.URL != "" {
		ctx.Redirect(http.StatusFound, location.URL)
		return
	}
	ctx.Header("Content-Disposition", `inline; filename="`+location.Filename+`"`)
	ctx.Data(http.StatusOK, "application/pdf", location.Data)
}

// GetAllDocuments retrieves all documents for the dashboard.
func (dc *DocumentController) GetAllDocuments(c *gin.Context) {
	docs, err := dc.service.GetAllDocuments()
	if err != nil {
		log.Printf("Error fetching documents: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve documents",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"total":     len(docs),
	})
}

// SearchDocuments runs a full-text search over completed documents.
func (c *DocumentController) SearchDocuments(ctx *gin.Context) {
	query := ctx.Query("q")
	if query == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}

	results, err := c.service.SearchDocuments(query)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message": "Search completed successfully",
		"results": results,
	})
}
