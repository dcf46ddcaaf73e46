package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	models "github.com/clauselens/backend/models"
)

// DocumentProjection is the polling payload for GET /document/{id}.
// Analysis fields are present only once the document is completed.
type DocumentProjection struct {
	DocumentID      string              `json:"documentId"`
	Status          string              `json:"status"`
	Message         string              `json:"message,omitempty"`
	Filename        string              `json:"filename,omitempty"`
	FileSize        int64               `json:"fileSize,omitempty"`
	PageCount       int                 `json:"pageCount,omitempty"`
	FullText        string              `json:"fullText,omitempty"`
	Analysis        []models.ClauseJSON `json:"analysis,omitempty"`
	DocumentSummary string              `json:"documentSummary,omitempty"`
	FullAnalysis    string              `json:"fullAnalysis,omitempty"`
}

// AskResult is the Q&A payload. HasAI is false when the answer came from the
// degraded no-provider path.
type AskResult struct {
	Answer     string `json:"answer"`
	DocumentID string `json:"documentId"`
	HasAI      bool   `json:"hasAI"`
}

const maxQueryChars = 2000

// GetDocument returns the current projection for a document. Idempotent:
// repeated calls return the latest persisted snapshot.
func (s *DocumentService) GetDocument(id string) (*DocumentProjection, error) {
	doc, err := s.findDocument(id)
	if err != nil {
		return nil, err
	}

	projection := &DocumentProjection{
		DocumentID: doc.ID,
		Status:     doc.Status,
		Message:    doc.StatusMessage,
		Filename:   doc.Filename,
	}
	if doc.Status != models.StatusCompleted {
		return projection, nil
	}

	var clauses []models.Clause
	if err := s.db.Where("document_id = ?", id).Order("ordinal ASC").Find(&clauses).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch clauses: %w", err)
	}
	analysis := make([]models.ClauseJSON, 0, len(clauses))
	for i := range clauses {
		cj, err := clauses[i].ToJSON()
		if err != nil {
			return nil, err
		}
		analysis = append(analysis, cj)
	}

	projection.FileSize = doc.FileSize
	projection.PageCount = doc.PageCount
	projection.FullText = doc.FullText
	projection.Analysis = analysis
	projection.DocumentSummary = doc.DocumentSummary
	projection.FullAnalysis = doc.DocumentSummary
	return projection, nil
}

// Ask answers a question grounded in a completed document. The context is the
// summary plus the most question-relevant chunks of the full text. Provider
// failure degrades to hasAI=false rather than erroring.
func (s *DocumentService) Ask(ctx context.Context, id, question string) (*AskResult, error) {
	if question == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	if len(question) > maxQueryChars {
		return nil, fmt.Errorf("%w: query too long (max %d characters)", ErrValidation, maxQueryChars)
	}

	doc, err := s.findDocument(id)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: status is %s", ErrDocumentNotReady, doc.Status)
	}

	cacheKey := id + "|" + question
	if cached, ok := s.answerCache.Get(cacheKey); ok {
		log.Printf("Answer cache hit for document %s", id)
		return cached.(*AskResult), nil
	}

	if !s.gateway.Configured() {
		return &AskResult{
			Answer:     "AI service is not configured. The document summary is:\n\n" + doc.DocumentSummary,
			DocumentID: id,
			HasAI:      false,
		}, nil
	}

	docContext := doc.DocumentSummary + "\n\n" + retrieveContext(doc.FullText, question)
	answer, err := s.gateway.Answer(ctx, docContext, question)
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) {
			log.Printf("Q&A degraded for document %s: %v", id, err)
			return &AskResult{
				Answer:     "AI providers are currently unavailable. The document summary is:\n\n" + doc.DocumentSummary,
				DocumentID: id,
				HasAI:      false,
			}, nil
		}
		return nil, err
	}

	result := &AskResult{Answer: answer, DocumentID: id, HasAI: true}
	s.answerCache.Set(cacheKey, result, 10*time.Minute)
	return result, nil
}

// PDFLocation describes where the PDF bytes live: a presigned URL when blob
// storage is configured, raw bytes from the database otherwise.
type PDFLocation struct {
	URL      string
	Data     []byte
	Filename string
}

// GetPDF resolves the PDF for rendering.
func (s *DocumentService) GetPDF(id string) (*PDFLocation, error) {
	doc, err := s.findDocument(id)
	if err != nil {
		return nil, err
	}
	if s.blobStore != nil && doc.StorageKey != "" {
		url, err := s.blobStore.PresignGet(doc.StorageKey, 15*time.Minute)
		if err != nil {
			return nil, err
		}
		return &PDFLocation{URL: url, Filename: doc.Filename}, nil
	}
	if len(doc.PdfData) == 0 {
		return nil, ErrDocumentNotFound
	}
	return &PDFLocation{Data: doc.PdfData, Filename: doc.Filename}, nil
}

// Health reports collaborator configuration for the liveness probe.
func (s *DocumentService) Health() map[string]string {
	status := map[string]string{
		"database": "connected",
		"storage":  "database",
		"search":   "not configured",
		"ai":       "not configured",
	}
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.Ping() != nil {
		status["database"] = "unreachable"
	}
	if s.blobStore != nil {
		status["storage"] = "s3"
	}
	if s.esClient != nil {
		status["search"] = "configured"
	}
	if s.gateway.Configured() {
		status["ai"] = "configured"
	}
	return status
}

func (s *DocumentService) findDocument(id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	return &doc, nil
}
