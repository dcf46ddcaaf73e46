package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	models "github.com/clauselens/backend/models"
)

// Upload validation limits.
const (
	MaxFileSize   = 20 * 1024 * 1024 // 20 MB
	maxFailDetail = 200
)

var pdfMagicBytes = []byte("%PDF")

// DocumentService owns the document lifecycle: upload validation, the
// background analysis pipeline, and its state machine.
type DocumentService struct {
	db          *gorm.DB
	blobStore   *BlobStore
	esClient    *elasticsearch.Client
	gateway     *ProviderGateway
	extractor   Extractor
	heuristic   *HeuristicScorer
	thresholds  RiskThresholds
	answerCache *gocache.Cache
	enrichLimit int
}

// NewDocumentService wires the service from the environment: blob storage
// and Elasticsearch are optional collaborators, the provider gateway may be
// empty, and the pipeline still runs end to end on the heuristic path.
func NewDocumentService(db *gorm.DB) (*DocumentService, error) {
	blobStore, err := NewBlobStore()
	if err != nil {
		return nil, err
	}

	var esClient *elasticsearch.Client
	if esURL := os.Getenv("ELASTICSEARCH_URL"); esURL != "" {
		esClient, err = elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{esURL}})
		if err != nil {
			log.Printf("Warning: Failed to create Elasticsearch client: %v", err)
			esClient = nil
		}
	}

	thresholds := LoadRiskThresholds()
	enrichLimit := 4
	if v, err := strconv.Atoi(os.Getenv("AI_ENRICH_CONCURRENCY")); err == nil && v > 0 {
		enrichLimit = v
	}

	return &DocumentService{
		db:          db,
		blobStore:   blobStore,
		esClient:    esClient,
		gateway:     NewProviderGateway(),
		extractor:   NewPDFExtractor(),
		heuristic:   NewHeuristicScorer(thresholds),
		thresholds:  thresholds,
		answerCache: gocache.New(10*time.Minute, 30*time.Minute),
		enrichLimit: enrichLimit,
	}, nil
}

// CreateDocument validates the upload, stores the PDF, creates the pending
// Document record, and launches the background pipeline. Returns the created
// document; validation failures wrap ErrValidation.
func (s *DocumentService) CreateDocument(filename string, pdfBytes []byte) (*models.Document, error) {
	if len(pdfBytes) == 0 {
		return nil, fmt.Errorf("%w: no file provided", ErrValidation)
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return nil, fmt.Errorf("%w: only PDF files are allowed", ErrValidation)
	}
	if int64(len(pdfBytes)) > MaxFileSize {
		sizeMB := float64(len(pdfBytes)) / (1024 * 1024)
		return nil, fmt.Errorf("%w: file too large (%.1f MB), maximum size is %d MB",
			ErrValidation, sizeMB, MaxFileSize/(1024*1024))
	}
	if !bytes.HasPrefix(pdfBytes, pdfMagicBytes) {
		return nil, fmt.Errorf("%w: file does not appear to be a valid PDF", ErrValidation)
	}

	doc := models.Document{
		ID:            uuid.NewString(),
		Filename:      filename,
		Status:        models.StatusPending,
		StatusMessage: "Upload successful - analysis starting",
		FileSize:      int64(len(pdfBytes)),
	}

	if s.blobStore != nil {
		doc.StorageKey = fmt.Sprintf("%s.pdf", doc.ID)
		if err := s.blobStore.Put(doc.StorageKey, pdfBytes); err != nil {
			return nil, err
		}
	} else {
		doc.PdfData = pdfBytes
	}

	if err := s.db.Create(&doc).Error; err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	log.Printf("Document uploaded: %s (%s, %d bytes)", doc.ID, filename, len(pdfBytes))

	go s.ProcessDocument(doc.ID, pdfBytes)

	return &doc, nil
}

// ClaimDocument atomically transitions pending -> processing. The conditional
// UPDATE keyed on the current status is the only claim primitive, so exactly
// one claim succeeds even when multiple server instances race.
func (s *DocumentService) ClaimDocument(id string) (bool, error) {
	res := s.db.Model(&models.Document{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]interface{}{
			"status":         models.StatusProcessing,
			"status_message": "Extracting text and analyzing document...",
		})
	if res.Error != nil {
		return false, fmt.Errorf("claim failed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ProcessDocument runs the full pipeline for one document. It runs to
// completion or failure once claimed; there is no cancellation.
func (s *DocumentService) ProcessDocument(id string, pdfBytes []byte) {
	claimed, err := s.ClaimDocument(id)
	if err != nil {
		log.Printf("ERROR claiming document %s: %v", id, err)
		return
	}
	if !claimed {
		log.Printf("Document %s already claimed, skipping", id)
		return
	}

	ctx := context.Background()

	extraction, err := s.extractor.Extract(pdfBytes)
	if err != nil {
		log.Printf("ERROR extracting document %s: %v", id, err)
		s.failDocument(id, err)
		return
	}

	spans := SegmentBlocks(extraction.Blocks)
	log.Printf("Document %s: %d blocks segmented into %d clauses", id, len(extraction.Blocks), len(spans))

	fullText := joinBlockText(extraction.Blocks)
	analyses := s.scoreSpans(ctx, spans)

	clauses := make([]models.Clause, 0, len(spans))
	for i, span := range spans {
		clause, err := buildClause(id, i+1, span, analyses[i])
		if err != nil {
			log.Printf("ERROR building clause %d for document %s: %v", i+1, id, err)
			s.failDocument(id, err)
			return
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) > 0 {
		if err := s.db.CreateInBatches(clauses, 100).Error; err != nil {
			log.Printf("ERROR saving clauses for document %s: %v", id, err)
			s.failDocument(id, fmt.Errorf("failed to save clauses: %w", err))
			return
		}
	}

	summary := s.buildSummary(ctx, fullText, extraction.PageCount, analyses)

	res := s.db.Model(&models.Document{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":           models.StatusCompleted,
			"status_message":   "Analysis completed successfully",
			"page_count":       extraction.PageCount,
			"full_text":        fullText,
			"document_summary": summary,
		})
	if res.Error != nil {
		log.Printf("ERROR completing document %s: %v", id, res.Error)
		return
	}
	log.Printf("Analysis complete for %s: %d clauses, %d pages", id, len(clauses), extraction.PageCount)

	// Best-effort search indexing of the completed document.
	var doc models.Document
	if err := s.db.First(&doc, "id = ?", id).Error; err == nil {
		_ = s.indexDocument(&doc)
	}
}

// scoreSpans runs the heuristic scorer on every span, then enriches via the
// provider gateway under a bounded worker pool. A failed enrichment leaves
// the heuristic result in place; partial enrichment is not an error.
func (s *DocumentService) scoreSpans(ctx context.Context, spans []ClauseSpan) []ClauseAnalysis {
	analyses := make([]ClauseAnalysis, len(spans))
	for i, span := range spans {
		analyses[i] = s.heuristic.Analyze(span.Text)
	}
	if !s.gateway.Configured() {
		return analyses
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.enrichLimit)
	for i := range spans {
		i := i
		g.Go(func() error {
			enriched, err := s.gateway.Classify(gctx, spans[i].Text)
			if err != nil {
				log.Printf("Clause %d enrichment failed, keeping heuristic result: %v", i+1, err)
				return nil
			}
			enriched.Normalize(s.thresholds)
			analyses[i] = *enriched
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; enrichment failures degrade in place
	return analyses
}

// buildClause converts a span plus its analysis into the persisted row.
func buildClause(docID string, ordinal int, span ClauseSpan, analysis ClauseAnalysis) (models.Clause, error) {
	boxJSON, err := json.Marshal(models.BoundingBox{Vertices: span.Vertices})
	if err != nil {
		return models.Clause{}, fmt.Errorf("marshal bounding box: %w", err)
	}
	entitiesJSON, err := json.Marshal(analysis.Entities)
	if err != nil {
		return models.Clause{}, fmt.Errorf("marshal entities: %w", err)
	}
	termsJSON, err := json.Marshal(analysis.LegalTerms)
	if err != nil {
		return models.Clause{}, fmt.Errorf("marshal legal terms: %w", err)
	}
	return models.Clause{
		ID:            fmt.Sprintf("%s-clause-%d", docID, ordinal),
		DocumentID:    docID,
		Ordinal:       ordinal,
		PageNumber:    span.PageNumber,
		Text:          span.Text,
		Score:         analysis.Score,
		Category:      analysis.Category,
		Type:          analysis.Type,
		Explanation:   analysis.Explanation,
		Summary:       analysis.Summary,
		BoundingBox:   datatypes.JSON(boxJSON),
		OcrPageWidth:  span.OcrPageWidth,
		OcrPageHeight: span.OcrPageHeight,
		Entities:      datatypes.JSON(entitiesJSON),
		LegalTerms:    datatypes.JSON(termsJSON),
	}, nil
}

// buildSummary assembles the document statistics block plus an AI synopsis
// when a provider is reachable.
func (s *DocumentService) buildSummary(ctx context.Context, fullText string, pageCount int, analyses []ClauseAnalysis) string {
	var high, med, low int
	for _, a := range analyses {
		switch a.Category {
		case models.CategoryRed:
			high++
		case models.CategoryYellow:
			med++
		default:
			low++
		}
	}
	wordCount := len(strings.Fields(fullText))

	aiSummary := "AI analysis unavailable. Summary generated from heuristic scoring."
	if s.gateway.Configured() {
		contextText := fullText
		if len(contextText) > 6000 {
			contextText = contextText[:6000]
		}
		synopsis, err := s.gateway.Answer(ctx, contextText,
			"Summarize this legal document in 3 bullet points highlighting key obligations.")
		if err != nil {
			log.Printf("Summary generation failed: %v", err)
			aiSummary = "Analysis complete, but summary generation failed."
		} else {
			aiSummary = synopsis
		}
	}

	return fmt.Sprintf(
		"**Document Statistics**\n- Pages: %d\n- Words: %d\n- Clauses analyzed: %d\n- High risk: %d | Medium risk: %d | Low risk: %d\n\n**AI Summary**\n%s",
		pageCount, wordCount, len(analyses), high, med, low, aiSummary)
}

// failDocument transitions the document to the terminal failed state with a
// human-readable cause. Already-terminal documents are left untouched.
func (s *DocumentService) failDocument(id string, cause error) {
	detail := cause.Error()
	if len(detail) > maxFailDetail {
		detail = detail[:maxFailDetail]
	}
	res := s.db.Model(&models.Document{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":         models.StatusFailed,
			"status_message": "Analysis failed: " + detail,
		})
	if res.Error != nil {
		log.Printf("ERROR failing document %s: %v", id, res.Error)
	}
}

func joinBlockText(blocks []PageBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n\n")
}

// GetAllDocuments lists every document for the dashboard, newest first,
// without the heavyweight text columns.
func (s *DocumentService) GetAllDocuments() ([]map[string]interface{}, error) {
	log.Println("GetAllDocuments: Starting database query")

	var documents []models.Document
	result := s.db.
		Select("id", "filename", "status", "status_message", "file_size", "page_count", "created_at", "updated_at").
		Order("created_at DESC").
		Find(&documents)
	if result.Error != nil {
		log.Printf("GetAllDocuments: Database query error: %v", result.Error)
		return nil, fmt.Errorf("failed to fetch documents: %w", result.Error)
	}

	out := make([]map[string]interface{}, 0, len(documents))
	for _, doc := range documents {
		out = append(out, map[string]interface{}{
			"documentId": doc.ID,
			"filename":   doc.Filename,
			"status":     doc.Status,
			"message":    doc.StatusMessage,
			"fileSize":   doc.FileSize,
			"pageCount":  doc.PageCount,
			"createdAt":  doc.CreatedAt,
			"updatedAt":  doc.UpdatedAt,
		})
	}
	log.Printf("GetAllDocuments: Retrieved %d documents", len(out))
	return out, nil
}
