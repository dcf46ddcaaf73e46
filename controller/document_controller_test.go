package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	models "github.com/clauselens/backend/models"
	service "github.com/clauselens/backend/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// Keep optional collaborators unconfigured regardless of the host env.
	for _, key := range []string{
		"GROQ_API_KEY", "ANTHROPIC_API_KEY", "ELASTICSEARCH_URL",
		"S3_REGION", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_BUCKET",
	} {
		t.Setenv(key, "")
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", filepath.Join(t.TempDir(), "test.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Document{}, &models.Clause{}))

	svc, err := service.NewDocumentService(db)
	require.NoError(t, err)
	ctrl := NewDocumentController(svc)

	router := gin.New()
	router.POST("/upload", ctrl.UploadDocument)
	router.GET("/document/:id", ctrl.GetDocument)
	router.GET("/documents", ctrl.GetAllDocuments)
	router.GET("/pdf/:id", ctrl.GetPDF)
	router.POST("/ask", ctrl.Ask)
	router.GET("/health", ctrl.Health)
	return router, db
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func seedCompletedDocument(t *testing.T, db *gorm.DB) *models.Document {
	t.Helper()
	doc := &models.Document{
		ID:              "11111111-2222-3333-4444-555555555555",
		Filename:        "lease.pdf",
		Status:          models.StatusCompleted,
		StatusMessage:   "Analysis completed successfully",
		PageCount:       1,
		FullText:        "Tenant shall pay a penalty of $500 upon late payment.",
		DocumentSummary: "**Document Statistics**\n- Pages: 1",
		PdfData:         []byte("%PDF-1.4 test"),
	}
	require.NoError(t, db.Create(doc).Error)
	require.NoError(t, db.Create(&models.Clause{
		ID:         doc.ID + "-clause-1",
		DocumentID: doc.ID,
		Ordinal:    1,
		PageNumber: 1,
		Text:       doc.FullText,
		Score:      0.74,
		Category:   models.CategoryRed,
		Type:       "Liability",
	}).Error)
	return doc
}

func TestUploadDocument_MissingFile(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadDocument_RejectsNonPDF(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartUpload(t, "notes.txt", []byte("plain text"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "PDF")
}

func TestUploadDocument_AcceptsAndFailsCorruptPDF(t *testing.T) {
	router, db := newTestRouter(t)

	// Valid magic bytes but unparseable structure: accepted at upload time,
	// then the background pipeline marks it failed.
	body, contentType := multipartUpload(t, "broken.pdf", []byte("%PDF-1.4\ngarbage body"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		DocumentID string `json:"documentId"`
		PdfURL     string `json:"pdfUrl"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.DocumentID)
	assert.Equal(t, "/pdf/"+resp.DocumentID, resp.PdfURL)

	deadline := time.Now().Add(5 * time.Second)
	var doc models.Document
	for time.Now().Before(deadline) {
		require.NoError(t, db.First(&doc, "id = ?", resp.DocumentID).Error)
		if doc.Terminal() {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	assert.Equal(t, models.StatusFailed, doc.Status)
	assert.NotEmpty(t, doc.StatusMessage)
}

func TestGetDocument_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/document/does-not-exist", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDocument_Completed(t *testing.T) {
	router, db := newTestRouter(t)
	doc := seedCompletedDocument(t, db)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/document/"+doc.ID, nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		DocumentID string `json:"documentId"`
		Status     string `json:"status"`
		Analysis   []struct {
			ID       string `json:"id"`
			Category string `json:"category"`
		} `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, doc.ID, resp.DocumentID)
	assert.Equal(t, models.StatusCompleted, resp.Status)
	require.Len(t, resp.Analysis, 1)
	assert.Equal(t, "clause-1", resp.Analysis[0].ID)
	assert.Equal(t, models.CategoryRed, resp.Analysis[0].Category)
}

func TestGetPDF_ServesDatabaseBytes(t *testing.T) {
	router, db := newTestRouter(t)
	doc := seedCompletedDocument(t, db)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/pdf/"+doc.ID, nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "lease.pdf")
	assert.Equal(t, []byte("%PDF-1.4 test"), w.Body.Bytes())
}

func TestAsk_StatusMapping(t *testing.T) {
	router, db := newTestRouter(t)

	pending := &models.Document{ID: "aaaaaaaa-0000-0000-0000-000000000001", Filename: "p.pdf", Status: models.StatusPending}
	require.NoError(t, db.Create(pending).Error)
	completed := seedCompletedDocument(t, db)

	tests := []struct {
		name     string
		payload  string
		wantCode int
	}{
		{"missing fields", `{}`, http.StatusBadRequest},
		{"unknown document", `{"documentId":"no-such-doc","query":"What is the penalty?"}`, http.StatusNotFound},
		{"document not ready", `{"documentId":"` + pending.ID + `","query":"What is the penalty?"}`, http.StatusConflict},
		{"completed document", `{"documentId":"` + completed.ID + `","query":"What is the penalty?"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(tt.payload))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code, "body: %s", w.Body.String())
		})
	}
}

func TestAsk_DegradedWithoutProviders(t *testing.T) {
	router, db := newTestRouter(t)
	doc := seedCompletedDocument(t, db)

	w := httptest.NewRecorder()
	payload := `{"documentId":"` + doc.ID + `","query":"What is the penalty?"}`
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Answer     string `json:"answer"`
		DocumentID string `json:"documentId"`
		HasAI      bool   `json:"hasAI"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.HasAI)
	assert.Equal(t, doc.ID, resp.DocumentID)
	assert.Contains(t, resp.Answer, "Document Statistics")
}

func TestGetAllDocuments(t *testing.T) {
	router, db := newTestRouter(t)
	seedCompletedDocument(t, db)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Documents []map[string]interface{} `json:"documents"`
		Total     int                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Documents, 1)
	assert.Equal(t, "lease.pdf", resp.Documents[0]["filename"])
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "connected", resp.Services["database"])
	assert.Equal(t, "not configured", resp.Services["ai"])
}
