package models

import (
	"time"

	"gorm.io/gorm"
)

// Document processing states. Transitions are monotonic:
// pending -> processing -> completed | failed. Terminal states never change.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document represents an uploaded legal document and the lifecycle of its analysis.
type Document struct {
	// ID is a unique identifier for the document, stored as a UUID in the database.
	// In Elasticsearch, it's indexed as a keyword for exact matching.
	ID string `gorm:"type:uuid;primaryKey" elastic:"type:keyword"`

	// Filename is the name of the uploaded file, indexed as text for search.
	Filename string `gorm:"not null" elastic:"type:text,analyzer:standard"`

	// Status tracks the analysis lifecycle: pending, processing, completed, failed.
	Status string `gorm:"not null;default:pending" elastic:"type:keyword"`

	// StatusMessage carries human-readable progress or failure detail.
	StatusMessage string `elastic:"type:text,analyzer:standard"`

	// FileSize is the uploaded file size in bytes.
	FileSize int64 `elastic:"type:long"`

	// PageCount is the number of pages in the PDF, set during extraction.
	PageCount int `elastic:"type:integer"`

	// FullText contains the concatenated extracted text, indexed for full-text search.
	FullText string `elastic:"type:text,analyzer:standard"`

	// DocumentSummary is the generated synopsis, present only once completed.
	DocumentSummary string `elastic:"type:text,analyzer:standard"`

	// StorageKey is the object key in blob storage, empty when storage is not configured.
	StorageKey string `elastic:"type:keyword"`

	// PdfData holds the raw PDF bytes when no blob storage is configured.
	// Excluded from JSON and search.
	PdfData []byte `json:"-" elastic:"-"`

	// CreatedAt and UpdatedAt track when the document was created and last updated.
	CreatedAt time.Time `elastic:"type:date"`
	UpdatedAt time.Time `elastic:"type:date"`

	// SearchContent is a computed field for full-text search, combining Filename and FullText.
	// It's not stored in the database (gorm:"-") but is indexed in Elasticsearch.
	SearchContent string `gorm:"-" elastic:"type:text,analyzer:standard"`
}

// Terminal reports whether the document has reached a final state.
func (d *Document) Terminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusFailed
}

// BeforeSave is a GORM hook to populate SearchContent before indexing.
func (d *Document) BeforeSave(tx *gorm.DB) error {
	d.SearchContent = d.Filename + " " + d.FullText
	return nil
}
