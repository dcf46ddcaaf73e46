package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Risk categories for a clause, derived from its score.
const (
	CategoryRed    = "Red"
	CategoryYellow = "Yellow"
	CategoryGreen  = "Green"
)

// Vertex is a point in the extraction coordinate space of a page.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox marks where a clause appears on a page as four vertices
// (top-left, top-right, bottom-right, bottom-left).
type BoundingBox struct {
	Vertices []Vertex `json:"vertices"`
}

// Entity is a named entity extracted from a clause (party, date, money).
type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// LegalTerm pairs a recognized term of art with a short definition.
type LegalTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// Clause is a segmented span of document text with its risk classification.
// Clauses are created in bulk during one analysis run and are immutable afterward;
// they are deleted only alongside their owning Document.
type Clause struct {
	// ID is "{documentID}-clause-{ordinal}", unique across documents.
	ID string `gorm:"primaryKey"`

	// DocumentID references the owning document.
	DocumentID string `gorm:"type:uuid;index;not null"`

	// Ordinal preserves the clause order within the document, starting at 1.
	Ordinal int `gorm:"not null"`

	// PageNumber is 1-indexed and never exceeds the document's PageCount.
	PageNumber int

	// Text is the verbatim extracted span.
	Text string

	// Score is the risk score in [0, 1]. Category is derived from it.
	Score    float64
	Category string

	// Type is the clause classification label, e.g. "Liability".
	Type string

	Explanation string
	Summary     string

	// BoundingBox is the clause position in the extraction coordinate space,
	// stored as JSONB {vertices:[{x,y} x4]}.
	BoundingBox datatypes.JSON

	// OcrPageWidth and OcrPageHeight are the page dimensions in the same
	// coordinate space as the bounding box, enabling rescaling:
	// screen = source * (render / ocr).
	OcrPageWidth  float64
	OcrPageHeight float64

	// Entities is a JSONB array of {text, type}.
	Entities datatypes.JSON

	// LegalTerms is a JSONB array of {term, definition}.
	LegalTerms datatypes.JSON

	CreatedAt time.Time
}

// ClauseJSON is the wire shape served to clients.
type ClauseJSON struct {
	ID            string       `json:"id"`
	PageNumber    int          `json:"page_number"`
	Text          string       `json:"text"`
	BoundingBox   *BoundingBox `json:"bounding_box,omitempty"`
	OcrPageWidth  float64      `json:"ocr_page_width"`
	OcrPageHeight float64      `json:"ocr_page_height"`
	Score         float64      `json:"score"`
	Category      string       `json:"category"`
	Type          string       `json:"type"`
	Explanation   string       `json:"explanation"`
	Summary       string       `json:"summary"`
	Entities      []Entity     `json:"entities"`
	LegalTerms    []LegalTerm  `json:"legal_terms"`
}

// ToJSON converts the stored clause into its wire shape.
func (c *Clause) ToJSON() (ClauseJSON, error) {
	out := ClauseJSON{
		ID:            fmt.Sprintf("clause-%d", c.Ordinal),
		PageNumber:    c.PageNumber,
		Text:          c.Text,
		OcrPageWidth:  c.OcrPageWidth,
		OcrPageHeight: c.OcrPageHeight,
		Score:         c.Score,
		Category:      c.Category,
		Type:          c.Type,
		Explanation:   c.Explanation,
		Summary:       c.Summary,
		Entities:      []Entity{},
		LegalTerms:    []LegalTerm{},
	}
	if len(c.BoundingBox) > 0 {
		var box BoundingBox
		if err := json.Unmarshal(c.BoundingBox, &box); err != nil {
			return out, fmt.Errorf("invalid bounding box for clause %s: %w", c.ID, err)
		}
		out.BoundingBox = &box
	}
	if len(c.Entities) > 0 {
		if err := json.Unmarshal(c.Entities, &out.Entities); err != nil {
			return out, fmt.Errorf("invalid entities for clause %s: %w", c.ID, err)
		}
	}
	if len(c.LegalTerms) > 0 {
		if err := json.Unmarshal(c.LegalTerms, &out.LegalTerms); err != nil {
			return out, fmt.Errorf("invalid legal terms for clause %s: %w", c.ID, err)
		}
	}
	return out, nil
}
