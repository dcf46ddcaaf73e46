package services

import (
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFExtractor_RejectsBadInput(t *testing.T) {
	extractor := NewPDFExtractor()

	tests := []struct {
		name  string
		bytes []byte
	}{
		{"empty input", nil},
		{"not a pdf", []byte("hello world, definitely not a pdf")},
		{"truncated header", []byte("%PDF-1.7\ngarbage that goes nowhere")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractor.Extract(tt.bytes)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrExtraction)
		})
	}
}

func glyph(s string, x, y, w, size float64) pdf.Text {
	return pdf.Text{S: s, X: x, Y: y, W: w, FontSize: size}
}

func TestBuildBlocks_GroupsLinesAndFlipsOrigin(t *testing.T) {
	// Two lines close together (one block), a third far below (second block).
	// PDF space: origin bottom-left, so higher Y is closer to the page top.
	texts := []pdf.Text{
		glyph("The tenant shall maintain the premises in good condition at all times", 50, 700, 300, 12),
		glyph("and shall be responsible for all repairs during the term of the lease.", 50, 686, 300, 12),
		glyph("Payment shall be made within thirty days of receipt of each monthly invoice.", 50, 400, 320, 12),
	}
	blocks := buildBlocks(texts, 1, 612, 792)
	require.Len(t, blocks, 2)

	first := blocks[0]
	assert.Equal(t, 1, first.PageNumber)
	assert.Contains(t, first.Text, "tenant shall maintain")
	assert.Contains(t, first.Text, "responsible for all repairs")
	assert.Equal(t, 612.0, first.PageWidth)
	assert.Equal(t, 792.0, first.PageHeight)

	// Top-left origin: the first block sits above the second.
	require.Len(t, first.Vertices, 4)
	assert.Less(t, first.Vertices[0].Y, blocks[1].Vertices[0].Y)

	for _, b := range blocks {
		for _, v := range b.Vertices {
			assert.GreaterOrEqual(t, v.X, 0.0)
			assert.LessOrEqual(t, v.X, b.PageWidth)
			assert.GreaterOrEqual(t, v.Y, 0.0)
			assert.LessOrEqual(t, v.Y, b.PageHeight)
		}
	}
}

func TestBuildBlocks_FiltersSmallFragments(t *testing.T) {
	texts := []pdf.Text{
		glyph("Page 3", 300, 30, 40, 10),
	}
	assert.Empty(t, buildBlocks(texts, 1, 612, 792), "decorative fragments are dropped")
}

func TestBuildBlocks_JoinsRunsOnOneLine(t *testing.T) {
	// Two glyph runs on the same baseline with a gap between them.
	texts := []pdf.Text{
		glyph("The landlord reserves the right to inspect", 50, 500, 200, 12),
		glyph("the premises upon reasonable written notice.", 260, 500, 210, 12),
	}
	blocks := buildBlocks(texts, 2, 612, 792)
	require.Len(t, blocks, 1)
	assert.Equal(t, 2, blocks[0].PageNumber)
	assert.Equal(t, 1, strings.Count(blocks[0].Text, "\n")+1, "runs on one baseline form one line")
	assert.Contains(t, blocks[0].Text, "inspect the premises")
}

func TestBuildBlocks_Empty(t *testing.T) {
	assert.Empty(t, buildBlocks(nil, 1, 612, 792))
}
