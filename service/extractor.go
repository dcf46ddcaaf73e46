package services

import (
	"bytes"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	models "github.com/clauselens/backend/models"
)

// PageBlock is one reading-order text block with its position on the page.
// Vertices are four corners (top-left, top-right, bottom-right, bottom-left)
// in a top-left-origin coordinate space scaled to PageWidth x PageHeight.
type PageBlock struct {
	PageNumber int
	Text       string
	Vertices   []models.Vertex
	PageWidth  float64
	PageHeight float64
}

// ExtractionResult is the output of one PDF extraction pass.
type ExtractionResult struct {
	PageCount int
	Blocks    []PageBlock
}

// Extractor turns a PDF byte stream into positioned text blocks.
type Extractor interface {
	Extract(pdfBytes []byte) (*ExtractionResult, error)
}

// PDFExtractor is the native extractor. pdfcpu validates the stream and
// supplies the page count; the positional text walk groups glyph runs into
// lines and lines into blocks.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

const (
	// minBlockChars filters decorative fragments (page numbers, headers).
	minBlockChars = 50
	// lineTolerance groups glyph runs onto the same baseline.
	lineTolerance = 2.0
	// blockGapFactor: a vertical gap above this multiple of the line height
	// starts a new block.
	blockGapFactor = 1.8
)

// Extract parses the PDF and returns its text blocks in reading order.
// Encrypted or corrupt input, and documents with zero extractable pages,
// fail with ErrExtraction.
func (e *PDFExtractor) Extract(pdfBytes []byte) (result *ExtractionResult, err error) {
	// The content-stream walk can panic on malformed operators.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PDF extraction panic recovered: %v", r)
			result = nil
			err = fmt.Errorf("%w: malformed PDF content: %v", ErrExtraction, r)
		}
	}()

	if len(pdfBytes) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrExtraction)
	}

	// Structural validation and page count via pdfcpu.
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContext(bytes.NewReader(pdfBytes), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	pageCount := pdfCtx.PageCount
	if pageCount == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrExtraction)
	}

	reader, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	var blocks []PageBlock
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		width, height := pageDimensions(page)
		content := page.Content()
		blocks = append(blocks, buildBlocks(content.Text, pageNum, width, height)...)
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: no extractable text", ErrExtraction)
	}

	log.Printf("Extraction complete: %d pages, %d text blocks", pageCount, len(blocks))
	return &ExtractionResult{PageCount: pageCount, Blocks: blocks}, nil
}

// pageDimensions reads the page MediaBox, defaulting to US Letter when absent.
func pageDimensions(page pdf.Page) (float64, float64) {
	width, height := 612.0, 792.0
	box := page.V.Key("MediaBox")
	if !box.IsNull() && box.Len() == 4 {
		x0 := box.Index(0).Float64()
		y0 := box.Index(1).Float64()
		x1 := box.Index(2).Float64()
		y1 := box.Index(3).Float64()
		if x1 > x0 && y1 > y0 {
			width = x1 - x0
			height = y1 - y0
		}
	}
	return width, height
}

// textLine is an intermediate grouping of glyph runs sharing a baseline.
type textLine struct {
	y          float64 // baseline in PDF space (origin bottom-left)
	minX, maxX float64
	fontSize   float64
	text       string
}

// buildBlocks clusters positioned glyph runs into lines, then lines into
// blocks, preserving top-to-bottom reading order. Vertices come out in a
// top-left-origin space so overlay consumers can rescale directly.
func buildBlocks(texts []pdf.Text, pageNum int, pageW, pageH float64) []PageBlock {
	if len(texts) == 0 {
		return nil
	}

	// Group runs into lines by baseline proximity.
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > lineTolerance {
			return sorted[i].Y > sorted[j].Y // higher Y first = top of page first
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []textLine
	for _, t := range sorted {
		if t.S == "" {
			continue
		}
		if n := len(lines); n > 0 && math.Abs(lines[n-1].y-t.Y) <= lineTolerance {
			line := &lines[n-1]
			// Insert a space when the glyph run does not continue the previous one.
			if t.X-line.maxX > t.FontSize*0.2 && !strings.HasSuffix(line.text, " ") {
				line.text += " "
			}
			line.text += t.S
			line.minX = math.Min(line.minX, t.X)
			line.maxX = math.Max(line.maxX, t.X+t.W)
			line.fontSize = math.Max(line.fontSize, t.FontSize)
			continue
		}
		lines = append(lines, textLine{
			y:        t.Y,
			minX:     t.X,
			maxX:     t.X + t.W,
			fontSize: t.FontSize,
			text:     t.S,
		})
	}

	// Cluster consecutive lines into blocks on vertical gap.
	var blocks []PageBlock
	var current []textLine
	flush := func() {
		if len(current) == 0 {
			return
		}
		block := linesToBlock(current, pageNum, pageW, pageH)
		if len(block.Text) > minBlockChars {
			blocks = append(blocks, block)
		}
		current = nil
	}
	for i, line := range lines {
		if i > 0 {
			prev := current[len(current)-1]
			lineHeight := math.Max(prev.fontSize, 1.0)
			if prev.y-line.y > lineHeight*blockGapFactor {
				flush()
			}
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

func linesToBlock(lines []textLine, pageNum int, pageW, pageH float64) PageBlock {
	minX, maxX := lines[0].minX, lines[0].maxX
	topY, botY := lines[0].y+lines[0].fontSize, lines[0].y
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, strings.TrimSpace(l.text))
		minX = math.Min(minX, l.minX)
		maxX = math.Max(maxX, l.maxX)
		topY = math.Max(topY, l.y+l.fontSize)
		botY = math.Min(botY, l.y)
	}

	// Flip to top-left origin and clamp to page bounds.
	x0 := clamp(minX, 0, pageW)
	x1 := clamp(maxX, 0, pageW)
	y0 := clamp(pageH-topY, 0, pageH)
	y1 := clamp(pageH-botY, 0, pageH)

	return PageBlock{
		PageNumber: pageNum,
		Text:       strings.Join(parts, "\n"),
		Vertices: []models.Vertex{
			{X: x0, Y: y0},
			{X: x1, Y: y0},
			{X: x1, Y: y1},
			{X: x0, Y: y1},
		},
		PageWidth:  pageW,
		PageHeight: pageH,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
