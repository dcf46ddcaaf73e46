package services

import (
	"math"
	"regexp"
	"strings"

	models "github.com/clauselens/backend/models"
)

// ClauseSpan is a clause-sized text span tied back to the page region it
// came from. The bounding box is the vertex union of the span's source blocks.
type ClauseSpan struct {
	Text          string
	PageNumber    int
	Vertices      []models.Vertex
	OcrPageWidth  float64
	OcrPageHeight float64
}

const (
	// minSpanChars: spans shorter than this merge into the following span.
	minSpanChars = 80
	// maxSpanChars caps a span before a sentence-boundary split is forced.
	maxSpanChars = 1200
)

// clauseMarker matches numbered or lettered clause headings at a line start,
// e.g. "1.", "2.3", "(a)", "IV.", "Section 4", "ARTICLE II".
var clauseMarker = regexp.MustCompile(`(?m)^\s*(?:(?:\d+(?:\.\d+)*[.)]?|\([a-z]\)|[IVXLC]+\.|[A-Z]\.)\s+|(?:Section|Clause|Article|ARTICLE|SECTION)\s+[\dIVXLC]+)`)

var blankLineRun = regexp.MustCompile(`\n\s*\n+`)

// SegmentBlocks partitions extracted blocks into clause spans. Deterministic:
// identical input always yields identical spans. Splits happen on clause
// markers, blank-line runs, and sentence boundaries for oversized spans;
// undersized spans merge forward to avoid fragment noise.
func SegmentBlocks(blocks []PageBlock) []ClauseSpan {
	var spans []ClauseSpan
	for _, block := range blocks {
		for _, piece := range splitBlockText(block.Text) {
			spans = append(spans, ClauseSpan{
				Text:          piece,
				PageNumber:    block.PageNumber,
				Vertices:      cloneVertices(block.Vertices),
				OcrPageWidth:  block.PageWidth,
				OcrPageHeight: block.PageHeight,
			})
		}
	}
	return mergeShortSpans(spans)
}

// splitBlockText cuts one block's text at clause markers and blank-line runs,
// then breaks any oversized remainder at sentence boundaries.
func splitBlockText(text string) []string {
	var pieces []string
	for _, para := range blankLineRun.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		pieces = append(pieces, splitOnMarkers(para)...)
	}

	var out []string
	for _, p := range pieces {
		out = append(out, splitLongSpan(p)...)
	}
	return out
}

func splitOnMarkers(text string) []string {
	locs := clauseMarker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}
	var parts []string
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			if head := strings.TrimSpace(text[prev:loc[0]]); head != "" {
				parts = append(parts, head)
			}
			prev = loc[0]
		}
	}
	if tail := strings.TrimSpace(text[prev:]); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

// splitLongSpan breaks text at the sentence boundary nearest to maxSpanChars,
// falling back to a newline past the midpoint, the same boundary rule the
// Q&A chunker uses.
func splitLongSpan(text string) []string {
	var out []string
	for len(text) > maxSpanChars {
		chunk := text[:maxSpanChars]
		breakPoint := strings.LastIndex(chunk, ". ")
		if nl := strings.LastIndex(chunk, "\n"); nl > breakPoint {
			breakPoint = nl
		}
		if breakPoint < maxSpanChars/2 {
			breakPoint = maxSpanChars - 1
		}
		out = append(out, strings.TrimSpace(text[:breakPoint+1]))
		text = strings.TrimSpace(text[breakPoint+1:])
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// mergeShortSpans folds each undersized span into the span that follows it,
// joining text and unioning bounding boxes. A trailing short span merges
// backward instead.
func mergeShortSpans(spans []ClauseSpan) []ClauseSpan {
	if len(spans) == 0 {
		return spans
	}
	var out []ClauseSpan
	var pending *ClauseSpan
	for i := range spans {
		span := spans[i]
		if pending != nil {
			span = mergeSpans(*pending, span)
			pending = nil
		}
		if len(span.Text) < minSpanChars {
			if i < len(spans)-1 {
				p := span
				pending = &p
				continue
			}
			// Trailing short span merges backward instead.
			if len(out) > 0 {
				out[len(out)-1] = mergeSpans(out[len(out)-1], span)
				continue
			}
		}
		out = append(out, span)
	}
	return out
}

// mergeSpans joins two spans. Boxes union only when the spans share a page;
// across pages the first span's box wins and the page stays the first's.
func mergeSpans(a, b ClauseSpan) ClauseSpan {
	merged := ClauseSpan{
		Text:          strings.TrimSpace(a.Text + "\n" + b.Text),
		PageNumber:    a.PageNumber,
		Vertices:      cloneVertices(a.Vertices),
		OcrPageWidth:  a.OcrPageWidth,
		OcrPageHeight: a.OcrPageHeight,
	}
	if a.PageNumber == b.PageNumber && len(a.Vertices) == 4 && len(b.Vertices) == 4 {
		merged.Vertices = unionVertices(a.Vertices, b.Vertices)
	}
	return merged
}

func unionVertices(a, b []models.Vertex) []models.Vertex {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range append(cloneVertices(a), b...) {
		minX = math.Min(minX, v.X)
		minY = math.Min(minY, v.Y)
		maxX = math.Max(maxX, v.X)
		maxY = math.Max(maxY, v.Y)
	}
	return []models.Vertex{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}
}

func cloneVertices(v []models.Vertex) []models.Vertex {
	out := make([]models.Vertex, len(v))
	copy(out, v)
	return out
}
