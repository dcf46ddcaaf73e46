package services

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Q&A context retrieval: the stored full text is chunked with overlap and
// ranked against the question by TF-IDF cosine similarity, so long documents
// still yield a grounded context within the provider's budget.

const (
	chunkSize    = 1500
	chunkOverlap = 200
	topChunks    = 4
	// maxContextChars bounds the assembled context string.
	maxContextChars = 8000
)

var wordPattern = regexp.MustCompile(`\b[a-zA-Z]{2,}\b`)

// chunkText splits text into overlapping chunks, preferring sentence or
// newline boundaries past the chunk midpoint.
func chunkText(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunk := text[start:end]

		if end < len(text) {
			breakPoint := strings.LastIndex(chunk, ". ")
			if nl := strings.LastIndex(chunk, "\n"); nl > breakPoint {
				breakPoint = nl
			}
			if breakPoint > size/2 {
				chunk = chunk[:breakPoint+1]
				end = start + breakPoint + 1
			}
		}

		if trimmed := strings.TrimSpace(chunk); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		if end >= len(text) {
			break
		}
		start = end - overlap
	}
	return chunks
}

func tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

func termFrequency(tokens []string) map[string]float64 {
	counts := map[string]float64{}
	for _, t := range tokens {
		counts[t]++
	}
	total := float64(len(tokens))
	if total == 0 {
		total = 1
	}
	for t := range counts {
		counts[t] /= total
	}
	return counts
}

func inverseDocFrequency(docs [][]string) map[string]float64 {
	n := float64(len(docs))
	df := map[string]float64{}
	for _, tokens := range docs {
		seen := map[string]bool{}
		for _, t := range tokens {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}
	idf := make(map[string]float64, len(df))
	for t, c := range df {
		idf[t] = math.Log((n+1)/(c+1)) + 1
	}
	return idf
}

func cosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for t, va := range a {
		if vb, ok := b[t]; ok {
			dot += va * vb
		}
		normA += va * va
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// retrieveContext assembles the most question-relevant portion of fullText.
// Short documents pass through whole (truncated to the budget); longer ones
// go through chunked TF-IDF ranking.
func retrieveContext(fullText, question string) string {
	if len(fullText) <= maxContextChars {
		return fullText
	}

	chunks := chunkText(fullText, chunkSize, chunkOverlap)
	if len(chunks) == 0 {
		return fullText[:maxContextChars]
	}

	chunkTokens := make([][]string, len(chunks))
	for i, c := range chunks {
		chunkTokens[i] = tokenize(c)
	}
	idf := inverseDocFrequency(chunkTokens)

	weigh := func(tokens []string) map[string]float64 {
		tf := termFrequency(tokens)
		w := make(map[string]float64, len(tf))
		for t, v := range tf {
			mult := idf[t]
			if mult == 0 {
				mult = 1
			}
			w[t] = v * mult
		}
		return w
	}

	queryVec := weigh(tokenize(question))
	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(chunks))
	for i := range chunks {
		ranked[i] = scored{idx: i, score: cosine(queryVec, weigh(chunkTokens[i]))}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	n := topChunks
	if n > len(ranked) {
		n = len(ranked)
	}
	picked := ranked[:n]
	// Keep document order within the selection for readable context.
	sort.Slice(picked, func(i, j int) bool { return picked[i].idx < picked[j].idx })

	var sb strings.Builder
	for _, p := range picked {
		if sb.Len()+len(chunks[p.idx]) > maxContextChars {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(chunks[p.idx])
	}
	if sb.Len() == 0 {
		return fullText[:maxContextChars]
	}
	return sb.String()
}
