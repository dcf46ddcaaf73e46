package services

import (
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	models "github.com/clauselens/backend/models"
)

// ClauseAnalysis is the classification result for one clause, produced by
// the heuristic scorer and optionally replaced by an AI provider.
type ClauseAnalysis struct {
	Score       float64            `json:"score"`
	Category    string             `json:"category"`
	Type        string             `json:"type"`
	Explanation string             `json:"explanation"`
	Summary     string             `json:"summary"`
	Entities    []models.Entity    `json:"entities"`
	LegalTerms  []models.LegalTerm `json:"legal_terms"`
}

// RiskThresholds map a score to a category. The cut points are tuning, not
// invariants; only monotonicity is required.
type RiskThresholds struct {
	Red    float64
	Yellow float64
}

// LoadRiskThresholds reads RISK_RED_THRESHOLD and RISK_YELLOW_THRESHOLD,
// defaulting to 0.7 and 0.4.
func LoadRiskThresholds() RiskThresholds {
	t := RiskThresholds{Red: 0.7, Yellow: 0.4}
	if v, err := strconv.ParseFloat(os.Getenv("RISK_RED_THRESHOLD"), 64); err == nil && v > 0 {
		t.Red = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("RISK_YELLOW_THRESHOLD"), 64); err == nil && v > 0 && v < t.Red {
		t.Yellow = v
	}
	return t
}

// Category returns Red, Yellow, or Green for a score.
func (t RiskThresholds) Category(score float64) string {
	switch {
	case score >= t.Red:
		return models.CategoryRed
	case score >= t.Yellow:
		return models.CategoryYellow
	default:
		return models.CategoryGreen
	}
}

// weightedPattern pairs a compiled pattern with the risk weight it contributes.
type weightedPattern struct {
	re     *regexp.Regexp
	weight float64
}

// patternGroup is one lexicon family: its patterns, the clause type label it
// implies, and the explanation used when it dominates the match set.
type patternGroup struct {
	name        string
	clauseType  string
	explanation string
	patterns    []weightedPattern
}

// HeuristicScorer is the local, network-independent risk classifier. It is
// deterministic and always produces a full ClauseAnalysis, which guarantees
// a non-empty result set even with zero connectivity.
type HeuristicScorer struct {
	thresholds RiskThresholds
	groups     []patternGroup
	negation   *regexp.Regexp
	emphasis   *regexp.Regexp
}

func wp(expr string, weight float64) weightedPattern {
	return weightedPattern{re: regexp.MustCompile(`(?i)` + expr), weight: weight}
}

func NewHeuristicScorer(thresholds RiskThresholds) *HeuristicScorer {
	return &HeuristicScorer{
		thresholds: thresholds,
		groups: []patternGroup{
			{
				name:        "consequence",
				clauseType:  "Liability",
				explanation: "Contains penalty, breach, or termination language",
				patterns: []weightedPattern{
					wp(`\b(?:in case of default|breach of contract|violation of)\b`, 0.80),
					wp(`\b(?:liable to pay damages|legal action|court proceedings)\b`, 0.78),
					wp(`\b(?:contract (?:may be|shall be) terminated|agreement (?:stands|is) cancelled|terminate[sd]?)\b`, 0.76),
					wp(`\b(?:forfeiture of|penalty (?:of|shall be)|penalt(?:y|ies)|fine (?:of|not exceeding))\b`, 0.74),
					wp(`\b(?:suspension of|revocation of|cancellation of)\b`, 0.72),
					wp(`\b(?:indemnif(?:y|ies|ication)|hold harmless|liable)\b`, 0.75),
				},
			},
			{
				name:        "payment",
				clauseType:  "Payment",
				explanation: "Defines payment or financial obligations",
				patterns: []weightedPattern{
					wp(`\b(?:payment shall be made|pay(?:ment)?|due (?:on|within))\b`, 0.58),
					wp(`\b(?:interest (?:will be|shall be) charged|late payment penalty|overdue interest)\b`, 0.75),
					wp(`\b(?:advance payment|security deposit|earnest money)\b`, 0.62),
					wp(`\b(?:refund(?:able)?|reimburs(?:e|ement)|compensat(?:e|ion))\b`, 0.60),
					wp(`\b(?:invoice|bill|receipt|payment terms)\b`, 0.55),
				},
			},
			{
				name:        "obligation",
				clauseType:  "Obligation",
				explanation: "Imposes binding duties on a party",
				patterns: []weightedPattern{
					wp(`\b(?:shall|must|required to|obligated to|bound to)\b`, 0.55),
					wp(`\b(?:has the right to|entitled to|may demand|can require)\b`, 0.50),
					wp(`\b(?:subject to|in accordance with|notwithstanding|provided that)\b`, 0.52),
					wp(`\b(?:hereby agrees?|undertakes? to|covenants? to)\b`, 0.58),
					wp(`\b(?:responsible for|accountable for)\b`, 0.56),
				},
			},
			{
				name:        "time",
				clauseType:  "Term",
				explanation: "Sets deadlines or notice periods",
				patterns: []weightedPattern{
					wp(`\b(?:within \d+\s+days?|not later than|before the expiry)\b`, 0.48),
					wp(`\b(?:notice period(?: of)?|during the term of|upon expiry of)\b`, 0.45),
					wp(`\b(?:effective from|commencing from|valid until)\b`, 0.42),
					wp(`\b(?:immediate(?:ly)?|forthwith|without delay)\b`, 0.50),
				},
			},
			{
				name:        "formality",
				clauseType:  "Formality",
				explanation: "Standard legal boilerplate",
				patterns: []weightedPattern{
					wp(`\b(?:this agreement is made|whereas the parties|now therefore|in consideration of)\b`, 0.15),
					wp(`\b(?:witnesseth that|parties hereto|in witness whereof)\b`, 0.12),
					wp(`\b(?:unless context otherwise requires|words importing|references to statutes)\b`, 0.10),
					wp(`\b(?:governed by .{0,20}law|courts? of .{0,30}jurisdiction|subject to arbitration)\b`, 0.18),
				},
			},
		},
		negation: regexp.MustCompile(`(?i)\b(?:not|never|without|except|unless|no)\s+`),
		emphasis: regexp.MustCompile(`\b[A-Z]{2,}\b|"[^"]*"`),
	}
}

// Analyze classifies a clause with the lexicon alone. Score is the maximum
// matched pattern weight adjusted for negation and emphasis, clipped to [0,1];
// the clause type comes from the group owning that maximum.
func (h *HeuristicScorer) Analyze(text string) ClauseAnalysis {
	best := 0.0
	bestGroup := -1
	for gi, group := range h.groups {
		for _, p := range group.patterns {
			if !p.re.MatchString(text) {
				continue
			}
			if p.weight > best || bestGroup == -1 {
				best = p.weight
				bestGroup = gi
			}
		}
	}

	analysis := ClauseAnalysis{
		Type:        "General",
		Explanation: "No specific risk indicators found",
		Entities:    ExtractEntities(text),
		LegalTerms:  MatchLegalTerms(text),
	}
	if bestGroup >= 0 {
		group := h.groups[bestGroup]
		analysis.Type = group.clauseType
		analysis.Explanation = group.explanation
	}

	score := best
	if score > 0 {
		if h.negation.MatchString(text) {
			score -= 0.15
		}
		if h.emphasis.MatchString(text) {
			score += 0.08
		}
	}
	analysis.Score = round3(math.Min(1.0, math.Max(0.0, score)))
	analysis.Category = h.thresholds.Category(analysis.Score)
	analysis.Summary = summarizeClause(text)
	return analysis
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// summarizeClause produces the heuristic one-line summary: the first sentence,
// truncated. The AI path replaces this when a provider succeeds.
func summarizeClause(text string) string {
	line := strings.TrimSpace(text)
	if idx := strings.Index(line, ". "); idx > 0 {
		line = line[:idx+1]
	}
	line = strings.ReplaceAll(line, "\n", " ")
	const maxLen = 160
	if len(line) > maxLen {
		line = strings.TrimSpace(line[:maxLen]) + "..."
	}
	return line
}

// Entity extraction patterns. The regex path is the guaranteed fallback;
// providers may replace its output with richer NER results.
var (
	moneyPattern = regexp.MustCompile(`(?i)\$\d+(?:,\d{3})*(?:\.\d{2})?|\d+\s?(?:USD|INR|EUR|GBP|dollars|rupees|pounds|euros)`)
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\s+\d{1,2},?\s+\d{4}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?),?\s+\d{4}\b`),
	}
	partyPattern = regexp.MustCompile(`\b(?:Mr\.|Mrs\.|Ms\.|Dr\.|Company|Corporation|LLC|Ltd|Inc|Landlord|Tenant|Lessor|Lessee|Party\s+[A-Z])\s?[A-Z]?[a-zA-Z]*\b`)
)

// ExtractEntities pulls money, date, and party entities from clause text.
// Order is deterministic: money, then dates, then parties, each in match order.
func ExtractEntities(text string) []models.Entity {
	entities := []models.Entity{}
	seen := map[string]bool{}
	add := func(value, typ string) {
		value = strings.TrimSpace(value)
		key := typ + "|" + strings.ToLower(value)
		if value == "" || seen[key] {
			return
		}
		seen[key] = true
		entities = append(entities, models.Entity{Text: value, Type: typ})
	}

	for _, m := range moneyPattern.FindAllString(text, -1) {
		add(m, "Money")
	}
	for _, re := range datePatterns {
		for _, m := range re.FindAllString(text, -1) {
			add(m, "Date")
		}
	}
	for _, m := range partyPattern.FindAllString(text, -1) {
		add(m, "Party")
	}
	return entities
}

// legalGlossary is the built-in term-of-art table. Tuning, not authoritative.
var legalGlossary = []models.LegalTerm{
	{Term: "indemnify", Definition: "To compensate another party for loss or damage they incur"},
	{Term: "force majeure", Definition: "Unforeseeable circumstances that excuse a party from performing"},
	{Term: "arbitration", Definition: "Dispute resolution by a neutral third party outside the courts"},
	{Term: "jurisdiction", Definition: "The court system with authority to hear disputes under the contract"},
	{Term: "severability", Definition: "Invalid provisions are removed without voiding the rest of the contract"},
	{Term: "liability", Definition: "Legal responsibility for damages or obligations"},
	{Term: "termination", Definition: "The ending of the contract before or at the close of its term"},
	{Term: "confidentiality", Definition: "The duty to keep designated information secret"},
	{Term: "warranty", Definition: "A promise that a fact or condition is true and can be relied on"},
	{Term: "breach", Definition: "Failure to perform an obligation the contract requires"},
	{Term: "waiver", Definition: "Voluntarily giving up a right or claim under the contract"},
	{Term: "assignment", Definition: "Transferring contract rights or duties to another party"},
	{Term: "notwithstanding", Definition: "In spite of; the clause overrides conflicting provisions"},
	{Term: "covenant", Definition: "A formal promise to do or refrain from doing something"},
}

// MatchLegalTerms returns glossary entries whose term appears in the text,
// in glossary order.
func MatchLegalTerms(text string) []models.LegalTerm {
	lower := strings.ToLower(text)
	terms := []models.LegalTerm{}
	for _, entry := range legalGlossary {
		if strings.Contains(lower, entry.Term) {
			terms = append(terms, entry)
		}
	}
	return terms
}

// Normalize clamps the score and recomputes the category so the
// category-from-score invariant holds no matter where the analysis came from.
func (a *ClauseAnalysis) Normalize(thresholds RiskThresholds) {
	a.Score = math.Min(1.0, math.Max(0.0, a.Score))
	want := thresholds.Category(a.Score)
	if a.Category != want {
		a.Category = want
	}
	if a.Type == "" {
		a.Type = "General"
	}
	if a.Entities == nil {
		a.Entities = []models.Entity{}
	}
	if a.LegalTerms == nil {
		a.LegalTerms = []models.LegalTerm{}
	}
}
