package retrieval

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/index"
)

// Score blend constants. Vector similarity dominates; keyword overlap breaks
// near-boundary orderings. The phrase bonus rewards verbatim keyword runs.
const (
	vectorWeight  = 0.7
	keywordWeight = 0.3
	phraseBonus   = 0.3
)

// stopWords are excluded from keyword extraction. Matching is done on the
// remaining terms only, so "what are your business hours" keys on
// business/hours rather than filler.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "in": {}, "on": {}, "at": {}, "to": {},
	"for": {}, "with": {}, "by": {}, "about": {}, "like": {}, "through": {},
	"over": {}, "before": {}, "between": {}, "after": {}, "since": {},
	"without": {}, "under": {}, "within": {}, "along": {}, "following": {},
	"across": {}, "behind": {}, "beyond": {}, "plus": {}, "except": {},
	"but": {}, "up": {}, "out": {}, "around": {}, "down": {}, "off": {},
	"above": {}, "near": {}, "and": {}, "or": {}, "so": {}, "yet": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"being": {}, "have": {}, "has": {}, "had": {}, "do": {}, "does": {},
	"did": {}, "can": {}, "could": {}, "will": {}, "would": {}, "shall": {},
	"should": {}, "may": {}, "might": {}, "must": {}, "of": {},
}

// extractKeywords lowercases the query, splits it into word runs, and drops
// stop words and tokens of length <= 2. May return nil.
func extractKeywords(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	var keywords []string
	for _, word := range words {
		if _, stop := stopWords[word]; stop {
			continue
		}
		if len([]rune(word)) <= 2 {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

// keywordScore is the fraction of keywords found in text (case-insensitive
// substring), plus the phrase bonus when the joined keyword phrase appears
// verbatim. Always within [0, 1]; 0 when there are no keywords.
func keywordScore(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0.0
	}

	textLower := strings.ToLower(text)

	matches := 0
	for _, kw := range keywords {
		if strings.Contains(textLower, kw) {
			matches++
		}
	}
	score := float64(matches) / float64(len(keywords))

	if strings.Contains(textLower, strings.Join(keywords, " ")) {
		score = math.Min(score+phraseBonus, 1.0)
	}
	return score
}

// rerank blends vector similarity with keyword overlap and returns the topK
// best candidates. The sort is stable: equal combined scores keep the
// original candidate order, so identical inputs rank identically.
func rerank(candidates []index.Candidate, keywords []string, topK int) []domain.ScoredDocument {
	docs := make([]domain.ScoredDocument, 0, len(candidates))
	for _, c := range candidates {
		vectorScore := 1.0 - math.Min(c.Distance, 1.0)
		kwScore := keywordScore(c.Text, keywords)
		docs = append(docs, domain.ScoredDocument{
			ID:             c.ID,
			Text:           c.Text,
			Metadata:       c.Metadata,
			VectorDistance: c.Distance,
			KeywordScore:   kwScore,
			CombinedScore:  vectorScore*vectorWeight + kwScore*keywordWeight,
		})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CombinedScore > docs[j].CombinedScore
	})

	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs
}

// rankByDistance orders candidates by ascending vector distance and truncates
// to topK. Used when hybrid scoring is disabled.
func rankByDistance(candidates []index.Candidate, topK int) []domain.ScoredDocument {
	docs := make([]domain.ScoredDocument, 0, len(candidates))
	for _, c := range candidates {
		docs = append(docs, domain.ScoredDocument{
			ID:             c.ID,
			Text:           c.Text,
			Metadata:       c.Metadata,
			VectorDistance: c.Distance,
		})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].VectorDistance < docs[j].VectorDistance
	})

	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs
}
