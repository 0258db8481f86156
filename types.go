package recall

import "github.com/kailas-cloud/recall/internal/domain"

// Document is one retrievable unit of text with caller-supplied metadata.
// An empty ID is filled with a generated UUID on add; re-adding an ID
// replaces the document.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// SearchOptions configures a search query. The zero value asks for the
// default result count with pure vector ordering and no filters.
type SearchOptions struct {
	// TopK caps the number of results; 0 means the service default.
	TopK int
	// Filters are conjunctive equality conditions on document metadata.
	// A tenant filter supplied here is dropped, not honored.
	Filters map[string]string
	// Hybrid enables keyword-aware reranking on top of the vector scores.
	Hybrid bool
}

// SearchResult is a single search hit. KeywordScore and CombinedScore are
// zero unless the query ran in hybrid mode.
type SearchResult struct {
	ID             string
	Text           string
	Metadata       map[string]string
	VectorDistance float64
	KeywordScore   float64
	CombinedScore  float64
}

// Stats summarizes the client state across all collections.
type Stats struct {
	TotalCollections  int
	CachedCollections int
	CacheEntries      int
}

// CollectionStats summarizes one collection.
type CollectionStats struct {
	Tenant    string
	Category  string
	Documents int
}

func toDomainDocuments(docs []Document) []domain.Document {
	out := make([]domain.Document, len(docs))
	for i, d := range docs {
		out[i] = domain.Document{ID: d.ID, Text: d.Text, Metadata: d.Metadata}
	}
	return out
}

func fromScoredDocuments(docs []domain.ScoredDocument) []SearchResult {
	out := make([]SearchResult, len(docs))
	for i := range docs {
		d := &docs[i]
		out[i] = SearchResult{
			ID:             d.ID,
			Text:           d.Text,
			Metadata:       d.Metadata,
			VectorDistance: d.VectorDistance,
			KeywordScore:   d.KeywordScore,
			CombinedScore:  d.CombinedScore,
		}
	}
	return out
}
