package domain

// ScoredDocument is one search hit with its ranking components.
// VectorDistance is the raw index distance; KeywordScore and CombinedScore
// are in [0,1]. When hybrid reranking is off both scores are zero and
// ordering follows VectorDistance.
type ScoredDocument struct {
	ID             string
	Text           string
	Metadata       map[string]string
	VectorDistance float64
	KeywordScore   float64
	CombinedScore  float64
}

// SearchResult is an ordered sequence of hits, length at most the query's
// TopK. Hybrid results order by CombinedScore descending; plain results by
// VectorDistance ascending.
type SearchResult struct {
	Documents []ScoredDocument
}

// Empty reports whether the result carries no documents.
func (r *SearchResult) Empty() bool { return len(r.Documents) == 0 }

// Stats summarizes the retrieval service state.
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
