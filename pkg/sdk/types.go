package sdk

// Document is one retrievable unit of text with caller-supplied metadata.
// A document with an empty ID gets a generated UUID from the service.
type Document struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchOptions configures a search query. The zero value asks for the
// default result count with pure vector ordering and no filters.
type SearchOptions struct {
	// TopK caps the number of results; 0 means the service default.
	TopK int
	// Filters are conjunctive equality conditions on document metadata.
	Filters map[string]string
	// Hybrid enables keyword-aware reranking on top of the vector scores.
	Hybrid bool
}

// SearchResult is a single search hit. KeywordScore and CombinedScore are
// zero unless the query ran in hybrid mode.
type SearchResult struct {
	ID             string            `json:"id"`
	Text           string            `json:"text"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	VectorDistance float64           `json:"vector_distance"`
	KeywordScore   float64           `json:"keyword_score"`
	CombinedScore  float64           `json:"combined_score"`
}

// Stats summarizes the service state.
type Stats struct {
	TotalCollections  int `json:"total_collections"`
	CachedCollections int `json:"cached_collections"`
	CacheEntries      int `json:"cache_entries"`
}

// CollectionStats summarizes one collection.
type CollectionStats struct {
	Tenant    string `json:"tenant"`
	Category  string `json:"category"`
	Documents int    `json:"documents"`
}

// Request and response envelopes, matching the service wire format.

type addDocumentsRequest struct {
	Documents []Document `json:"documents"`
}

type addDocumentsResponse struct {
	Added int      `json:"added"`
	IDs   []string `json:"ids"`
}

type searchRequest struct {
	Query   string            `json:"query"`
	TopK    int               `json:"top_k,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
	Hybrid  bool              `json:"hybrid,omitempty"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

type listCollectionsResponse struct {
	Collections []string `json:"collections"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
