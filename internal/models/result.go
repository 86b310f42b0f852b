package models

// SearchHit is a single chunk returned by a semantic query.
type SearchHit struct {
	Index      string  `json:"index"`
	File       string  `json:"file"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Distance   float64 `json:"distance"` // 1 - cosine similarity; lower is closer
	Archived   bool    `json:"archived,omitempty"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query     string       `json:"query"`
	Index     string       `json:"index"`
	Hits      []*SearchHit `json:"hits"`
	Total     int          `json:"total"`
	QueryTime int64        `json:"query_time_ms"`
}
