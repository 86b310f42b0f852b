package models

import "fmt"

// AllIndexes selects every enabled index in a search or command.
const AllIndexes = "all"

// Search limits applied by Validate.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// SearchRequest is a semantic query against one index or all of them.
type SearchRequest struct {
	Query           string `json:"query"`
	Limit           int    `json:"limit,omitempty"`
	Index           string `json:"index,omitempty"` // index name, or "all"/empty for every index
	IncludeArchived bool   `json:"include_archived,omitempty"`
}

// Validate ensures the request has a query and normalizes limit and index.
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.Limit <= 0 {
		r.Limit = DefaultLimit
	}
	if r.Limit > MaxLimit {
		r.Limit = MaxLimit
	}
	if r.Index == "" {
		r.Index = AllIndexes
	}
	return nil
}
