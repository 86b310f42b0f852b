package models

import "testing"

func TestSearchRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       *SearchRequest
		wantErr   bool
		wantLimit int
		wantIndex string
	}{
		{"empty query", &SearchRequest{Query: ""}, true, 0, ""},
		{"defaults", &SearchRequest{Query: "x"}, false, 10, AllIndexes},
		{"caps limit at 100", &SearchRequest{Query: "x", Limit: 200}, false, 100, AllIndexes},
		{"keeps named index", &SearchRequest{Query: "x", Limit: 3, Index: "code"}, false, 3, "code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.req.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", tt.req.Limit, tt.wantLimit)
			}
			if tt.req.Index != tt.wantIndex {
				t.Errorf("Index = %q, want %q", tt.req.Index, tt.wantIndex)
			}
		})
	}
}
