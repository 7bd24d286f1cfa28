package apicontract

import "time"

// HistoryItem is one SearchHistory row as returned across the wire.
// The user's full source code is included only on the single-item
// lookup, never in a list page, to keep list responses small; list
// endpoints set Code to "".
type HistoryItem struct {
	ID            string    `json:"id"`
	Platform      string    `json:"platform"`
	ProblemNumber string    `json:"problem_number"`
	Title         string    `json:"title"`
	Code          string    `json:"code,omitempty"`
	Public        bool      `json:"public"`
	Passed        int       `json:"passed"`
	Failed        int       `json:"failed"`
	Total         int       `json:"total"`
	Hints         []string  `json:"hints,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// HistoryListRequest is the query shape for a user's own history or
// the global public feed (§6: "history returns paginated lists").
type HistoryListRequest struct {
	Platform      string `json:"platform,omitempty"`
	ProblemNumber string `json:"problem_number,omitempty"`
	Cursor        string `json:"cursor,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

// HistoryListResponse is one page of history rows plus the cursor to
// continue from.
type HistoryListResponse struct {
	Items      []HistoryItem `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}
