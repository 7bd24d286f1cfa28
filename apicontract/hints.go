package apicontract

// HintsRequest identifies the SearchHistory row to fetch hints for.
type HintsRequest struct {
	Email         string `json:"email"`
	Platform      string `json:"platform"`
	ProblemNumber string `json:"problem_number"`
	HistoryID     string `json:"history_id"`
}

// HintsResponse carries the hint list once GenerateHints (§4.6.5) has
// completed. §6: "hints returns {hints[]} or 202 Pending" — callers
// distinguish the two cases by HTTP status, not a field in this body;
// Pending is included here only so a contracts-only consumer can model
// the in-progress state without inventing its own sentinel.
type HintsResponse struct {
	Hints   []string `json:"hints"`
	Pending bool     `json:"pending,omitempty"`
}
