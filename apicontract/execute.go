// Package apicontract defines the request/response payload shapes for
// the public HTTP surface (C11) that sits in front of this module:
// execute, register, history, hints, admin/recover, plans/list, and the
// auth/* endpoints. §1 places HTTP routing, authentication, and
// serialization out of scope — this package fixes only the wire shapes
// those endpoints consume from and hand back into the core, so an HTTP
// layer built elsewhere has something concrete to bind against.
package apicontract

// ExecuteRequest is the body of a submission-execution request. The
// caller's identity (user email/id) comes from the authenticated
// session, not the body.
type ExecuteRequest struct {
	Platform          string `json:"platform"`
	ProblemIdentifier string `json:"problem_identifier"`
	Code              string `json:"code"`
	Language          string `json:"language"`
	IsPublic          bool   `json:"is_public"`
}

// UsageInfo reports a user's current count against their plan quota
// for the action the enclosing response concerns (§6: execute returns
// "usage:{current_count, limit}").
type UsageInfo struct {
	CurrentCount int64 `json:"current_count"`
	Limit        int   `json:"limit"`
}

// ExecuteResponse is returned immediately on enqueue; the actual
// outcome is retrieved later via the history endpoint.
type ExecuteResponse struct {
	TaskID string    `json:"task_id"`
	Usage  UsageInfo `json:"usage"`
}
