package apicontract

// AdminRecoverRequest triggers an out-of-band orphan sweep (§4.10) in
// addition to the periodic one; the body is empty today but kept as a
// named type so future filters (e.g. a single job id) have a home.
type AdminRecoverRequest struct{}

// AdminRecoverResponse reports how many stuck jobs the sweep
// transitioned to FAILED, split by job kind.
type AdminRecoverResponse struct {
	ExtractionJobsRecovered int `json:"extraction_jobs_recovered"`
	ScriptJobsRecovered     int `json:"script_jobs_recovered"`
}
