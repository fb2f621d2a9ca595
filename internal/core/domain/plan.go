package domain

// Plan is the machine-readable execution plan produced by the planner.
// Only the structured fields are authoritative; Reasoning is diagnostic.
type Plan struct {
	Reasoning          string `json:"reasoning"`
	QueryInstruction   string `json:"query_instruction"`
	NeedsDocumentFetch bool   `json:"needs_document_fetch"`
	DocumentLimit      int    `json:"document_limit"`
}

// NeedsStoreQuery reports whether the plan asks for a metadata-store query.
func (p Plan) NeedsStoreQuery() bool {
	return p.QueryInstruction != ""
}

// FeasibilityVerdict is the gate decision for a plan that would fetch
// trace documents. Created once per plan, never persisted.
type FeasibilityVerdict struct {
	IsValid              bool   `json:"is_valid"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	RecommendedLimit     int    `json:"recommended_limit"`
	Message              string `json:"message"`
	Suggestion           string `json:"suggestion"`
}
