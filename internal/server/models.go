package server

// HTTPError is the generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// RunPipelineRequest carries the caller-supplied product fields.
type RunPipelineRequest struct {
	ProductName string   `json:"product_name"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Competitors []string `json:"competitors"`
}

// UpdateCategoryRequest labels an archived run.
type UpdateCategoryRequest struct {
	TraceID  string `json:"trace_id"`
	Category string `json:"category"`
}

// UpdateEvaluationRequest records a reviewer's verdict on an archived run.
type UpdateEvaluationRequest struct {
	TraceID           string  `json:"trace_id"`
	EvaluationStatus  string  `json:"evaluation_status"`
	EvaluationComment *string `json:"evaluation_comment"`
}

// StatusResponse acknowledges a state-changing evaluation call.
type StatusResponse struct {
	Status string `json:"status"`
}
