package dto

// APIErrorResponse is the uniform error envelope produced by the error
// middleware.
type APIErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// FieldError carries one validation failure inside Details.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
