package magic

// ValidationError reports a missing or malformed argument to a facade call.
// Field names the offending request field in its wire spelling.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return "magic: " + e.Message
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Response codes emitted by HandleWebhook so platform-side delivery
// tooling can branch on the failure kind.
const (
	CodeInvalidSignature = "invalid_signature"
	CodeInvalidPayload   = "invalid_payload"
	CodeHandlerError     = "handler_error"
)

// errorBody is the JSON shape of every non-2xx webhook response.
func errorBody(message, code string) map[string]interface{} {
	return map[string]interface{}{"error": message, "code": code}
}
