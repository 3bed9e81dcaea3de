package chessdto

// DomainError is the JSON body of every failed API call.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "chess service error"
}

const (
	CodeBadRequest      = "bad_request"
	CodeSessionNotFound = "session_not_found"
	CodeConflict        = "conflict"
	CodeInternal        = "internal"
)
