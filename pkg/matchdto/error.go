package matchdto

// APIError is the wire shape of a failed operation.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "match service error"
}

// ErrorEnvelope wraps APIError in the response body.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
