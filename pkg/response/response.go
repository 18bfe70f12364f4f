package response

// Response represents a standard API response format
type Response struct {
	Status     string       `json:"status"`      // "success" or "error"
	StatusCode int          `json:"status_code"` // HTTP status code
	Data       interface{}  `json:"data,omitempty"`
	Meta       interface{}  `json:"meta,omitempty"`
	Error      string       `json:"error,omitempty"`
	Details    *ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail tells the client which kind of failure occurred and, for
// state conflicts, what the resource looked like versus what was required.
type ErrorDetail struct {
	Kind     string `json:"kind"`
	Field    string `json:"field,omitempty"`
	Current  string `json:"current,omitempty"`
	Expected string `json:"expected,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Paged wraps a list page together with its paging metadata.
func Paged(statusCode int, items interface{}, meta interface{}) Response {
	res := Success(statusCode, items)
	res.Meta = meta
	return res
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// Detailed is Error plus a machine-readable classification.
func Detailed(statusCode int, err string, detail ErrorDetail) Response {
	res := Error(statusCode, err)
	res.Details = &detail
	return res
}
