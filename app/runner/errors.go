package runner

import "fmt"

// RequestBuildError reports a failure to build the request for a query,
// such as a missing required input variable or a disallowed endpoint.
type RequestBuildError struct {
	Query string
	Err   error
}

func (e *RequestBuildError) Error() string {
	return fmt.Sprintf("query %s: build request: %v", e.Query, e.Err)
}

func (e *RequestBuildError) Unwrap() error { return e.Err }

// DeserializationError reports a response body that could not be parsed.
type DeserializationError struct {
	Query string
	Err   error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("query %s: decode response: %v", e.Query, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }
