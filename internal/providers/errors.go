package providers

import "fmt"

// TransportError reports that the inference endpoint could not be reached,
// the response could not be read, or the endpoint answered with a non-2xx status.
type TransportError struct {
	Endpoint   string
	StatusCode int    // 0 when no response was received
	Body       string // response body as returned, for non-2xx statuses
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("inference endpoint returned status %d: %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("inference endpoint returned status %d", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("inference request failed: %v", e.Err)
	}
	return "inference request failed"
}

func (e *TransportError) Unwrap() error { return e.Err }

// EnvelopeError reports a 2xx response whose body is not JSON or lacks
// choices[0].message.content.
type EnvelopeError struct {
	Reason string
	Body   string
	Err    error
}

func (e *EnvelopeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed inference response: %s: %v", e.Reason, e.Err)
	}
	return "malformed inference response: " + e.Reason
}

func (e *EnvelopeError) Unwrap() error { return e.Err }
