package tools

// Status is the outcome of one dispatch.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result answers exactly one tool invocation.
type Result struct {
	InvocationID string
	Tool         string
	Status       Status
	Payload      map[string]any
	Message      string
	Summary      string
	Warnings     []string
	Err          error
}

// IsError reports whether the dispatch failed.
func (r Result) IsError() bool {
	return r.Status == StatusError
}

// Content renders the result envelope handed back to the reasoning
// engine: the payload fields plus "status", or {"status","message"}.
func (r Result) Content() string {
	envelope := make(map[string]any, len(r.Payload)+1)
	if r.IsError() {
		envelope["message"] = r.Message
	} else {
		for k, v := range r.Payload {
			envelope[k] = v
		}
	}
	envelope["status"] = string(r.Status)

	data, err := json.Marshal(envelope)
	if err != nil {
		return `{"status":"error","message":"result could not be encoded"}`
	}
	return string(data)
}

// ErrorResult builds an error result for tool name.
func ErrorResult(name string, err error) Result {
	return Result{
		Tool:    name,
		Status:  StatusError,
		Message: err.Error(),
		Err:     err,
	}
}
