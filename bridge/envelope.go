package bridge

import (
	"encoding/json"
	"fmt"
)

// Call is the request envelope.
type Call struct {
	RequestID string          `json:"requestId"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Response is the reply envelope.
type Response struct {
	RequestID string          `json:"requestId"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`

	// Synthesized is set when the response was made up on the calling side
	// because no valid response came back. It is never serialized.
	Synthesized bool `json:"-"`
}

// OK builds a success response carrying data. A nil data yields no data
// field.
func OK(requestID string, data any) Response {
	resp := Response{RequestID: requestID, Success: true}
	if data == nil {
		return resp
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Fail(requestID, fmt.Sprintf("Internal error: %v", err))
	}
	resp.Data = raw
	return resp
}

// Fail builds an error response.
func Fail(requestID, msg string) Response {
	return Response{RequestID: requestID, Success: false, Error: msg}
}

// Decode unmarshals the response data into v.
func (r Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("bridge: response has no data")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("bridge: decode data: %w", err)
	}
	return nil
}
