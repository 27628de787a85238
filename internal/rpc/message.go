// Package rpc defines the request/response messages exchanged with the
// analysis server, the error code taxonomy and the typed parameters and
// results of every method.
package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Request is a single method call. ID is any JSON value the caller chose
// and is echoed back verbatim in the response.
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method Method          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response carries either a result or an error, never both.
type Response struct {
	ID     json.RawMessage
	Result json.RawMessage
	Error  *Error
}

// NewRequest creates a request with params encoded as JSON.
func NewRequest(method Method, params any) (*Request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params for %s: %w", method, err)
	}
	return &Request{Method: method, Params: raw}, nil
}

// StringID encodes s as a request id.
func StringID(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}

// ParseRequest decodes a request body. Failures are returned as *Error
// with CodeInputError.
func ParseRequest(body string) (*Request, error) {
	var req Request
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return nil, NewError(CodeInputError, "invalid request body: %v", err)
	}
	if req.Method == "" {
		return nil, NewError(CodeInputError, "request has no method")
	}
	if len(req.Params) == 0 {
		req.Params = json.RawMessage("null")
	}
	return &req, nil
}

// OK creates a successful response. A result that cannot be encoded yields
// an internal error response instead.
func OK(result any) *Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return Fail(NewError(CodeInternalError, "failed to encode result: %v", err))
	}
	return &Response{Result: raw}
}

// Fail creates an error response.
func Fail(err *Error) *Response {
	return &Response{Error: err}
}

// Failf creates an error response with a formatted message.
func Failf(code Code, format string, args ...any) *Response {
	return Fail(NewError(code, format, args...))
}

// Failed reports whether the response carries an error.
func (r *Response) Failed() bool {
	return r.Error != nil
}

// Decode unmarshals the result into v. A failed response returns its *Error.
func (r *Response) Decode(v any) error {
	if r.Error != nil {
		return r.Error
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Result, v); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

type responseWire struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// MarshalJSON encodes exactly one of result or error. A successful response
// with no result is encoded as {"result": null}.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(responseWire{ID: r.ID, Error: r.Error})
	}
	result := r.Result
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return json.Marshal(responseWire{ID: r.ID, Result: result})
}

// UnmarshalJSON rejects bodies that carry both or neither of result and error.
func (r *Response) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	result, hasResult := fields["result"]
	rawErr, hasError := fields["error"]
	if hasError && bytes.Equal(bytes.TrimSpace(rawErr), []byte("null")) {
		hasError = false
	}
	switch {
	case hasResult && hasError:
		return fmt.Errorf("response has both result and error")
	case !hasResult && !hasError:
		return fmt.Errorf("response has neither result nor error")
	}

	*r = Response{}
	if id, ok := fields["id"]; ok {
		r.ID = id
	}
	if hasResult {
		r.Result = result
		return nil
	}

	var wire struct {
		Code    *Code  `json:"code"`
		Message string `json:"message"`
		Data    any    `json:"data"`
	}
	if err := json.Unmarshal(rawErr, &wire); err != nil {
		return fmt.Errorf("invalid error object: %w", err)
	}
	if wire.Code == nil {
		return fmt.Errorf("error object has no code")
	}
	r.Error = &Error{Code: *wire.Code, Message: wire.Message, Data: wire.Data}
	return nil
}

// ParseResponse decodes a response body.
func ParseResponse(body string) (*Response, error) {
	var resp Response
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("invalid response body: %w", err)
	}
	return &resp, nil
}

// Encode returns the JSON body of the response.
func (r *Response) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Encode returns the JSON body of the request.
func (r *Request) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
