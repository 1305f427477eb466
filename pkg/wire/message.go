package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// DefaultVersion is the method version used when the caller does not ask for one.
const DefaultVersion = "1.0"

// Request is the call envelope sent to an endpoint.
//
//	{"id": 1, "method": "getVersions", "version": "1.0", "params": []}
type Request struct {
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Version string `json:"version"`
	Params  []any  `json:"params"`
}

// NewRequest builds a request with a non-nil parameter list and the default
// version when version is empty.
func NewRequest(id int, method, version string, params []any) *Request {
	if version == "" {
		version = DefaultVersion
	}
	if params == nil {
		params = []any{}
	}
	return &Request{ID: id, Method: method, Version: version, Params: params}
}

// NormalizeParams turns caller supplied params into the positional list
// sent on the wire: nil becomes an empty list, a slice or array is spread,
// anything else (usually an object) becomes a one-element list.
func NormalizeParams(params any) []any {
	switch p := params.(type) {
	case nil:
		return []any{}
	case []any:
		if p == nil {
			return []any{}
		}
		return p
	case json.RawMessage, []byte:
		return []any{p}
	}

	v := reflect.ValueOf(params)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return []any{params}
	}
	if v.Kind() == reflect.Slice && v.IsNil() {
		return []any{}
	}
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out
}

// Validate checks if the request is valid.
func (r *Request) Validate() error {
	if r.ID == 0 {
		return fmt.Errorf("call id 0 is not allowed")
	}
	if r.Method == "" {
		return fmt.Errorf("method name is empty")
	}
	return nil
}

// MarshalJSON encodes the request, always emitting params as an array.
func (r Request) MarshalJSON() ([]byte, error) {
	type plain Request
	p := plain(r)
	if p.Params == nil {
		p.Params = []any{}
	}
	if p.Version == "" {
		p.Version = DefaultVersion
	}
	return json.Marshal(p)
}

// Response is the envelope returned by an endpoint.
// At most one of Result, Results and Error is expected to be set.
type Response struct {
	ID      int          `json:"id,omitempty"`
	Result  []any        `json:"result,omitempty"`
	Results [][]any      `json:"results,omitempty"`
	Error   *DeviceError `json:"error,omitempty"`
}

// IsSuccess returns true if the response carries no device error.
func (r *Response) IsSuccess() bool {
	return r.Error == nil
}

// DeviceError is the two-element [code, message] error pair reported by the device.
type DeviceError struct {
	Code    Code
	Message string
}

// Error implements error.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error %d: %s", int(e.Code), e.Message)
}

// MarshalJSON encodes the pair as a two-element array.
func (e DeviceError) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{int(e.Code), e.Message})
}

// UnmarshalJSON decodes [code, message]. Trailing elements are ignored and a
// missing message decodes as the empty string.
func (e *DeviceError) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("error field is not an array: %w", err)
	}
	if len(raw) == 0 {
		return errors.New("error field is empty")
	}

	var code float64
	if err := json.Unmarshal(raw[0], &code); err != nil {
		return fmt.Errorf("error code is not a number: %w", err)
	}
	e.Code = Code(int(code))
	e.Message = ""

	if len(raw) > 1 {
		var msg string
		if err := json.Unmarshal(raw[1], &msg); err != nil {
			// Some firmware sends a non-string message; keep its JSON text.
			msg = string(raw[1])
		}
		e.Message = msg
	}
	return nil
}
