package transport

import (
	"fmt"
	"net/http"

	"github.com/bravia-rpc/bravia-go/pkg/wire"
)

// Result is the normalized outcome of a successful round trip.
type Result struct {
	// Result is the device "result" array, the synthesized application
	// source for a benign illegal state, or [code, message] when PowerOff.
	Result []any

	// Results is the device "results" array of arrays (method listings).
	Results [][]any

	// PowerOff is set when the device answered that its display is off.
	PowerOff bool

	// Synthesized is set when Result replaces a benign device error.
	Synthesized bool

	// StatusCode and Header are the HTTP response status and headers.
	StatusCode int
	Header     http.Header

	// Body is the raw response body of a text payload.
	Body []byte
}

// Value returns Results when present, otherwise Result.
func (r *Result) Value() any {
	if r.Results != nil {
		return r.Results
	}
	return r.Result
}

// First returns the first element of Result, or nil.
func (r *Result) First() any {
	if len(r.Result) == 0 {
		return nil
	}
	return r.Result[0]
}

// DecodeFirst re-decodes the first result element into v.
func (r *Result) DecodeFirst(v any) error {
	first := r.First()
	if first == nil {
		return fmt.Errorf("empty result")
	}
	data, err := wire.Marshal(first)
	if err != nil {
		return err
	}
	return wire.Unmarshal(data, v)
}
