package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Content types used on the two channels.
const (
	ContentTypeJSON = "application/json; charset=UTF-8"
	ContentTypeXML  = "text/xml; charset=UTF-8"
)

// Marshal encodes a value to JSON bytes.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes JSON bytes into a value.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// EncodeRequest validates and encodes a call envelope.
func EncodeRequest(req *Request) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return json.Marshal(req)
}

// DecodeResponse decodes a response envelope. An empty body decodes as an
// empty successful response.
func DecodeResponse(data []byte) (*Response, error) {
	resp := &Response{}
	if len(bytes.TrimSpace(data)) == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// LooksLikeJSON reports whether a body starts like a JSON object or array.
func LooksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
