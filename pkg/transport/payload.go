package transport

import (
	"net/http"

	"github.com/bravia-rpc/bravia-go/pkg/wire"
)

// Payload is the body of one round trip: either a JSON call envelope or a
// legacy SOAP text body. Construct it with Call or Text.
type Payload struct {
	call *wire.Request
	text string
}

// Call wraps a JSON call envelope.
func Call(req *wire.Request) Payload {
	return Payload{call: req}
}

// Text wraps a legacy SOAP body sent to the IRCC channel.
func Text(body string) Payload {
	return Payload{text: body}
}

// Request returns the call envelope, or nil for a text payload.
func (p Payload) Request() *wire.Request {
	return p.call
}

// IsText reports whether the payload is a legacy SOAP body.
func (p Payload) IsText() bool {
	return p.call == nil
}

func (p Payload) encode() ([]byte, error) {
	if p.call == nil {
		return []byte(p.text), nil
	}
	return wire.EncodeRequest(p.call)
}

// contentHeaders sets the headers implied by the payload kind.
func (p Payload) contentHeaders(h http.Header) {
	if p.call == nil {
		h.Set("Content-Type", wire.ContentTypeXML)
		h.Set("SOAPACTION", wire.IRCCSOAPAction)
		return
	}
	h.Set("Content-Type", wire.ContentTypeJSON)
}
