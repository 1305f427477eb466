package wire

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// IRCCSOAPAction is the SOAPACTION header value of the legacy send-code call.
const IRCCSOAPAction = `"urn:schemas-sony-com:service:IRCC:1#X_SendIRCC"`

const irccEnvelopeFormat = `<?xml version="1.0"?>` +
	`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` +
	`<s:Body><u:X_SendIRCC xmlns:u="urn:schemas-sony-com:service:IRCC:1">` +
	`<IRCCCode>%s</IRCCCode>` +
	`</u:X_SendIRCC></s:Body></s:Envelope>`

// IRCCEnvelope builds the SOAP body carrying a single remote-control code.
func IRCCEnvelope(code string) string {
	var escaped strings.Builder
	_ = xml.EscapeText(&escaped, []byte(strings.TrimSpace(code)))
	return fmt.Sprintf(irccEnvelopeFormat, escaped.String())
}

// Fault is the UPnP error carried in a SOAP fault response.
type Fault struct {
	FaultCode        string `json:"faultCode,omitempty"`
	FaultString      string `json:"faultString,omitempty"`
	ErrorCode        int    `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

// String returns a one-line description.
func (f *Fault) String() string {
	return fmt.Sprintf("%d %s", f.ErrorCode, f.ErrorDescription)
}

type soapEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault *struct {
			FaultCode   string `xml:"faultcode"`
			FaultString string `xml:"faultstring"`
			Detail      struct {
				UPnPError *struct {
					ErrorCode        int    `xml:"errorCode"`
					ErrorDescription string `xml:"errorDescription"`
				} `xml:"UPnPError"`
			} `xml:"detail"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

// DecodeFault extracts the UPnP error from a SOAP fault body.
func DecodeFault(data []byte) (*Fault, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty fault body")
	}

	var env soapEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode fault: %w", err)
	}
	if env.Body.Fault == nil {
		return nil, fmt.Errorf("no fault element")
	}
	upnp := env.Body.Fault.Detail.UPnPError
	if upnp == nil {
		return nil, fmt.Errorf("fault carries no UPnP error")
	}

	return &Fault{
		FaultCode:        strings.TrimSpace(env.Body.Fault.FaultCode),
		FaultString:      strings.TrimSpace(env.Body.Fault.FaultString),
		ErrorCode:        upnp.ErrorCode,
		ErrorDescription: strings.TrimSpace(upnp.ErrorDescription),
	}, nil
}
