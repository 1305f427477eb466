// Package wire defines the JSON wire format of the device control API.
//
// Every remote method lives on an endpoint ("system", "audio", ...) and is
// called by POSTing a call envelope to <base>/<endpoint>:
//
//	{"id": 1, "method": "getPowerStatus", "version": "1.0", "params": []}
//
// The device answers with one of three shapes:
//
//	{"id": 1, "result": [ ... ]}          // single result array
//	{"id": 1, "results": [[...], [...]]}  // array of result rows
//	{"id": 1, "error": [code, "message"]} // device-reported error
//
// # Parameter descriptors
//
// Introspection (getMethodTypes) describes parameters as strings. A scalar
// descriptor is a type name ("string", "int", "bool"); an object descriptor is
// a JSON object literal mapping field names to type names. Either may carry a
// trailing "*" marking an array. ParseParam decodes both into the Param
// variant.
//
// # Legacy command channel
//
// Remote-control codes are sent over a separate SOAP channel. IRCCEnvelope
// builds the request body and DecodeFault extracts the UPnP error carried in
// a SOAP fault response.
package wire
