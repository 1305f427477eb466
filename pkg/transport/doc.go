// Package transport performs single request/response round trips against a
// device and normalizes every outcome into one result/error contract.
//
// # Outcomes
//
// A call either returns a *Result or an *Error:
//
//	2xx, {"result": [...]}                  → Result.Result
//	2xx, {"results": [[...], ...]}          → Result.Results
//	2xx, {"error": [7, "Illegal State"]}    → synthesized application source
//	2xx, {"error": [40005, "..."]}          → Result.PowerOff, [code, message]
//	2xx, {"error": [code, message]}         → Error{Kind: KindProtocol}
//	non-2xx                                 → Error{Kind: KindHTTP}, SOAP fault attached
//	no response                             → Error{Kind: KindNetwork}, NetCode set
//
// A power-off answer is not an error: callers can react to it, for example
// by waking the device, without unwrapping anything.
//
// # Authentication
//
// A pre-shared key is sent as X-Auth-PSK, otherwise a session token is sent
// as the "auth" cookie. Caller supplied headers never replace either.
//
// # Pacing
//
// Some sets drop requests that arrive in bursts. Config.RateLimit enables a
// token bucket shared by every call made through the same Invoker.
package transport
