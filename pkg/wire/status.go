package wire

import "strings"

// Code is a device-reported error code.
type Code int

const (
	// CodeAny is the generic failure code.
	CodeAny Code = 1

	// CodeTimeout indicates the device timed out handling the call.
	CodeTimeout Code = 2

	// CodeIllegalArgument indicates a parameter was rejected.
	CodeIllegalArgument Code = 3

	// CodeIllegalRequest indicates a malformed call envelope.
	CodeIllegalRequest Code = 5

	// CodeIllegalState indicates the call does not apply in the current state.
	CodeIllegalState Code = 7

	// CodeNoSuchMethod indicates the endpoint has no such method.
	CodeNoSuchMethod Code = 12

	// CodeUnsupportedVersion indicates the method exists but not at that version.
	CodeUnsupportedVersion Code = 14

	// CodeUnsupportedOperation indicates the operation is not supported.
	CodeUnsupportedOperation Code = 15

	// CodeUnauthorized indicates missing or rejected credentials.
	CodeUnauthorized Code = 401

	// CodeForbidden indicates the credentials lack permission.
	CodeForbidden Code = 403

	// CodeNotFound indicates the endpoint or resource does not exist.
	CodeNotFound Code = 404

	// CodeNotImplemented indicates the device does not implement the call.
	CodeNotImplemented Code = 501

	// CodeDisplayOff is the power-off sentinel: the display is turned off.
	CodeDisplayOff Code = 40005
)

// String returns the code name.
func (c Code) String() string {
	switch c {
	case CodeAny:
		return "ANY"
	case CodeTimeout:
		return "TIMEOUT"
	case CodeIllegalArgument:
		return "ILLEGAL_ARGUMENT"
	case CodeIllegalRequest:
		return "ILLEGAL_REQUEST"
	case CodeIllegalState:
		return "ILLEGAL_STATE"
	case CodeNoSuchMethod:
		return "NO_SUCH_METHOD"
	case CodeUnsupportedVersion:
		return "UNSUPPORTED_VERSION"
	case CodeUnsupportedOperation:
		return "UNSUPPORTED_OPERATION"
	case CodeUnauthorized:
		return "UNAUTHORIZED"
	case CodeForbidden:
		return "FORBIDDEN"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeNotImplemented:
		return "NOT_IMPLEMENTED"
	case CodeDisplayOff:
		return "DISPLAY_OFF"
	default:
		return "UNKNOWN"
	}
}

// Messages the device uses for conditions that are not failures.
const (
	// MessageIllegalState is reported when there is nothing to answer, e.g.
	// no media information while an application is in the foreground.
	MessageIllegalState = "Illegal State"

	// MessageDisplayOff is reported while the display is off.
	MessageDisplayOff = "Display Is Turned off"

	// MessageNotPowerOn is reported by older firmware while in standby.
	MessageNotPowerOn = "not power-on"
)

// IsBenignIllegalState reports whether a device error is the "nothing to
// report" condition rather than a failure.
func IsBenignIllegalState(e *DeviceError) bool {
	return e != nil && e.Message == MessageIllegalState
}

// IsPowerOff reports whether a device error means the device is asleep.
func IsPowerOff(e *DeviceError) bool {
	if e == nil {
		return false
	}
	if e.Code == CodeDisplayOff {
		return true
	}
	msg := strings.TrimSpace(e.Message)
	return strings.EqualFold(msg, MessageDisplayOff) || strings.EqualFold(msg, MessageNotPowerOn)
}

// ApplicationSource returns the result synthesized for the benign illegal
// state: the device is showing an application and has no source to report.
func ApplicationSource() []any {
	return []any{
		map[string]any{
			"source": "application",
			"title":  "Application",
			"uri":    false,
		},
	}
}
