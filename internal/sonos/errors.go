package sonos

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrorType represents the category of error that occurred while talking to a speaker
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (reset, unreachable, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates the speaker did not answer in time
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening on the control port
	ErrTypeConnectionRefused
	// ErrTypeHTTP indicates an HTTP-level error (non-200 status code)
	ErrTypeHTTP
	// ErrTypeParse indicates the response body was not the XML we expected
	ErrTypeParse
	// ErrTypeFault indicates the speaker answered a SOAP action with a UPnP fault
	ErrTypeFault
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorConnectionReset
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeFault:
		return "UPnP Fault"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred during speaker communication
type DeviceError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	StatusCode     int                 // HTTP status code (if applicable)
	FaultCode      string              // UPnP error code from a SOAP fault (if applicable)
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	DeviceIP       string              // Speaker IP address (for context)
	Retryable      bool                // Whether the error is retryable
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes a transport error and returns a typed DeviceError
func ClassifyNetworkError(err error, deviceIP string) *DeviceError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return &DeviceError{
			Type:           ErrTypeTimeout,
			Message:        "request timed out",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			DeviceIP:       deviceIP,
			Retryable:      true,
		}
	}

	// Recurse into url.Error before looking for an OpError so the
	// innermost cause decides the classification.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		classified := ClassifyNetworkError(urlErr.Err, deviceIP)
		classified.Err = err
		return classified
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return &DeviceError{
			Type:           ErrTypeConnectionRefused,
			Message:        "speaker refused connection",
			Err:            err,
			NetworkSubtype: NetworkErrorConnectionRefused,
			DeviceIP:       deviceIP,
			Retryable:      false,
		}
	case errors.Is(err, syscall.ECONNRESET):
		return &DeviceError{
			Type:           ErrTypeNetwork,
			Message:        "connection reset",
			Err:            err,
			NetworkSubtype: NetworkErrorConnectionReset,
			DeviceIP:       deviceIP,
			Retryable:      true,
		}
	case errors.Is(err, syscall.EHOSTUNREACH):
		return &DeviceError{
			Type:           ErrTypeNetwork,
			Message:        "host unreachable",
			Err:            err,
			NetworkSubtype: NetworkErrorHostUnreachable,
			DeviceIP:       deviceIP,
			Retryable:      false,
		}
	case errors.Is(err, syscall.ENETUNREACH):
		return &DeviceError{
			Type:           ErrTypeNetwork,
			Message:        "network unreachable",
			Err:            err,
			NetworkSubtype: NetworkErrorNetworkUnreachable,
			DeviceIP:       deviceIP,
			Retryable:      false,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &DeviceError{
			Type:           ErrTypeNetwork,
			Message:        fmt.Sprintf("%s failed", opErr.Op),
			Err:            err,
			NetworkSubtype: NetworkErrorGeneral,
			DeviceIP:       deviceIP,
			Retryable:      true,
		}
	}

	return &DeviceError{
		Type:           ErrTypeNetwork,
		Message:        "network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		DeviceIP:       deviceIP,
		Retryable:      true,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(deviceIP, message string, err error) *DeviceError {
	classified := ClassifyNetworkError(err, deviceIP)
	if classified != nil {
		classified.Message = message + ": " + classified.Message
		return classified
	}
	return &DeviceError{
		Type:      ErrTypeNetwork,
		Message:   message,
		DeviceIP:  deviceIP,
		Retryable: true,
	}
}

// NewHTTPError creates an HTTP-level error
func NewHTTPError(deviceIP string, statusCode int, message string) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		DeviceIP:   deviceIP,
		Retryable:  statusCode >= 500,
	}
}

// NewParseError creates a parsing error
func NewParseError(deviceIP, message string, err error) *DeviceError {
	return &DeviceError{
		Type:     ErrTypeParse,
		Message:  message,
		Err:      err,
		DeviceIP: deviceIP,
	}
}

// NewFaultError creates an error from a SOAP fault body
func NewFaultError(deviceIP, action string, fault *soapFault) *DeviceError {
	code := fault.Detail.Code
	msg := fmt.Sprintf("%s rejected: %s", action, fault.String)
	if code != "" {
		msg = fmt.Sprintf("%s (UPnP error %s)", msg, code)
	}
	return &DeviceError{
		Type:       ErrTypeFault,
		Message:    msg,
		StatusCode: 500,
		FaultCode:  code,
		DeviceIP:   deviceIP,
	}
}

func asDeviceError(err error) (*DeviceError, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr, true
	}
	return nil, false
}

// IsNetworkError reports whether err means the speaker could not be reached at all
// (timeout, refused, reset, unreachable). Everything else means something answered.
func IsNetworkError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeNetwork ||
			devErr.Type == ErrTypeTimeout ||
			devErr.Type == ErrTypeConnectionRefused
	}
	return false
}

// IsHTTPError checks if an error is an HTTP error
func IsHTTPError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeHTTP
	}
	return false
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeParse
	}
	return false
}

// IsFaultError checks if an error is a UPnP fault
func IsFaultError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeFault
	}
	return false
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Retryable
	}
	return false
}
