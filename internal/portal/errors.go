package portal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrUnauthorized matches any error caused by a missing, expired or rejected
// bearer credential.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response from the portal.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// ConnectivityError wraps transport failures where no response arrived.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: cannot reach portal: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// Timeout reports whether the request ran out of time.
func (e *ConnectivityError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

type Category int

const (
	CategoryNone Category = iota
	CategoryConnectivity
	CategoryBusiness
	CategoryAuth
	CategoryUnknown
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryConnectivity:
		return "connectivity"
	case CategoryBusiness:
		return "business"
	case CategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Classify sorts an error into the categories callers must handle differently.
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}
	if errors.Is(err, ErrUnauthorized) {
		return CategoryAuth
	}
	var ce *ConnectivityError
	if errors.As(err, &ce) {
		return CategoryConnectivity
	}
	var ae *APIError
	if errors.As(err, &ae) {
		if ae.StatusCode >= 500 {
			return CategoryConnectivity
		}
		return CategoryBusiness
	}
	return CategoryUnknown
}

var businessMessages = map[string]string{
	"duplicate_application": "You have already applied for this job.",
	"invalid_credentials":   "Invalid credentials. Check your email and password.",
	"stage_not_forward":     "The candidate can only be moved to a later stage.",
	"round_decided":         "A decision was already recorded for this candidate. Refresh the list.",
	"terminal_stage":        "This candidate has already completed the pipeline.",
	"missing_resume":        "Please attach your resume.",
	"not_found":             "The candidate could not be found. Refresh the list.",
	"validation_failed":     "Some answers are not valid. Review the highlighted fields and submit again.",
}

type partialSender interface {
	Partial() bool
	Moved() bool
}

// UserMessage turns any error from the engine into text fit to show a user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ps partialSender
	if errors.As(err, &ps) {
		if Classify(err) == CategoryAuth {
			return "Your session has expired. Please sign in again."
		}
		switch {
		case ps.Partial() && ps.Moved():
			return "The candidate was moved but the notification failed. Send again to retry only the notification; the attempt has been logged for follow-up."
		case ps.Partial():
			return "The notification went out but the stage change failed. Send again to retry only the stage change; the attempt has been logged for follow-up."
		default:
			return "The decision was not sent. Please try again."
		}
	}
	switch Classify(err) {
	case CategoryAuth:
		return "Your session has expired. Please sign in again."
	case CategoryConnectivity:
		return "Could not reach the server. Check your connection and try again."
	case CategoryBusiness:
		var ae *APIError
		errors.As(err, &ae)
		if msg, ok := businessMessages[ae.Code]; ok {
			return msg
		}
		if ae.Message != "" {
			return ae.Message
		}
		return "The request was rejected. Please review and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
