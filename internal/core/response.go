package core

import "errors"

// Response is the envelope every service operation returns.
type Response struct {
	Response   any     `json:"response"`
	IsSuccess  bool    `json:"isSuccess"`
	Message    string  `json:"message"`
	Code       string  `json:"code,omitempty"`
	MissingIDs []int64 `json:"missingIds,omitempty"`

	err error
}

// Err returns the error behind a failed response, if any.
func (r Response) Err() error { return r.err }

// Success wraps payload in a successful envelope.
func Success(payload any, message string) Response {
	return Response{Response: payload, IsSuccess: true, Message: message}
}

// Failure builds a failed envelope. Classified errors keep their message;
// anything else is replaced by the catalog message for err.
func Failure(payload any, err error) Response {
	r := Response{Response: payload, err: err}

	um := MapError(err)
	r.Code = um.Code

	var ce *Error
	if errors.As(err, &ce) && ce.Kind != KindStoreFailure {
		r.Message = ce.Message
		r.MissingIDs = ce.MissingIDs
		return r
	}
	r.Message = um.Message
	return r
}

// FailureMessage builds a failed envelope of the given kind with an explicit
// message, used when the payload itself explains the failure (batch outcomes).
func FailureMessage(payload any, message string, kind Kind) Response {
	err := &Error{Kind: kind, Message: message}
	return Response{Response: payload, Message: message, Code: MapError(err).Code, err: err}
}
