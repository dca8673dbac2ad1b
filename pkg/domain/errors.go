package domain

import (
	"net/http"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuthorization
	KindRateLimit
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindRateLimit:
		return "rate_limit"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrContentRequired   = NewErr(KindValidation, "CONTENT_REQUIRED", "content is required")
	ErrInvalidID         = NewErr(KindValidation, "INVALID_ID", "invalid id")
	ErrInvalidRequest    = NewErr(KindValidation, "INVALID_REQUEST", "invalid request")
	ErrPasteNotFound     = NewErr(KindNotFound, "NOT_FOUND", "not found")
	ErrPinRejected       = NewErr(KindAuthorization, "PIN_REJECTED", "pin required or incorrect")
	ErrRateLimitExceeded = NewErr(KindRateLimit, "RATE_LIMIT_EXCEEDED", "too many requests, slow down")
	ErrIDCollision       = NewErr(KindStorage, "ID_COLLISION", "id collision")
	ErrStorage           = NewErr(KindStorage, "STORAGE_ERROR", "storage failure")
	ErrInternalServer    = NewErr(KindInternal, "INTERNAL_ERROR", "internal error")
)

// Err is a classified failure. Two Errs match under errors.Is when their codes match,
// so a sentinel carrying a cause still compares equal to the bare sentinel.
type Err struct {
	Kind  Kind   `json:"-"`
	Code  string `json:"code"`
	Msg   string `json:"message"`
	cause error
}

func NewErr(kind Kind, code, msg string) *Err {
	return &Err{Kind: kind, Code: code, Msg: msg}
}

func (e *Err) Error() string {
	if e.cause != nil {
		return e.Msg + ": " + e.cause.Error()
	}
	return e.Msg
}

func (e *Err) Unwrap() error { return e.cause }

func (e *Err) Is(target error) bool {
	t, ok := target.(*Err)
	return ok && t.Code == e.Code
}

func (e *Err) Status() int { return e.Kind.Status() }

// WithCause copies sentinel and attaches cause to the copy.
func WithCause(sentinel *Err, cause error) error {
	if cause == nil {
		return sentinel
	}
	return &Err{Kind: sentinel.Kind, Code: sentinel.Code, Msg: sentinel.Msg, cause: cause}
}

func KindOf(err error) Kind {
	var e *Err
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Status(err error) int {
	return KindOf(err).Status()
}

type ErrResp struct {
	Error string `json:"error"`
}

// ToResp renders err for clients. Anything that is not a classified client error
// collapses to a generic message.
func ToResp(err error) ErrResp {
	var e *Err
	if errors.As(err, &e) && e.Kind != KindStorage && e.Kind != KindInternal {
		return ErrResp{Error: e.Msg}
	}
	return ErrResp{Error: "internal server error"}
}
