package fault

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the machine-readable error class shared by the contract, the
// gateway and its clients. Kinds travel across the ledger boundary as revert
// reasons, so their string form is part of the wire contract.
type Kind string

const (
	KindNotRegistered     Kind = "NotRegistered"
	KindAlreadyRegistered Kind = "AlreadyRegistered"
	KindNotFound          Kind = "NotFound"
	KindNotOpen           Kind = "NotOpen"
	KindNotClosed         Kind = "NotClosed"
	KindForbidden         Kind = "Forbidden"
	KindIndexOutOfRange   Kind = "IndexOutOfRange"
	KindSubmission        Kind = "SubmissionError"
	KindReverted          Kind = "RevertedError"
	KindReceiptTimeout    Kind = "ReceiptTimeout"
	KindLedgerUnavailable Kind = "LedgerUnavailable"
	KindValidation        Kind = "ValidationError"
	KindUnknown           Kind = "Unknown"
)

// Fault is an error with a Kind. All errors crossing package boundaries in
// fedgate are either a *Fault or wrap one.
type Fault struct {
	Kind Kind
	Msg  string
}

func (f *Fault) Error() string {
	if f.Msg == "" {
		return string(f.Kind)
	}
	return string(f.Kind) + ": " + f.Msg
}

// Is makes errors.Is(err, fault.New(kind, "")) match on kind alone.
func (f *Fault) Is(target error) bool {
	var other *Fault
	if errors.As(target, &other) {
		return f.Kind == other.Kind
	}
	return false
}

func New(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ParseReason splits a revert reason back into its kind and message.
// Reasons are produced by Fault.Error, so the format is "Kind: message".
// Unrecognized reasons come back as KindReverted with the raw text.
func ParseReason(reason string) *Fault {
	kindStr, msg, _ := strings.Cut(reason, ": ")
	switch k := Kind(kindStr); k {
	case KindNotRegistered, KindAlreadyRegistered, KindNotFound, KindNotOpen,
		KindNotClosed, KindForbidden, KindIndexOutOfRange, KindValidation:
		return &Fault{Kind: k, Msg: msg}
	}
	return &Fault{Kind: KindReverted, Msg: reason}
}

// HTTPStatus maps a kind to the response status used by the gateway API.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyRegistered, KindNotRegistered, KindNotOpen, KindNotClosed,
		KindIndexOutOfRange, KindReverted:
		return http.StatusConflict
	case KindReceiptTimeout:
		return http.StatusGatewayTimeout
	case KindSubmission, KindLedgerUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
