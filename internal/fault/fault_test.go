package fault

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(KindNotOpen, "service %s is not open", "service3")

	if got := KindOf(err); got != KindNotOpen {
		t.Errorf("KindOf() = %s, want %s", got, KindNotOpen)
	}

	wrapped := fmt.Errorf("submitting: %w", err)
	if got := KindOf(wrapped); got != KindNotOpen {
		t.Errorf("KindOf(wrapped) = %s, want %s", got, KindNotOpen)
	}

	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %s, want %s", got, KindUnknown)
	}
}

func TestErrorsIsMatchesOnKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", New(KindForbidden, "caller is not the announcer"))

	if !errors.Is(err, New(KindForbidden, "")) {
		t.Error("errors.Is should match on kind regardless of message")
	}
	if errors.Is(err, New(KindNotFound, "")) {
		t.Error("errors.Is should not match a different kind")
	}
}

func TestParseReason(t *testing.T) {
	tests := []struct {
		name    string
		reason  string
		want    Kind
		wantMsg string
	}{
		{"contract kind", "NotOpen: service service3 is not open", KindNotOpen, "service service3 is not open"},
		{"kind only", "AlreadyRegistered", KindAlreadyRegistered, ""},
		{"unknown text", "out of gas", KindReverted, "out of gas"},
		{"transport kind is not a revert kind", "LedgerUnavailable: node down", KindReverted, "LedgerUnavailable: node down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ParseReason(tt.reason)
			if f.Kind != tt.want {
				t.Errorf("ParseReason(%q).Kind = %s, want %s", tt.reason, f.Kind, tt.want)
			}
			if f.Msg != tt.wantMsg {
				t.Errorf("ParseReason(%q).Msg = %q, want %q", tt.reason, f.Msg, tt.wantMsg)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindAlreadyRegistered, http.StatusConflict},
		{KindNotOpen, http.StatusConflict},
		{KindReceiptTimeout, http.StatusGatewayTimeout},
		{KindLedgerUnavailable, http.StatusBadGateway},
		{KindUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.kind); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}
