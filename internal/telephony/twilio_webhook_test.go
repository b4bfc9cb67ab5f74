package telephony

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseStatusForm(t *testing.T) {
	body := strings.NewReader("CallSid=CA123&From=%2B15551234567&To=%2B15557654321")
	r := httptest.NewRequest(http.MethodPost, PathVoiceStatus, body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	values, err := ParseStatusForm(r, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	f := Fields(values)
	if f["CallSid"] != "CA123" {
		t.Fatalf("expected CallSid")
	}
	if f["From"] != "+15551234567" || f["To"] != "+15557654321" {
		t.Fatalf("unexpected from/to: %q %q", f["From"], f["To"])
	}
}

func TestParseStatusForm_NonFormBodyHasNoParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, PathVoiceStatus, strings.NewReader(`{"CallSid":"CA1"}`))
	r.Header.Set("Content-Type", "application/json")

	values, err := ParseStatusForm(r, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("expected no params, got %v", values)
	}
}

func TestParseStatusForm_BodyLimit(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, PathVoiceStatus, strings.NewReader("CallSid="+strings.Repeat("a", 64)))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if _, err := ParseStatusForm(r, 16); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}

func TestParseStatusForm_Malformed(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, PathVoiceStatus, strings.NewReader("CallSid=%zz"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if _, err := ParseStatusForm(r, 0); !errors.Is(err, ErrMalformedForm) {
		t.Fatalf("expected ErrMalformedForm, got %v", err)
	}
}
