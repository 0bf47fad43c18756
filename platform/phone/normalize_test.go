package phone

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizeCountryCodeAndTrunkPrefix(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+91 98765 43210", "9876543210"},
		{"919876543210", "9876543210"},
		{"09876543210", "9876543210"},
		{"98765-43210", "9876543210"},
		{"(987) 654 3210", "9876543210"},
		{"12345", "12345"},
		{"", ""},
		{"call me", ""},
		// 13 digits keep their prefix.
		{"0919876543210", "0919876543210"},
	}

	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"+91 98765 43210", "09876543210", "919876543210", "12345", "91 91234 56789", "0 0123456789"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestClientIDEquivalentForms(t *testing.T) {
	a := ClientID("+91 98765 43210")
	b := ClientID("09876543210")
	c := ClientID("9876543210")

	if a != b || b != c {
		t.Fatalf("expected identical client ids, got %q %q %q", a, b, c)
	}
	if a != "client_9876543210" {
		t.Fatalf("unexpected client id %q", a)
	}
}

func TestClientIDShortPhoneIsUnmatchable(t *testing.T) {
	original := now
	t.Cleanup(func() { now = original })

	now = func() time.Time { return time.Unix(0, 1700000000000000000) }
	id := ClientID("12345")

	if !strings.HasPrefix(id, "client_") {
		t.Fatalf("expected client_ prefix, got %q", id)
	}
	if id != "client_1700000000000000000" {
		t.Fatalf("expected timestamp client id, got %q", id)
	}
	if IsMatchable("12345") {
		t.Fatalf("short phone must not be matchable")
	}
}

func TestMatch(t *testing.T) {
	if !Match("+91-98765-43210", "09876543210") {
		t.Fatalf("expected equivalent phones to match")
	}
	if Match("12345", "12345") {
		t.Fatalf("short phones must never match")
	}
	if Match("9876543210", "9876543211") {
		t.Fatalf("different phones must not match")
	}
}

func TestFormatE164(t *testing.T) {
	if got := FormatE164("98765 43210"); got != "+919876543210" {
		t.Fatalf("expected +919876543210, got %q", got)
	}
	if got := FormatE164("  not a phone "); got != "not a phone" {
		t.Fatalf("expected trimmed passthrough, got %q", got)
	}
}
