package audit

import (
	"net/http/httptest"
	"testing"
)

func TestClientAddressPriority(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/projects", nil)
	r.RemoteAddr = "10.0.0.9:52114"

	if got := ClientAddress(r); got != "10.0.0.9" {
		t.Fatalf("peer fallback = %q", got)
	}

	r.Header.Set("X-Real-IP", "172.16.0.4")
	if got := ClientAddress(r); got != "172.16.0.4" {
		t.Fatalf("X-Real-IP = %q", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 172.16.0.4")
	if got := ClientAddress(r); got != "203.0.113.7" {
		t.Fatalf("X-Forwarded-For = %q", got)
	}
}

func TestClientAddressMalformedPeer(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "badaddr"
	if got := ClientAddress(r); got != "badaddr" {
		t.Fatalf("got %q", got)
	}
}
