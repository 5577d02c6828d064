package proxy_test

import (
	"net/http"
	"testing"
	"time"

	"aide/internal/proxy"
)

func TestNewHTTPClient_Direct(t *testing.T) {
	c, err := proxy.NewHTTPClient("", 5*time.Second)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	if c.Timeout != 5*time.Second {
		t.Errorf("timeout: got %v", c.Timeout)
	}
	if c.Transport != nil {
		t.Errorf("direct client should use the default transport")
	}
}

func TestNewHTTPClient_Socks(t *testing.T) {
	c, err := proxy.NewHTTPClient("127.0.0.1:1080", time.Minute)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok || tr.DialContext == nil {
		t.Fatalf("expected custom dialing transport, got %T", c.Transport)
	}
}
