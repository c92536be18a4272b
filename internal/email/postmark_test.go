package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// rewriteTransport redirects every request to the test server.
type rewriteTransport struct {
	target *url.URL
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func TestConfigured(t *testing.T) {
	if NewClient("", "from@example.com", "https://hashboard.example.com").Configured() {
		t.Error("client without token reported configured")
	}
	if !NewClient("tok", "from@example.com", "https://hashboard.example.com").Configured() {
		t.Error("client with token reported unconfigured")
	}
}

func TestSendPasswordReset(t *testing.T) {
	var got postmarkEmail
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	target, _ := url.Parse(srv.URL)
	client := NewClient("server-token", "noreply@hashboard.example.com", "https://hashboard.example.com",
		WithHTTPClient(&http.Client{Transport: &rewriteTransport{target: target}}))

	if err := client.SendPasswordReset("alice@example.com", "tok123"); err != nil {
		t.Fatalf("send reset: %v", err)
	}

	if gotToken != "server-token" {
		t.Errorf("server token header = %q", gotToken)
	}
	if got.To != "alice@example.com" {
		t.Errorf("To = %q", got.To)
	}
	if got.From != "noreply@hashboard.example.com" {
		t.Errorf("From = %q", got.From)
	}
	wantLink := "https://hashboard.example.com/?reset_token=tok123"
	if !strings.Contains(got.TextBody, wantLink) {
		t.Errorf("text body missing reset link %q:\n%s", wantLink, got.TextBody)
	}
	if !strings.Contains(got.HtmlBody, wantLink) {
		t.Errorf("html body missing reset link %q", wantLink)
	}
}

func TestSendPasswordResetAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	target, _ := url.Parse(srv.URL)
	client := NewClient("server-token", "noreply@hashboard.example.com", "https://hashboard.example.com",
		WithHTTPClient(&http.Client{Transport: &rewriteTransport{target: target}}))

	if err := client.SendPasswordReset("alice@example.com", "tok123"); err == nil {
		t.Error("expected error on 422 response")
	}
}

func TestSendPasswordResetUnconfigured(t *testing.T) {
	client := NewClient("", "noreply@hashboard.example.com", "https://hashboard.example.com")
	if err := client.SendPasswordReset("alice@example.com", "tok123"); err == nil {
		t.Error("expected error when unconfigured")
	}
}
