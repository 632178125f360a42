package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/torosent/vegasload/internal/scenario"
)

func TestBuildRequestWithHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("content-type", "application/json")
	headers.Set("x-dynatrace-test", "VU=1;SI=LoadRunner;TSN=Slot_Spin")
	action := scenario.Action{
		Name:    "Spin_Request",
		Method:  "post",
		URL:     "http://casino.local:3000/api/slots/spin",
		Referer: "http://casino.local:3000/vegas-casino.html",
		Accept:  "application/json",
		Headers: headers,
		Body:    []byte(`{"BetAmount":3,"Username":"LoadTest_User_1"}`),
	}

	req, err := NewRequestBuilder("Test Agent").Build(context.Background(), action)
	if err != nil {
		t.Fatalf("expected request, got error: %v", err)
	}

	if req.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %s", req.Method)
	}
	if req.URL.String() != action.URL {
		t.Fatalf("expected URL %s, got %s", action.URL, req.URL.String())
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("expected canonical Content-Type header, got %q", req.Header.Get("Content-Type"))
	}
	if req.Header.Get("X-Dynatrace-Test") != "VU=1;SI=LoadRunner;TSN=Slot_Spin" {
		t.Fatalf("expected x-dynatrace-test header, got %q", req.Header.Get("X-Dynatrace-Test"))
	}
	if req.Header.Get("Referer") != action.Referer {
		t.Fatalf("Referer = %q", req.Header.Get("Referer"))
	}
	if req.Header.Get("Accept") != "application/json" {
		t.Fatalf("Accept = %q", req.Header.Get("Accept"))
	}
	if req.Header.Get("User-Agent") != "Test Agent" {
		t.Fatalf("User-Agent = %q", req.Header.Get("User-Agent"))
	}
	if req.ContentLength != int64(len(action.Body)) {
		t.Fatalf("ContentLength = %d, want %d", req.ContentLength, len(action.Body))
	}

	bodyBytes, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	if got := gjson.GetBytes(bodyBytes, "BetAmount").Int(); got != 3 {
		t.Fatalf("BetAmount = %d, want 3", got)
	}

	// GetBody replays the payload
	replay, err := req.GetBody()
	if err != nil {
		t.Fatalf("GetBody() error = %v", err)
	}
	again, _ := io.ReadAll(replay)
	if string(again) != string(action.Body) {
		t.Fatalf("GetBody() = %q", again)
	}
}

func TestBuildRequestDefaults(t *testing.T) {
	req, err := NewRequestBuilder("").Build(context.Background(), scenario.Action{URL: "http://casino.local:3000/lobby.html"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if req.Method != http.MethodGet {
		t.Errorf("Method = %s, want GET", req.Method)
	}
	if req.ContentLength != 0 {
		t.Errorf("ContentLength = %d, want 0", req.ContentLength)
	}
	for _, h := range []string{"Referer", "Accept"} {
		if v := req.Header.Get(h); v != "" {
			t.Errorf("%s = %q, want unset", h, v)
		}
	}
}

func TestBuildRequestRejectsInvalidInput(t *testing.T) {
	cases := map[string]scenario.Action{
		"missing url":         {Name: "Lobby_Page"},
		"key with newline":    {URL: "http://x/", Headers: http.Header{"X-Bad\nKey": {"v"}}},
		"empty key":           {URL: "http://x/", Headers: http.Header{" ": {"v"}}},
		"value with newline":  {URL: "http://x/", Headers: http.Header{"X-Test": {"a\r\nInjected: 1"}}},
		"referer with return": {URL: "http://x/", Referer: "http://x/\r\n"},
		"bad url":             {URL: "http://[::1"},
	}
	builder := NewRequestBuilder("agent")
	for name, action := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := builder.Build(context.Background(), action); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBuildRequestLongHeaderValue(t *testing.T) {
	long := strings.Repeat("a", 8192)
	action := scenario.Action{URL: "http://x/", Headers: http.Header{"X-Long": {long}}}
	req, err := NewRequestBuilder("").Build(context.Background(), action)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if req.Header.Get("X-Long") != long {
		t.Fatal("long header value was altered")
	}
}

func TestBuildResource(t *testing.T) {
	req, err := NewRequestBuilder("agent").BuildResource(context.Background(), "http://casino.local:3000/css/casino.css", "http://casino.local:3000/lobby.html")
	if err != nil {
		t.Fatalf("BuildResource() error = %v", err)
	}
	if req.Method != http.MethodGet {
		t.Errorf("Method = %s, want GET", req.Method)
	}
	if req.Header.Get("Referer") != "http://casino.local:3000/lobby.html" {
		t.Errorf("Referer = %q", req.Header.Get("Referer"))
	}
	if req.Header.Get("X-Dynatrace-Test") != "" {
		t.Error("resources must not carry the test header")
	}
}

func TestClientTimeoutApplied(t *testing.T) {
	timeout := 50 * time.Millisecond
	client := NewClient(timeout, 12)
	defer client.CloseIdleConnections()

	if client.Timeout != timeout {
		t.Fatalf("expected client timeout %s, got %s", timeout, client.Timeout)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(timeout * 3)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil {
		t.Fatalf("expected timeout error, got nil")
	}

	elapsed := time.Since(start)
	if elapsed < timeout {
		t.Fatalf("request returned too quickly: %s < %s", elapsed, timeout)
	}
	if elapsed > timeout*5 {
		t.Fatalf("request took too long: %s", elapsed)
	}

	if !errors.Is(err, context.DeadlineExceeded) {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			t.Fatalf("expected timeout error, got %v", err)
		}
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if transport.MaxConnsPerHost != 12 {
		t.Fatalf("MaxConnsPerHost = %d, want 12", transport.MaxConnsPerHost)
	}
	if transport.IdleConnTimeout == 0 {
		t.Fatalf("expected transport to set idle connection timeout")
	}
}

func TestClientNegativeLimits(t *testing.T) {
	client := NewClient(-time.Second, -1)
	if client.Timeout != 0 {
		t.Errorf("Timeout = %s, want 0", client.Timeout)
	}
	if tr := client.Transport.(*http.Transport); tr.MaxConnsPerHost != 0 {
		t.Errorf("MaxConnsPerHost = %d, want 0", tr.MaxConnsPerHost)
	}
}
