package casino

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"
)

func TestPagesAndIcons(t *testing.T) {
	h := NewHandler(zaptest.NewLogger(t))

	for _, path := range []string{"/lobby.html", "/vegas-slots.html"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
			t.Errorf("GET %s = %d %s", path, rec.Code, rec.Header().Get("Content-Type"))
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slot-icons/dynatrace.png", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("icon = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slot-icons/readme.txt", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("non-png icon = %d, want 404", rec.Code)
	}

	c := h.Counts()
	if c.Pages != 2 || c.Resources != 1 {
		t.Errorf("Counts() = %+v", c)
	}
}

func TestSpin(t *testing.T) {
	h := NewHandler(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/slots/spin",
		strings.NewReader(`{"Game":"Vegas Slots","BetAmount":7,"Username":"LoadTest_User_1","CorrelationId":"spin_1"}`))
	req.Header.Set("x-dynatrace-test", "TSN=Slot_Spin;VU=1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("spin status = %d: %s", rec.Code, rec.Body)
	}
	body := rec.Body.Bytes()
	if got := gjson.GetBytes(body, "betAmount").Int(); got != 7 {
		t.Errorf("betAmount = %d, want 7", got)
	}
	if n := len(gjson.GetBytes(body, "result").Array()); n != 3 {
		t.Errorf("result has %d symbols, want 3", n)
	}
	win := gjson.GetBytes(body, "win").Bool()
	mult := gjson.GetBytes(body, "multiplier").Int()
	if win != (mult >= 2) {
		t.Errorf("win = %v with multiplier %d", win, mult)
	}
	if got := gjson.GetBytes(body, "winAmount").Int(); got != 7*mult {
		t.Errorf("winAmount = %d, want %d", got, 7*mult)
	}

	if c := h.Counts(); c.Spins != 1 || c.Tagged != 1 || c.Rejected != 0 {
		t.Errorf("Counts() = %+v", c)
	}
}

func TestSpinDefaultsBet(t *testing.T) {
	h := NewHandler(nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/slots/spin", strings.NewReader(`{"Username":"u"}`)))
	if got := gjson.GetBytes(rec.Body.Bytes(), "betAmount").Int(); got != defaultBet {
		t.Errorf("betAmount = %d, want %d", got, defaultBet)
	}
}

func TestSpinRejectsBadBodies(t *testing.T) {
	tests := map[string]string{
		"not json":       `{"BetAmount":`,
		"no username":    `{"BetAmount":5}`,
		"negative bet":   `{"BetAmount":-1,"Username":"u"}`,
	}
	h := NewHandler(zaptest.NewLogger(t))
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/slots/spin", strings.NewReader(body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if gjson.GetBytes(rec.Body.Bytes(), "error").String() == "" {
				t.Errorf("missing error message: %s", rec.Body)
			}
		})
	}
	if c := h.Counts(); c.Rejected != int64(len(tests)) || c.Spins != 0 {
		t.Errorf("Counts() = %+v", c)
	}
}

func TestSpinRequiresPost(t *testing.T) {
	h := NewHandler(nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/slots/spin", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET spin = %d, want 405", rec.Code)
	}
}
