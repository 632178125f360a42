// Package casino is a stand-in for the Vegas casino web app. It serves the
// pages, reel images and spin API the slots scenario drives, and counts what
// it received so tests and local runs can check the traffic.
package casino

import (
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/torosent/vegasload/internal/traceheader"
)

const (
	defaultBet   = 10
	maxBodyBytes = 64 << 10
)

var reelSymbols = []string{
	"dynatrace", "smartscape", "application", "database", "server", "cloud", "shield",
	"chart", "network", "services", "host", "process", "memory", "cpu",
}

// Counts summarizes the traffic a Handler has served.
type Counts struct {
	Pages     int64
	Resources int64
	Spins     int64
	Rejected  int64 // spin bodies that failed validation
	Tagged    int64 // requests carrying the load-test header
}

// Handler serves the casino endpoints.
type Handler struct {
	mux    *http.ServeMux
	logger *zap.Logger

	pages, resources, spins, rejected, tagged atomic.Int64
}

// NewHandler builds the casino routes. A nil logger discards output.
func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{mux: http.NewServeMux(), logger: logger}
	h.mux.HandleFunc("GET /lobby.html", h.page("Lobby"))
	h.mux.HandleFunc("GET /vegas-slots.html", h.page("Vegas Slots"))
	h.mux.HandleFunc("GET /slot-icons/{icon}", h.icon)
	h.mux.HandleFunc("POST /api/slots/spin", h.spin)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(traceheader.Name) != "" {
		h.tagged.Add(1)
	}
	h.mux.ServeHTTP(w, r)
}

// Counts returns a snapshot of the traffic served so far.
func (h *Handler) Counts() Counts {
	return Counts{
		Pages:     h.pages.Load(),
		Resources: h.resources.Load(),
		Spins:     h.spins.Load(),
		Rejected:  h.rejected.Load(),
		Tagged:    h.tagged.Load(),
	}
}

func (h *Handler) page(title string) http.HandlerFunc {
	body := "<!DOCTYPE html><html><head><title>" + title + "</title></head><body><h1>" + title + "</h1></body></html>"
	return func(w http.ResponseWriter, r *http.Request) {
		h.pages.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

func (h *Handler) icon(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("icon")
	if !strings.HasSuffix(name, ".png") {
		http.NotFound(w, r)
		return
	}
	h.resources.Add(1)
	w.Header().Set("Content-Type", "image/png")
	// PNG signature only.
	_, _ = w.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
}

type spinResult struct {
	Result     []string `json:"result"`
	Win        bool     `json:"win"`
	WinAmount  int64    `json:"winAmount"`
	BetAmount  int64    `json:"betAmount"`
	Multiplier int      `json:"multiplier"`
	Timestamp  string   `json:"timestamp"`
}

func (h *Handler) spin(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil || !gjson.ValidBytes(body) {
		h.reject(w, "spin body is not valid JSON")
		return
	}
	if gjson.GetBytes(body, "Username").String() == "" {
		h.reject(w, "Username is required")
		return
	}
	bet := gjson.GetBytes(body, "BetAmount").Int()
	if bet < 0 {
		h.reject(w, "BetAmount must not be negative")
		return
	}
	if bet == 0 {
		bet = defaultBet
	}
	h.spins.Add(1)

	res := spinResult{BetAmount: bet, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	counts := make(map[string]int, 3)
	for i := 0; i < 3; i++ {
		sym := reelSymbols[rand.IntN(len(reelSymbols))]
		res.Result = append(res.Result, sym)
		counts[sym]++
	}
	for _, n := range counts {
		if n > res.Multiplier && n >= 2 {
			res.Multiplier = n
		}
	}
	if res.Multiplier > 0 {
		res.Win = true
		res.WinAmount = bet * int64(res.Multiplier)
	}

	h.logger.Debug("spin",
		zap.String("username", gjson.GetBytes(body, "Username").String()),
		zap.String("correlation_id", gjson.GetBytes(body, "CorrelationId").String()),
		zap.Int64("bet", bet),
		zap.Bool("win", res.Win),
	)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) reject(w http.ResponseWriter, msg string) {
	h.rejected.Add(1)
	h.logger.Warn("spin rejected", zap.String("reason", msg))
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
