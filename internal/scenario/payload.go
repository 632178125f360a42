package scenario

import (
	"encoding/json"

	"github.com/torosent/vegasload/internal/correlation"
	"github.com/torosent/vegasload/internal/params"
)

const (
	spinGame   = "Vegas Slots Machine"
	spinAction = "Spin"
	spinDevice = "LoadRunner"
	spinStatus = "Success"
	spinCode   = 200
)

// ResultIcons are the reel images every spin reports and fetches.
var ResultIcons = [3]string{"dynatrace.png", "appsec.png", "dashboards.png"}

// SpinRequest is the JSON body of POST /api/slots/spin.
type SpinRequest struct {
	Game          string   `json:"Game"`
	BetAmount     int      `json:"BetAmount"`
	Username      string   `json:"Username"`
	WinFlag       int      `json:"WinFlag"`
	WinningAmount int      `json:"WinningAmount"`
	LossAmount    int      `json:"LossAmount"`
	Balance       int      `json:"Balance"`
	Timestamp     string   `json:"Timestamp"`
	Action        string   `json:"Action"`
	Device        string   `json:"Device"`
	CorrelationID string   `json:"CorrelationId"`
	ResultIcons   []string `json:"ResultIcons"`
	Status        string   `json:"Status"`
	ErrorType     *string  `json:"ErrorType"`
	ErrorMessage  *string  `json:"ErrorMessage"`
	StatusCode    int      `json:"StatusCode"`
}

// NewSpinRequest assembles the spin body from the session, the run's bet
// data and the spin's correlation record.
func NewSpinRequest(s params.Session, it params.Iteration, rec correlation.Record) SpinRequest {
	return SpinRequest{
		Game:          spinGame,
		BetAmount:     it.BetAmount,
		Username:      s.Username,
		WinFlag:       it.WinFlag(),
		WinningAmount: it.WinAmount,
		LossAmount:    it.LossAmount,
		Balance:       it.Balance,
		Timestamp:     rec.Timestamp,
		Action:        spinAction,
		Device:        spinDevice,
		CorrelationID: rec.ID,
		ResultIcons:   append([]string(nil), ResultIcons[:]...),
		Status:        spinStatus,
		StatusCode:    spinCode,
	}
}

// Marshal encodes the request body.
func (r SpinRequest) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
