package server

import (
	"net/http"
	"time"

	"github.com/raterudder/semsledger/pkg/refresh"
	"github.com/raterudder/semsledger/pkg/types"
)

type stateResponse struct {
	Ready    bool            `json:"ready"`
	Settings types.Settings  `json:"settings"`
	Result   *refresh.Result `json:"result"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{Settings: s.state.Settings()}
	if res, ok := s.state.Latest(); ok {
		resp.Ready = true
		resp.Result = &res
	}
	writeJSON(w, resp)
}

// handleSnapshot writes null until the first cycle finished. An error
// snapshot is written as is so clients show "no data".
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	res, ok := s.state.Latest()
	if !ok {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, res.Snapshot)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	res, ok := s.state.Latest()
	if !ok || res.Ledger == nil {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, res.Ledger)
}

type seriesResponse struct {
	Date    string                 `json:"date"`
	Samples []types.IntervalSample `json:"samples"`
	Series  *types.CanonicalSeries `json:"series"`
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	res, ok := s.state.Latest()
	if !ok || res.Series == nil {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, seriesResponse{
		Date:    res.Date,
		Samples: res.Samples,
		Series:  res.Series,
	})
}

// latestLedger returns the latest result if it has a ledger, writing a 404
// otherwise.
func (s *Server) latestLedger(w http.ResponseWriter) (refresh.Result, bool) {
	res, ok := s.state.Latest()
	if !ok || res.Ledger == nil {
		writeJSONError(w, "no ledger available yet", http.StatusNotFound)
		return refresh.Result{}, false
	}
	return res, true
}

func reportFilename(res refresh.Result, ext string) string {
	date := res.Date
	if date == "" {
		date = time.Now().Format(time.DateOnly)
	}
	return "ledger-" + date + "." + ext
}
