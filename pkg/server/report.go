package server

import (
	"log/slog"
	"net/http"

	"github.com/raterudder/semsledger/pkg/log"
	"github.com/raterudder/semsledger/pkg/refresh"
	"github.com/raterudder/semsledger/pkg/report"
)

func (s *Server) newReport(res refresh.Result) report.Report {
	return report.Report{
		StationID:   res.StationID,
		GeneratedAt: res.RefreshedAt,
		Ledger:      res.Ledger,
		Samples:     res.Samples,
		Tariff:      s.state.Settings().Tariff,
	}
}

func (s *Server) handleReportXLSX(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, ok := s.latestLedger(w)
	if !ok {
		return
	}
	b, err := report.XLSX(s.newReport(res))
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to render xlsx report", slog.Any("error", err))
		writeJSONError(w, "failed to render report", http.StatusInternalServerError)
		return
	}
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", reportFilename(res, "xlsx"), b)
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, ok := s.latestLedger(w)
	if !ok {
		return
	}
	b, err := report.PDF(s.newReport(res))
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to render pdf report", slog.Any("error", err))
		writeJSONError(w, "failed to render report", http.StatusInternalServerError)
		return
	}
	writeAttachment(w, "application/pdf", reportFilename(res, "pdf"), b)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, b []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := w.Write(b); err != nil {
		panic(http.ErrAbortHandler)
	}
}
