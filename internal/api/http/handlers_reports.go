package apihttp

import (
	"log/slog"
	"net/http"
	"strings"

	"watchsource/internal/domain"
)

type fileReportRequest struct {
	Reason string `json:"reason"`
	Email  string `json:"email"`
}

func (s *Server) handleFileReport(w http.ResponseWriter, r *http.Request, sourceID string) {
	if s.reports == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "report intake is not configured")
		return
	}

	var body fileReportRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	report, err := s.reports.FileReport(r.Context(), sourceID, body.Reason, strings.TrimSpace(body.Email))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.logger.Info("report filed",
		slog.String("sourceId", sourceID),
		slog.String("reportId", report.ID),
		slog.String("clientIP", clientIP(r)),
	)
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) handleListOpenReports(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireOperator(w, r); !ok {
		return
	}
	if s.reports == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "report intake is not configured")
		return
	}

	reports, err := s.reports.ListOpenReports(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if reports == nil {
		reports = []domain.FlaggedReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}
