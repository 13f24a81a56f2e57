package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stvsteam/regconsole/internal/middleware"
	"github.com/stvsteam/regconsole/internal/model"
	"github.com/stvsteam/regconsole/internal/registry"
	"github.com/stvsteam/regconsole/internal/security"
)

// StolenServiceInterface is the registry client surface for the stolen
// vehicle board.
type StolenServiceInterface interface {
	ListStolenReports(ctx context.Context, token string) ([]model.StolenReport, *model.APIError)
	ReportStolen(ctx context.Context, token, plateNumber, description string) (*model.StolenReport, *model.APIError)
	ReportSighting(ctx context.Context, plateNumber, location string) (*registry.SightingResult, *model.APIError)
}

// StolenHandler serves the stolen-vehicle board and its report forms.
type StolenHandler struct {
	service   StolenServiceInterface
	sanitizer security.TextSanitizerService
	views     *viewRenderer
	failure   *backendFailure
	logger    *slog.Logger
}

// NewStolenHandler creates a StolenHandler.
func NewStolenHandler(service StolenServiceInterface, sanitizer security.TextSanitizerService, views *viewRenderer, failure *backendFailure, logger *slog.Logger) *StolenHandler {
	return &StolenHandler{
		service:   service,
		sanitizer: sanitizer,
		views:     views,
		failure:   failure,
		logger:    logger,
	}
}

// stolenView is the board view data. The report and sighting form fields are
// retained on a rejected submission.
type stolenView struct {
	pageData
	Reports []model.StolenReport

	ReportPlate       string
	ReportDescription string

	SightingPlate    string
	SightingLocation string
}

// Board renders the stolen-vehicle board.
// GET /stolen-cars
func (h *StolenHandler) Board(w http.ResponseWriter, r *http.Request) {
	view := stolenView{pageData: newPageData(r, "Stolen Vehicle Board")}

	switch {
	case r.URL.Query().Get("reported") == "1":
		view.Flash = "Report filed. The vehicle is now on the board."
	case r.URL.Query().Get("sighting") == "1":
		if r.URL.Query().Get("found") == "1" {
			view.Flash = "Sighting recorded. The vehicle is reported stolen; the owner has been notified."
		} else {
			view.Flash = "Sighting recorded."
		}
	}

	h.renderBoard(w, r, http.StatusOK, view)
}

// SubmitReport files a stolen-vehicle report.
// POST /stolen-cars/report
func (h *StolenHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		view := stolenView{pageData: newPageData(r, "Stolen Vehicle Board")}
		view.Error = "The submitted form could not be read."
		h.renderBoard(w, r, http.StatusBadRequest, view)
		return
	}

	plate := strings.ToUpper(strings.TrimSpace(r.PostFormValue("plate_number")))
	description := r.PostFormValue("description")

	view := stolenView{
		pageData:          newPageData(r, "Stolen Vehicle Board"),
		ReportPlate:       plate,
		ReportDescription: description,
	}

	if plate == "" || description == "" {
		view.Error = "Plate number and description are required."
		h.renderBoard(w, r, http.StatusUnprocessableEntity, view)
		return
	}

	report, apiErr := h.service.ReportStolen(r.Context(), sess.Token, plate, description)
	if apiErr != nil {
		if h.failure.forceLogoutIfRejected(w, r, apiErr) {
			return
		}
		view.Error = h.sanitizer.Sanitize(apiErr.Message)
		h.renderBoard(w, r, statusForAPIError(apiErr), view)
		return
	}

	h.logger.Info("stolen vehicle reported",
		slog.Int("report_id", report.ID),
		slog.String("plate_number", report.PlateNumber),
		slog.String("reported_by", sess.Username),
	)
	http.Redirect(w, r, "/stolen-cars?reported=1", http.StatusSeeOther)
}

// SubmitSighting records where a reported vehicle was last seen.
// POST /stolen-cars/sighting
func (h *StolenHandler) SubmitSighting(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		view := stolenView{pageData: newPageData(r, "Stolen Vehicle Board")}
		view.Error = "The submitted form could not be read."
		h.renderBoard(w, r, http.StatusBadRequest, view)
		return
	}

	plate := strings.ToUpper(strings.TrimSpace(r.PostFormValue("plate_number")))
	location := r.PostFormValue("location")

	view := stolenView{
		pageData:         newPageData(r, "Stolen Vehicle Board"),
		SightingPlate:    plate,
		SightingLocation: location,
	}

	if plate == "" || location == "" {
		view.Error = "Plate number and location are required."
		h.renderBoard(w, r, http.StatusUnprocessableEntity, view)
		return
	}

	result, apiErr := h.service.ReportSighting(r.Context(), plate, location)
	if apiErr != nil {
		view.Error = h.sanitizer.Sanitize(apiErr.Message)
		h.renderBoard(w, r, statusForAPIError(apiErr), view)
		return
	}

	target := "/stolen-cars?sighting=1"
	if result.Found {
		target += "&found=1"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// renderBoard fetches the board and renders it with the given view state.
// Report text is authored by other accounts, so it is sanitized to plain
// text before it reaches the template.
func (h *StolenHandler) renderBoard(w http.ResponseWriter, r *http.Request, status int, view stolenView) {
	sess := middleware.SessionFromContext(r.Context())

	reports, apiErr := h.service.ListStolenReports(r.Context(), sess.Token)
	if apiErr != nil {
		if h.failure.forceLogoutIfRejected(w, r, apiErr) {
			return
		}
		if view.Error == "" {
			view.Error = h.sanitizer.Sanitize(apiErr.Message)
			status = statusForAPIError(apiErr)
		}
		h.views.render(w, status, "stolen", view)
		return
	}

	for i := range reports {
		reports[i].Description = h.sanitizer.Sanitize(reports[i].Description)
		reports[i].LastSeenLocation = h.sanitizer.Sanitize(reports[i].LastSeenLocation)
	}
	view.Reports = reports

	h.views.render(w, status, "stolen", view)
}
