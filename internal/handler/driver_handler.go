package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stvsteam/regconsole/internal/middleware"
	"github.com/stvsteam/regconsole/internal/model"
	"github.com/stvsteam/regconsole/internal/security"
)

// maxPhotoBytes caps driver photo uploads and proxied photo responses.
const maxPhotoBytes = 5 << 20

// DriverServiceInterface is the registry client surface for driver
// management.
type DriverServiceInterface interface {
	ListDrivers(ctx context.Context, token string) ([]model.Driver, *model.APIError)
	CreateDriver(ctx context.Context, token string, form *model.NewDriverForm) (*model.Driver, *model.APIError)
	MyDriverProfile(ctx context.Context, token string) (*model.Driver, *model.APIError)
}

// StickerGeneratorInterface produces sticker images for driver records.
type StickerGeneratorInterface interface {
	StickerPNG(driverID int) ([]byte, error)
}

// DriverHandler serves the admin dashboard, driver registration, sticker
// downloads, the photo proxy and the driver's own profile view.
type DriverHandler struct {
	service    DriverServiceInterface
	sticker    StickerGeneratorInterface
	photoGuard security.PhotoClientService
	photoHTTP  *http.Client
	sanitizer  security.TextSanitizerService
	views      *viewRenderer
	failure    *backendFailure
	logger     *slog.Logger
}

// NewDriverHandler creates a DriverHandler. photoHTTP must be the hardened
// client from the photo guard so proxied fetches cannot reach internal
// networks.
func NewDriverHandler(service DriverServiceInterface, sticker StickerGeneratorInterface, photoGuard security.PhotoClientService, photoHTTP *http.Client, sanitizer security.TextSanitizerService, views *viewRenderer, failure *backendFailure, logger *slog.Logger) *DriverHandler {
	return &DriverHandler{
		service:    service,
		sticker:    sticker,
		photoGuard: photoGuard,
		photoHTTP:  photoHTTP,
		sanitizer:  sanitizer,
		views:      views,
		failure:    failure,
		logger:     logger,
	}
}

// dashboardView is the admin dashboard view data.
type dashboardView struct {
	pageData
	Drivers []model.Driver
	Form    model.NewDriverForm
}

// profileView is the driver profile view data.
type profileView struct {
	pageData
	Driver   *model.Driver
	NoRecord bool
}

// Dashboard renders the driver registry table and the registration form.
// GET /dashboard
func (h *DriverHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	view := dashboardView{pageData: newPageData(r, "Driver Registry")}
	if r.URL.Query().Get("created") == "1" {
		view.Flash = "Driver registered."
	}

	drivers, apiErr := h.service.ListDrivers(r.Context(), sess.Token)
	if apiErr != nil {
		if h.failure.forceLogoutIfRejected(w, r, apiErr) {
			return
		}
		view.Error = h.sanitizer.Sanitize(apiErr.Message)
		h.views.render(w, statusForAPIError(apiErr), "dashboard", view)
		return
	}

	view.Drivers = drivers
	h.views.render(w, http.StatusOK, "dashboard", view)
}

// CreateDriver registers a driver with their primary vehicle. A rejected
// submission re-renders the dashboard with the fields retained so the
// operator corrects in place.
// POST /drivers
func (h *DriverHandler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		h.renderDashboard(w, r, sess.Token, http.StatusBadRequest, model.NewDriverForm{},
			"The submitted form could not be read. The photo may exceed the 5 MB limit.")
		return
	}

	form := model.NewDriverForm{
		Name:          r.PostFormValue("name"),
		NationalID:    r.PostFormValue("national_id"),
		LicenseNumber: r.PostFormValue("license_number"),
		PlateNumber:   strings.ToUpper(strings.TrimSpace(r.PostFormValue("plate_number"))),
		CarModel:      r.PostFormValue("car_model"),
		CarColor:      r.PostFormValue("car_color"),
	}

	if file, header, err := r.FormFile("photo"); err == nil {
		defer file.Close()
		photo, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
		if err != nil || len(photo) > maxPhotoBytes {
			h.renderDashboard(w, r, sess.Token, http.StatusUnprocessableEntity, form,
				"The photo could not be read or exceeds the 5 MB limit.")
			return
		}
		form.Photo = photo
		form.PhotoName = header.Filename
	}

	if form.Name == "" || form.NationalID == "" || form.LicenseNumber == "" ||
		form.PlateNumber == "" || form.CarModel == "" || form.CarColor == "" {
		h.renderDashboard(w, r, sess.Token, http.StatusUnprocessableEntity, form,
			"All fields except the photo are required.")
		return
	}

	driver, apiErr := h.service.CreateDriver(r.Context(), sess.Token, &form)
	if apiErr != nil {
		if h.failure.forceLogoutIfRejected(w, r, apiErr) {
			return
		}
		h.renderDashboard(w, r, sess.Token, statusForAPIError(apiErr), form,
			h.sanitizer.Sanitize(apiErr.Message))
		return
	}

	h.logger.Info("driver registered",
		slog.Int("driver_id", driver.ID),
		slog.String("registered_by", sess.Username),
	)
	http.Redirect(w, r, "/dashboard?created=1", http.StatusSeeOther)
}

// renderDashboard re-renders the dashboard with an error and the submitted
// form retained. The driver list is refetched best-effort; a second failure
// leaves the table empty rather than masking the original error.
func (h *DriverHandler) renderDashboard(w http.ResponseWriter, r *http.Request, token string, status int, form model.NewDriverForm, errMsg string) {
	view := dashboardView{
		pageData: newPageData(r, "Driver Registry"),
		Form:     form,
	}
	view.Error = errMsg

	if drivers, apiErr := h.service.ListDrivers(r.Context(), token); apiErr == nil {
		view.Drivers = drivers
	}

	h.views.render(w, status, "dashboard", view)
}

// StickerPNG serves the QR sticker for a driver record.
// GET /drivers/{id}/sticker.png
func (h *DriverHandler) StickerPNG(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}

	png, err := h.sticker.StickerPNG(id)
	if err != nil {
		h.logger.Error("sticker generation failed",
			slog.Int("driver_id", id),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(png)
}

// PhotoProxy streams a driver photo from its backend URL. The URL is
// validated statically and the fetch goes through the hardened client, so a
// poisoned photo URL cannot reach internal networks.
// GET /drivers/photo?src=
func (h *DriverHandler) PhotoProxy(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	if src == "" {
		http.Error(w, "missing src parameter", http.StatusBadRequest)
		return
	}

	if err := h.photoGuard.ValidateURL(src); err != nil {
		h.logger.Warn("photo URL rejected",
			slog.String("src", src),
			slog.String("error", err.Error()),
		)
		http.Error(w, "photo URL rejected", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, src, nil)
	if err != nil {
		http.Error(w, "photo URL rejected", http.StatusBadRequest)
		return
	}

	resp, err := h.photoHTTP.Do(req)
	if err != nil {
		h.logger.Warn("photo fetch failed",
			slog.String("src", src),
			slog.String("error", err.Error()),
		)
		http.Error(w, "photo could not be fetched", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(contentType, "image/") {
		http.Error(w, "photo could not be fetched", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	io.Copy(w, io.LimitReader(resp.Body, maxPhotoBytes))
}

// MyProfile renders the profile bound to the logged-in driver account.
// GET /my-profile
func (h *DriverHandler) MyProfile(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	view := profileView{pageData: newPageData(r, "My Driver Profile")}

	driver, apiErr := h.service.MyDriverProfile(r.Context(), sess.Token)
	if apiErr != nil {
		if h.failure.forceLogoutIfRejected(w, r, apiErr) {
			return
		}
		if apiErr.Code == model.ErrCodeNotFound || apiErr.Code == model.ErrCodeValidationFailure {
			view.NoRecord = true
			h.views.render(w, http.StatusOK, "profile", view)
			return
		}
		view.Error = h.sanitizer.Sanitize(apiErr.Message)
		h.views.render(w, statusForAPIError(apiErr), "profile", view)
		return
	}

	view.Driver = driver
	h.views.render(w, http.StatusOK, "profile", view)
}
