package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stvsteam/regconsole/internal/model"
)

// PublicServiceInterface is the registry client surface for the public
// verification views. No session is involved.
type PublicServiceInterface interface {
	PublicDriver(ctx context.Context, driverID int) (*model.Driver, *model.APIError)
	VerifyPlate(ctx context.Context, plate string) (*model.Driver, *model.APIError)
}

// PublicHandler serves the landing page and the verification views reached
// by scanning a sticker or typing a plate number. These views never touch
// the session; a failed scan must not log anyone out.
type PublicHandler struct {
	service PublicServiceInterface
	views   *viewRenderer
}

// NewPublicHandler creates a PublicHandler.
func NewPublicHandler(service PublicServiceInterface, views *viewRenderer) *PublicHandler {
	return &PublicHandler{
		service: service,
		views:   views,
	}
}

// landingView is the landing page view data.
type landingView struct {
	pageData
	Home string
}

// verifyDriverView is the sticker verification view data.
type verifyDriverView struct {
	pageData
	Verified bool
	Reason   string
	Driver   *model.Driver
	Car      model.Car
}

// verifyPlateView is the plate lookup view data.
type verifyPlateView struct {
	pageData
	Plate    string
	Searched bool
	Driver   *model.Driver
	Car      model.Car
}

// Landing renders the console entry page.
// GET /
func (h *PublicHandler) Landing(w http.ResponseWriter, r *http.Request) {
	view := landingView{pageData: newPageData(r, "Vehicle Registry Console")}
	if view.Session != nil {
		view.Home = roleHome(view.Session.Role)
	}
	h.views.render(w, http.StatusOK, "landing", view)
}

// VerifyDriver renders the public verification page for a scanned sticker.
// An unknown or malformed ID renders the failed state; a backend outage is
// reported as such so a genuine sticker is not branded a forgery.
// GET /verify-driver/{id}
func (h *PublicHandler) VerifyDriver(w http.ResponseWriter, r *http.Request) {
	view := verifyDriverView{pageData: newPageData(r, "Driver Verification")}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		view.Reason = "This code does not belong to a registered driver."
		h.views.render(w, http.StatusNotFound, "verify_driver", view)
		return
	}

	driver, apiErr := h.service.PublicDriver(r.Context(), id)
	if apiErr != nil {
		if apiErr.Code == model.ErrCodeNotFound {
			view.Reason = "This code does not belong to a registered driver."
			h.views.render(w, http.StatusNotFound, "verify_driver", view)
			return
		}
		view.Reason = "Verification could not be completed. Try again shortly."
		h.views.render(w, http.StatusBadGateway, "verify_driver", view)
		return
	}

	view.Verified = true
	view.Driver = driver
	view.Car = driver.PrimaryCar()
	h.views.render(w, http.StatusOK, "verify_driver", view)
}

// VerifyPlate renders the plate lookup form and, when a plate was submitted,
// its result.
// GET /verify-plate
func (h *PublicHandler) VerifyPlate(w http.ResponseWriter, r *http.Request) {
	plate := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("plate")))

	view := verifyPlateView{
		pageData: newPageData(r, "Plate Verification"),
		Plate:    plate,
	}

	if plate == "" {
		h.views.render(w, http.StatusOK, "verify_plate", view)
		return
	}

	view.Searched = true

	driver, apiErr := h.service.VerifyPlate(r.Context(), plate)
	if apiErr != nil {
		if apiErr.Code == model.ErrCodeNotFound {
			h.views.render(w, http.StatusNotFound, "verify_plate", view)
			return
		}
		view.Error = "The lookup could not be completed. Try again shortly."
		view.Searched = false
		h.views.render(w, http.StatusBadGateway, "verify_plate", view)
		return
	}

	view.Driver = driver
	view.Car = driver.PrimaryCar()
	h.views.render(w, http.StatusOK, "verify_plate", view)
}
