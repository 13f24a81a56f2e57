package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stvsteam/regconsole/internal/model"
	"github.com/stvsteam/regconsole/internal/registry"
	"github.com/stvsteam/regconsole/internal/security"
)

// --- mocks ---

type mockStolenService struct {
	listFn     func(ctx context.Context, token string) ([]model.StolenReport, *model.APIError)
	reportFn   func(ctx context.Context, token, plateNumber, description string) (*model.StolenReport, *model.APIError)
	sightingFn func(ctx context.Context, plateNumber, location string) (*registry.SightingResult, *model.APIError)
}

func (m *mockStolenService) ListStolenReports(ctx context.Context, token string) ([]model.StolenReport, *model.APIError) {
	if m.listFn != nil {
		return m.listFn(ctx, token)
	}
	return nil, nil
}

func (m *mockStolenService) ReportStolen(ctx context.Context, token, plateNumber, description string) (*model.StolenReport, *model.APIError) {
	if m.reportFn != nil {
		return m.reportFn(ctx, token, plateNumber, description)
	}
	return nil, model.NewNetworkFailureError("not configured")
}

func (m *mockStolenService) ReportSighting(ctx context.Context, plateNumber, location string) (*registry.SightingResult, *model.APIError) {
	if m.sightingFn != nil {
		return m.sightingFn(ctx, plateNumber, location)
	}
	return nil, model.NewNetworkFailureError("not configured")
}

func newTestStolenHandler(t *testing.T, svc StolenServiceInterface, auth AuthServiceInterface, forced *mockForcedLogouts) *StolenHandler {
	t.Helper()
	failure := newBackendFailure(auth, forced, CookieConfig{}, testLogger())
	return NewStolenHandler(svc, security.NewTextSanitizer(), testViews(t), failure, testLogger())
}

func stolenReport() model.StolenReport {
	return model.StolenReport{
		ID:          3,
		PlateNumber: "ABC123",
		Description: "Taken from the mall parking lot",
		Status:      model.ReportStatusReported,
		CreatedAt:   time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC),
	}
}

func postForm(path string, fields map[string]string) *http.Request {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// --- tests ---

func TestBoard_ListsReports(t *testing.T) {
	svc := &mockStolenService{
		listFn: func(ctx context.Context, token string) ([]model.StolenReport, *model.APIError) {
			return []model.StolenReport{stolenReport()}, nil
		},
	}
	h := newTestStolenHandler(t, svc, &mockAuthService{}, &mockForcedLogouts{})

	req := withSession(httptest.NewRequest(http.MethodGet, "/stolen-cars", nil), sessionFor(model.RoleUser))
	w := httptest.NewRecorder()
	h.Board(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "ABC123") || !strings.Contains(body, "mall parking lot") {
		t.Error("the board should list the report")
	}
}

func TestBoard_ReportTextIsSanitized(t *testing.T) {
	svc := &mockStolenService{
		listFn: func(ctx context.Context, token string) ([]model.StolenReport, *model.APIError) {
			report := stolenReport()
			report.Description = `<script>alert("x")</script>last seen downtown`
			return []model.StolenReport{report}, nil
		},
	}
	h := newTestStolenHandler(t, svc, &mockAuthService{}, &mockForcedLogouts{})

	req := withSession(httptest.NewRequest(http.MethodGet, "/stolen-cars", nil), sessionFor(model.RoleUser))
	w := httptest.NewRecorder()
	h.Board(w, req)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("markup in report text must be stripped")
	}
	if !strings.Contains(body, "last seen downtown") {
		t.Error("the plain text should survive sanitization")
	}
}

func TestBoard_TokenRejectionForcesLogout(t *testing.T) {
	svc := &mockStolenService{
		listFn: func(ctx context.Context, token string) ([]model.StolenReport, *model.APIError) {
			return nil, model.NewAuthRejectedError()
		},
	}
	forced := &mockForcedLogouts{}
	h := newTestStolenHandler(t, svc, &mockAuthService{}, forced)

	req := withSession(httptest.NewRequest(http.MethodGet, "/stolen-cars", nil), sessionFor(model.RoleUser))
	w := httptest.NewRecorder()
	h.Board(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
	if forced.count != 1 {
		t.Errorf("forced logout recordings = %d, want 1", forced.count)
	}
}

func TestSubmitReport_SuccessRedirects(t *testing.T) {
	svc := &mockStolenService{
		reportFn: func(ctx context.Context, token, plateNumber, description string) (*model.StolenReport, *model.APIError) {
			if plateNumber != "ABC123" {
				t.Errorf("plate = %q, want normalized ABC123", plateNumber)
			}
			report := stolenReport()
			return &report, nil
		},
	}
	h := newTestStolenHandler(t, svc, &mockAuthService{}, &mockForcedLogouts{})

	req := withSession(postForm("/stolen-cars/report", map[string]string{
		"plate_number": " abc123 ",
		"description":  "Taken overnight",
	}), sessionFor(model.RoleUser))
	w := httptest.NewRecorder()
	h.SubmitReport(w, req)

	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/stolen-cars?reported=1" {
		t.Errorf("status = %d Location = %q", w.Code, w.Header().Get("Location"))
	}
}

func TestSubmitReport_MissingFieldsRejectedLocally(t *testing.T) {
	called := false
	svc := &mockStolenService{
		reportFn: func(ctx context.Context, token, plateNumber, description string) (*model.StolenReport, *model.APIError) {
			called = true
			return nil, nil
		},
	}
	h := newTestStolenHandler(t, svc, &mockAuthService{}, &mockForcedLogouts{})

	req := withSession(postForm("/stolen-cars/report", map[string]string{
		"plate_number": "ABC123",
	}), sessionFor(model.RoleUser))
	w := httptest.NewRecorder()
	h.SubmitReport(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	if called {
		t.Error("incomplete reports must not reach the backend")
	}
}

func TestSubmitSighting_FoundRedirectsWithFlag(t *testing.T) {
	svc := &mockStolenService{
		sightingFn: func(ctx context.Context, plateNumber, location string) (*registry.SightingResult, *model.APIError) {
			if location != "Main St" {
				t.Errorf("location = %q", location)
			}
			return &registry.SightingResult{Message: "sighting recorded", Found: true}, nil
		},
	}
	h := newTestStolenHandler(t, svc, &mockAuthService{}, &mockForcedLogouts{})

	req := withSession(postForm("/stolen-cars/sighting", map[string]string{
		"plate_number": "ABC123",
		"location":     "Main St",
	}), sessionFor(model.RoleUser))
	w := httptest.NewRecorder()
	h.SubmitSighting(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/stolen-cars?sighting=1&found=1" {
		t.Errorf("Location = %q", loc)
	}
}

func TestSubmitSighting_UnknownPlateShowsDetail(t *testing.T) {
	svc := &mockStolenService{
		sightingFn: func(ctx context.Context, plateNumber, location string) (*registry.SightingResult, *model.APIError) {
			return nil, model.NewValidationFailureError("Vehicle is not reported stolen")
		},
	}
	h := newTestStolenHandler(t, svc, &mockAuthService{}, &mockForcedLogouts{})

	req := withSession(postForm("/stolen-cars/sighting", map[string]string{
		"plate_number": "ZZZ999",
		"location":     "Main St",
	}), sessionFor(model.RoleUser))
	w := httptest.NewRecorder()
	h.SubmitSighting(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not reported stolen") {
		t.Error("the backend detail should be rendered")
	}
}
