// Package registry implements the client for the vehicle/driver registry
// backend. The console never implements registry business logic itself; it
// consumes the backend's HTTP contract and maps failures onto the console's
// error taxonomy.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stvsteam/regconsole/internal/model"
)

// Recorder observes backend calls for metrics. Implemented by the metrics
// collector; a nil-safe no-op is used in tests.
type Recorder interface {
	RecordBackendRequest(operation, outcome string, duration time.Duration)
}

// Client calls the registry backend. All methods return *model.APIError on
// failure so callers can branch on the taxonomy:
//
//   - transport errors, timeouts and 5xx map to NETWORK_FAILURE
//   - 401/403 on a token-bearing request maps to AUTH_REJECTED
//   - other 4xx map to VALIDATION_FAILURE carrying the backend detail
//   - public lookup misses map to NOT_FOUND
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	recorder   Recorder
}

// NewClient creates a Client for the backend at baseURL. The HTTP client
// must carry a bounded timeout; expiry is reported as NETWORK_FAILURE.
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger, recorder Recorder) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		recorder:   recorder,
	}
}

// TokenResponse is the body of a successful credential exchange.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
	Username    string `json:"username"`
}

// detailBody is the backend's error body shape.
type detailBody struct {
	Detail string `json:"detail"`
}

// Login exchanges credentials at the token endpoint.
// POST /token, form-encoded. Any non-2xx answer is an INVALID_CREDENTIALS
// condition carrying the backend's detail message when present.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (*TokenResponse, *model.APIError) {
	form := url.Values{}
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, model.NewNetworkFailureError(err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record("login", "network_error", start)
		c.logger.Error("token endpoint unreachable", slog.String("error", err.Error()))
		return nil, model.NewNetworkFailureError(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.record("login", "network_error", start)
		return nil, model.NewNetworkFailureError(err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.record("login", "rejected", start)
		return nil, model.NewInvalidCredentialsError(decodeDetail(body))
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		c.record("login", "network_error", start)
		return nil, model.NewNetworkFailureError("malformed token response")
	}
	if token.AccessToken == "" {
		c.record("login", "network_error", start)
		return nil, model.NewNetworkFailureError("token response missing access token")
	}

	c.record("login", "ok", start)
	return &token, nil
}

// RegisterUser creates a backend account.
// POST /register, JSON body.
func (c *Client) RegisterUser(ctx context.Context, username, password string, role model.Role) *model.APIError {
	payload := map[string]string{
		"username": username,
		"password": password,
		"role":     string(role),
	}
	if _, apiErr := c.doJSON(ctx, "register", http.MethodPost, "/register", "", payload); apiErr != nil {
		return apiErr
	}
	return nil
}

// ListDrivers returns all registered drivers.
// GET /drivers/, bearer token required.
func (c *Client) ListDrivers(ctx context.Context, token string) ([]model.Driver, *model.APIError) {
	body, apiErr := c.doJSON(ctx, "list_drivers", http.MethodGet, "/drivers/", token, nil)
	if apiErr != nil {
		return nil, apiErr
	}

	var drivers []model.Driver
	if err := json.Unmarshal(body, &drivers); err != nil {
		return nil, model.NewNetworkFailureError("malformed driver list")
	}
	return drivers, nil
}

// CreateDriver registers a driver with their primary vehicle.
// POST /drivers/, multipart form, bearer token required. The photo part is
// named "file", matching the backend's upload contract.
func (c *Client) CreateDriver(ctx context.Context, token string, form *model.NewDriverForm) (*model.Driver, *model.APIError) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"name":           form.Name,
		"national_id":    form.NationalID,
		"license_number": form.LicenseNumber,
		"plate_number":   form.PlateNumber,
		"car_model":      form.CarModel,
		"car_color":      form.CarColor,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, model.NewNetworkFailureError(err.Error())
		}
	}
	if len(form.Photo) > 0 {
		part, err := mw.CreateFormFile("file", form.PhotoName)
		if err != nil {
			return nil, model.NewNetworkFailureError(err.Error())
		}
		if _, err := part.Write(form.Photo); err != nil {
			return nil, model.NewNetworkFailureError(err.Error())
		}
	}
	if err := mw.Close(); err != nil {
		return nil, model.NewNetworkFailureError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/drivers/", &buf)
	if err != nil {
		return nil, model.NewNetworkFailureError(err.Error())
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	body, apiErr := c.execute("create_driver", req, true)
	if apiErr != nil {
		return nil, apiErr
	}

	var driver model.Driver
	if err := json.Unmarshal(body, &driver); err != nil {
		return nil, model.NewNetworkFailureError("malformed driver record")
	}
	return &driver, nil
}

// MyDriverProfile returns the profile bound to the logged-in driver account.
// GET /my-driver-profile, bearer token required.
func (c *Client) MyDriverProfile(ctx context.Context, token string) (*model.Driver, *model.APIError) {
	body, apiErr := c.doJSON(ctx, "my_profile", http.MethodGet, "/my-driver-profile", token, nil)
	if apiErr != nil {
		return nil, apiErr
	}

	var driver model.Driver
	if err := json.Unmarshal(body, &driver); err != nil {
		return nil, model.NewNetworkFailureError("malformed driver record")
	}
	return &driver, nil
}

// PublicDriver returns the sanitized public record for a scanned sticker.
// GET /public/drivers/{id}, no auth. A 404 is a NOT_FOUND condition, not an
// auth or network failure.
func (c *Client) PublicDriver(ctx context.Context, driverID int) (*model.Driver, *model.APIError) {
	path := "/public/drivers/" + strconv.Itoa(driverID)
	body, apiErr := c.doJSON(ctx, "public_driver", http.MethodGet, path, "", nil)
	if apiErr != nil {
		if apiErr.Code == model.ErrCodeValidationFailure {
			return nil, model.NewNotFoundError("Driver")
		}
		return nil, apiErr
	}

	var driver model.Driver
	if err := json.Unmarshal(body, &driver); err != nil {
		return nil, model.NewNetworkFailureError("malformed driver record")
	}
	return &driver, nil
}

// VerifyPlate looks up the owning driver of a plate number.
// GET /verify/{plate}, no auth.
func (c *Client) VerifyPlate(ctx context.Context, plate string) (*model.Driver, *model.APIError) {
	path := "/verify/" + url.PathEscape(plate)
	body, apiErr := c.doJSON(ctx, "verify_plate", http.MethodGet, path, "", nil)
	if apiErr != nil {
		if apiErr.Code == model.ErrCodeValidationFailure {
			return nil, model.NewNotFoundError("Vehicle")
		}
		return nil, apiErr
	}

	var driver model.Driver
	if err := json.Unmarshal(body, &driver); err != nil {
		return nil, model.NewNetworkFailureError("malformed driver record")
	}
	return &driver, nil
}

// ListStolenReports returns the stolen-vehicle board.
// GET /stolen-cars/, bearer token required.
func (c *Client) ListStolenReports(ctx context.Context, token string) ([]model.StolenReport, *model.APIError) {
	body, apiErr := c.doJSON(ctx, "list_stolen", http.MethodGet, "/stolen-cars/", token, nil)
	if apiErr != nil {
		return nil, apiErr
	}

	var reports []model.StolenReport
	if err := json.Unmarshal(body, &reports); err != nil {
		return nil, model.NewNetworkFailureError("malformed report list")
	}
	return reports, nil
}

// ReportStolen files a stolen-vehicle report.
// POST /stolen-cars/, JSON, bearer token required.
func (c *Client) ReportStolen(ctx context.Context, token, plateNumber, description string) (*model.StolenReport, *model.APIError) {
	payload := map[string]string{
		"plate_number": plateNumber,
		"description":  description,
	}
	body, apiErr := c.doJSON(ctx, "report_stolen", http.MethodPost, "/stolen-cars/", token, payload)
	if apiErr != nil {
		return nil, apiErr
	}

	var report model.StolenReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, model.NewNetworkFailureError("malformed report record")
	}
	return &report, nil
}

// SightingResult is the backend's answer to a sighting submission.
type SightingResult struct {
	Message string `json:"message"`
	Found   bool   `json:"found"`
}

// ReportSighting updates the last seen location of a reported vehicle.
// POST /report-sighting/, no auth (the backend accepts anonymous sightings).
func (c *Client) ReportSighting(ctx context.Context, plateNumber, location string) (*SightingResult, *model.APIError) {
	q := url.Values{}
	q.Set("plate_number", plateNumber)
	q.Set("location", location)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/report-sighting/?"+q.Encode(), nil)
	if err != nil {
		return nil, model.NewNetworkFailureError(err.Error())
	}

	body, apiErr := c.execute("report_sighting", req, false)
	if apiErr != nil {
		return nil, apiErr
	}

	var result SightingResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, model.NewNetworkFailureError("malformed sighting response")
	}
	return &result, nil
}

// Ping checks backend availability via the root endpoint.
// Used by the availability probe; any non-2xx counts as down.
func (c *Client) Ping(ctx context.Context) *model.APIError {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return model.NewNetworkFailureError(err.Error())
	}
	_, apiErr := c.execute("ping", req, false)
	return apiErr
}

// doJSON builds and executes a request with an optional JSON payload and
// optional bearer token, returning the raw response body.
func (c *Client) doJSON(ctx context.Context, operation, method, path, token string, payload any) ([]byte, *model.APIError) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, model.NewNetworkFailureError(err.Error())
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, model.NewNetworkFailureError(err.Error())
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.execute(operation, req, token != "")
}

// execute runs the request and maps the outcome onto the error taxonomy.
// credentialed marks requests carrying the session token: a 401/403 answer
// to those means the token itself was refused, which the caller must treat
// as a forced logout.
func (c *Client) execute(operation string, req *http.Request, credentialed bool) ([]byte, *model.APIError) {
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(operation, "network_error", start)
		c.logger.Error("backend request failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return nil, model.NewNetworkFailureError(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.record(operation, "network_error", start)
		return nil, model.NewNetworkFailureError(err.Error())
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		c.record(operation, "ok", start)
		return body, nil

	case credentialed && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden):
		c.record(operation, "auth_rejected", start)
		c.logger.Warn("backend rejected session token",
			slog.String("operation", operation),
			slog.Int("status", resp.StatusCode),
		)
		return nil, model.NewAuthRejectedError()

	case resp.StatusCode >= 400 && resp.StatusCode <= 499:
		c.record(operation, "rejected", start)
		return nil, model.NewValidationFailureError(decodeDetail(body))

	default:
		c.record(operation, "server_error", start)
		c.logger.Error("backend returned server error",
			slog.String("operation", operation),
			slog.Int("status", resp.StatusCode),
		)
		return nil, model.NewNetworkFailureError(fmt.Sprintf("backend returned status %d", resp.StatusCode))
	}
}

// record reports the call to the metrics recorder, if any.
func (c *Client) record(operation, outcome string, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordBackendRequest(operation, outcome, time.Since(start))
	}
}

// decodeDetail extracts the backend's {"detail": ...} message, if present.
func decodeDetail(body []byte) string {
	var d detailBody
	if err := json.Unmarshal(body, &d); err != nil {
		return ""
	}
	return d.Detail
}
