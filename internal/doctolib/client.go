package doctolib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dosehunt/dosehunt/pkg/logging"
)

const (
	defaultBaseURL = "https://www.doctolib.fr"
	defaultTimeout = 15 * time.Second

	// The service rejects requests that do not look like a browser.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/89.0.4389.114 Safari/537.36"
)

// Client is an authenticated HTTP client for the Doctolib booking service.
// The cookie session established by Login is reused for every later call.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
	loggedIn   bool
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. The client's Jar is replaced
// with a fresh cookie jar if it has none.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a Doctolib client with a fresh cookie session.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		jar, _ := cookiejar.New(nil)
		c.httpClient.Jar = jar
	}
	return c
}

// LoggedIn reports whether Login has succeeded on this session.
func (c *Client) LoggedIn() bool {
	return c.loggedIn
}

// Login establishes the cookie session. It first opens the login page so
// the server can seed its session cookies, then posts the credentials.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if _, err := c.get(ctx, "/sessions/new", nil); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	body := map[string]any{
		"kind":              "patient",
		"username":          username,
		"password":          password,
		"remember":          true,
		"remember_username": true,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/login.json", body, nil); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	c.loggedIn = true
	c.logger.Info("logged in", "username", username)
	return nil
}

// GetBookingMeta fetches the booking metadata of one center.
func (c *Client) GetBookingMeta(ctx context.Context, centerSlug string) (*BookingMeta, error) {
	path := "/booking/" + url.PathEscape(centerSlug) + ".json"

	var wrapped struct {
		Data struct {
			VisitMotives []Motive `json:"visit_motives"`
			Agendas      []Agenda `json:"agendas"`
			Places       []Place  `json:"places"`
			Profile      struct {
				ID int `json:"id"`
			} `json:"profile"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &wrapped); err != nil {
		return nil, fmt.Errorf("get booking meta: %w", err)
	}

	return &BookingMeta{
		Motives:   wrapped.Data.VisitMotives,
		Agendas:   wrapped.Data.Agendas,
		Places:    wrapped.Data.Places,
		ProfileID: wrapped.Data.Profile.ID,
	}, nil
}

// GetAvailabilities runs one availability query. When q.FirstSlot is set
// the second-dose endpoint is used and results are linked to that slot.
func (c *Client) GetAvailabilities(ctx context.Context, q AvailabilityQuery) (*Availabilities, error) {
	params := url.Values{}
	params.Set("start_date", q.StartDate)
	params.Set("visit_motive_ids", strconv.Itoa(q.MotiveID))
	params.Set("agenda_ids", joinIDs(q.AgendaIDs))
	params.Set("insurance_sector", "public")
	params.Set("practice_ids", strconv.Itoa(q.PracticeID))
	limit := q.Limit
	if limit == 0 {
		limit = 3
	}
	params.Set("limit", strconv.Itoa(limit))

	path := "/availabilities.json"
	if q.FirstSlot != "" {
		path = "/second_shot_availabilities.json"
		params.Set("first_slot", q.FirstSlot)
	} else {
		params.Set("destroy_temporary", "true")
	}

	var result Availabilities
	if err := c.doJSON(ctx, http.MethodGet, path+"?"+params.Encode(), nil, &result); err != nil {
		return nil, fmt.Errorf("get availabilities: %w", err)
	}
	return &result, nil
}

// CreateAppointment creates a provisional appointment, or re-submits it
// with the second slot attached when req.SecondSlot is set. A remote
// rejection is returned in AppointmentResponse.Error, not as a Go error.
func (c *Client) CreateAppointment(ctx context.Context, req AppointmentRequest) (*AppointmentResponse, error) {
	payload := map[string]any{
		"agenda_ids": joinIDs(req.AgendaIDs),
		"appointment": map[string]any{
			"profile_id":       req.ProfileID,
			"source_action":    "profile",
			"start_date":       req.StartDate,
			"visit_motive_ids": strconv.Itoa(req.MotiveID),
		},
		"practice_ids": []int{req.PracticeID},
	}
	if req.SecondSlot != "" {
		payload["second_slot"] = req.SecondSlot
	}

	var wire struct {
		ID    json.Number `json:"id"`
		Error string      `json:"error"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/appointments.json", payload, &wire); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return &AppointmentResponse{ID: wire.ID.String(), Error: wire.Error}, nil
}

// GetAppointmentEdit fetches the intake custom fields of an appointment.
// A non-zero masterPatientID binds the edit context to that patient.
func (c *Client) GetAppointmentEdit(ctx context.Context, appointmentID string, masterPatientID int) ([]CustomField, error) {
	path := "/appointments/" + url.PathEscape(appointmentID) + "/edit.json"
	if masterPatientID != 0 {
		path += "?master_patient_id=" + strconv.Itoa(masterPatientID)
	}

	var wrapped struct {
		Appointment struct {
			CustomFields []CustomField `json:"custom_fields"`
		} `json:"appointment"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &wrapped); err != nil {
		return nil, fmt.Errorf("get appointment edit: %w", err)
	}
	return wrapped.Appointment.CustomFields, nil
}

// GetMasterPatient fetches the account's first patient profile.
func (c *Client) GetMasterPatient(ctx context.Context) (*MasterPatient, error) {
	var patients []MasterPatient
	if err := c.doJSON(ctx, http.MethodGet, "/account/master_patients.json", nil, &patients); err != nil {
		return nil, fmt.Errorf("get master patients: %w", err)
	}
	if len(patients) == 0 {
		return nil, fmt.Errorf("get master patients: account has no patient profile")
	}
	return &patients[0], nil
}

// FinalizeAppointment submits the answered intake fields and patient
// identity, completing the booking on the remote side.
func (c *Client) FinalizeAppointment(ctx context.Context, appointmentID string, p FinalizePayload) (*FinalizeResult, error) {
	payload := map[string]any{
		"appointment": map[string]any{
			"custom_fields_values":  p.CustomFields,
			"new_patient":           true,
			"qualification_answers": map[string]any{},
			"referrer_id":           nil,
		},
		"bypass_mandatory_relative_contact_info": false,
		"email":          nil,
		"master_patient": p.MasterPatient,
		"new_patient":    true,
		"patient":        nil,
		"phone_number":   nil,
	}

	path := "/appointments/" + url.PathEscape(appointmentID) + ".json"
	var result FinalizeResult
	if err := c.doJSON(ctx, http.MethodPut, path, payload, &result); err != nil {
		return nil, fmt.Errorf("finalize appointment: %w", err)
	}
	return &result, nil
}

// GetAppointment reads an appointment back. The Confirmed flag of the
// result is the authoritative booking status.
func (c *Client) GetAppointment(ctx context.Context, appointmentID string) (*Appointment, error) {
	path := "/appointments/" + url.PathEscape(appointmentID) + ".json"
	var result Appointment
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return &result, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	endpoint := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("doctolib non-2xx response", "status", resp.StatusCode, "path", path, "body", msg)
		return fmt.Errorf("doctolib returned %d: %s", resp.StatusCode, msg)
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// get fetches a page as-is, primarily for HTML endpoints and cookie
// seeding. The caller owns the returned body bytes.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("doctolib returned %d for %s", resp.StatusCode, path)
	}
	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("sec-fetch-dest", "document")
	req.Header.Set("sec-fetch-mode", "navigate")
	req.Header.Set("sec-fetch-site", "same-origin")
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, "-")
}
