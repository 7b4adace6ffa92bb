package booking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosehunt/dosehunt/internal/doctolib"
)

// Full booking flow over the wire: the real client against one scripted
// server, driven by the engine end to end.
func TestBookingFlowOverHTTP(t *testing.T) {
	var sequence []string
	var createBodies []map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sequence = append(sequence, r.Method+" "+r.URL.Path)

		switch r.Method + " " + r.URL.Path {
		case "GET /sessions/new":
			http.SetCookie(w, &http.Cookie{Name: "_doctolib_session", Value: "abc"})
		case "POST /login.json":
			w.Write([]byte(`{}`))
		case "GET /booking/centre-paris-10.json":
			w.Write([]byte(`{
				"data": {
					"visit_motives": [
						{"id": 101, "name": "1re injection vaccin COVID-19 (Pfizer-BioNTech)"}
					],
					"agendas": [
						{"id": 1, "practice_id": 11, "booking_disabled": false, "visit_motive_ids": [101]}
					],
					"places": [{"name": "Centre principal", "practice_ids": [11]}],
					"profile": {"id": 900}
				}
			}`))
		case "GET /availabilities.json":
			assert.Equal(t, "2024-05-01", r.URL.Query().Get("start_date"))
			assert.Equal(t, "1", r.URL.Query().Get("agenda_ids"))
			w.Write([]byte(`{"availabilities": [
				{"date": "2024-05-01", "slots": [
					{"start_date": "2024-05-01T14:00:00.000+02:00",
					 "steps": [{"start_date": "2024-05-01T14:00:00.000+02:00"},
					           {"start_date": "2024-06-12T14:00:00.000+02:00"}]}
				]}
			]}`))
		case "GET /second_shot_availabilities.json":
			assert.Equal(t, "2024-06-12", r.URL.Query().Get("start_date"))
			assert.Equal(t, "2024-05-01T14:00:00.000+02:00", r.URL.Query().Get("first_slot"))
			w.Write([]byte(`{"availabilities": [
				{"date": "2024-06-12", "slots": [{"start_date": "2024-06-12T15:00:00.000+02:00"}]}
			]}`))
		case "POST /appointments.json":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			createBodies = append(createBodies, body)
			w.Write([]byte(`{"id": 640471}`))
		case "GET /account/master_patients.json":
			w.Write([]byte(`[{"id": 99, "first_name": "Jane", "last_name": "Doe"}]`))
		case "GET /appointments/640471/edit.json":
			assert.Equal(t, "99", r.URL.Query().Get("master_patient_id"))
			w.Write([]byte(`{"appointment": {"custom_fields": [
				{"id": "cov19", "label": "COVID récent ?", "required": true}
			]}}`))
		case "PUT /appointments/640471.json":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			appointment := body["appointment"].(map[string]any)
			values := appointment["custom_fields_values"].(map[string]any)
			assert.Equal(t, "Non", values["cov19"])
			w.Write([]byte(`{"redirection": "/account/appointments"}`))
		case "GET /appointments/640471.json":
			w.Write([]byte(`{"id": "640471", "confirmed": true}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client := doctolib.NewClient(server.URL)
	require.NoError(t, client.Login(ctx, "jane@example.com", "s3cret"))

	engine := NewEngine(client, StaticAnswers{}, mrnaPattern, WithClock(fixedNow))
	booked, err := engine.AttemptBooking(ctx, testCenter())
	require.NoError(t, err)
	assert.True(t, booked)

	assert.Equal(t, []string{
		"GET /sessions/new",
		"POST /login.json",
		"GET /booking/centre-paris-10.json",
		"GET /availabilities.json",
		"POST /appointments.json",
		"GET /second_shot_availabilities.json",
		"POST /appointments.json",
		"GET /account/master_patients.json",
		"GET /appointments/640471/edit.json",
		"PUT /appointments/640471.json",
		"GET /appointments/640471.json",
	}, sequence)

	// The provisional create carries no second slot; the re-submission does.
	require.Len(t, createBodies, 2)
	assert.NotContains(t, createBodies[0], "second_slot")
	assert.Equal(t, "2024-06-12T15:00:00.000+02:00", createBodies[1]["second_slot"])
}
