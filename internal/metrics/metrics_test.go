package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCanonicalRoute(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"/auth/login", "/auth/login"},
		{"/users", "/users"},
		{"/users/delete/65a1b2c3d4e5f6a7b8c9d0e1", "/users/delete/:id"},
		{"/users/delete-students", "/users/delete-students"},
		{"/weather-stations", "/weather-stations"},
		{"/weather-stations/max-temperature", "/weather-stations/max-temperature"},
		{"/weather-stations/stationA", "/weather-stations/:deviceName"},
		{"/weather-stations/stationA/max-precipitation", "/weather-stations/:deviceName/max-precipitation"},
		{"/weather-stations/stationA/readings", "/weather-stations/:deviceName/readings"},
		{"/weather-stations/stationA/readings/2024-01-01", "/weather-stations/:deviceName/readings/:date"},
		{"/weather-stations/abc/precipitation", "/weather-stations/:entryID/precipitation"},
		{"/random/thing", "/other"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := canonicalRoute(tt.in); got != tt.want {
				t.Errorf("canonicalRoute(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInstrumentHandler_RecordsRequests(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/weather-stations/s1/max-precipitation", nil))
	RecordAuthRejection("missing_token")
	RecordLogin("success")
	RecordReadingsIngested("http", 3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`weatherapi_http_requests_total{method="GET",route="/weather-stations/:deviceName/max-precipitation",status="418"}`,
		`weatherapi_auth_rejections_total{reason="missing_token"}`,
		`weatherapi_auth_logins_total{outcome="success"}`,
		`weatherapi_readings_ingested_total{source="http"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
