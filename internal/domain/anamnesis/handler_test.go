package anamnesis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/altamedica/platform-api/internal/platform/auth"
)

func newTestHandler(store Store) (*echo.Echo, *Handler) {
	e := echo.New()
	h := NewHandler(NewService(store, zerolog.Nop()), NewPDFExporter("/nonexistent/font.ttf"))
	h.RegisterRoutes(e.Group("/api/v1"))
	return e, h
}

func doRequest(e *echo.Echo, method, path string, body string, caller *auth.Identity) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if caller != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), caller))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_SaveAndGet(t *testing.T) {
	e, _ := newTestHandler(newMemStore())

	body := `{"sections":{"allergies":{"items":["penicillin"]}}}`
	rec := doRequest(e, http.MethodPut, "/api/v1/patients/p1/anamnesis", body, patientSelf)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var saved Record
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decoding save response: %v", err)
	}
	if saved.VersionID == "" {
		t.Error("expected version id in save response")
	}

	rec = doRequest(e, http.MethodGet, "/api/v1/patients/p1/anamnesis", "", patientSelf)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	var got Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding get response: %v", err)
	}
	if got.VersionID != saved.VersionID {
		t.Errorf("expected version %s, got %s", saved.VersionID, got.VersionID)
	}
}

func TestHandler_StatusMapping(t *testing.T) {
	store := newMemStore()
	e, _ := newTestHandler(store)

	base, err := store.SaveOrUpdate(context.Background(), "p1", validSections(), "d1")
	if err != nil {
		t.Fatal(err)
	}
	_, err = store.SaveOrUpdate(context.Background(), "p1", validSections(), "d1")
	if err != nil {
		t.Fatal(err)
	}

	validBody := `{"sections":{"allergies":{"items":[]}}}`
	staleSync := `{"sections":{"allergies":{"items":[]}},"expected_version":"` + base.VersionID + `"}`

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		caller *auth.Identity
		want   int
	}{
		{"anonymous read", http.MethodGet, "/api/v1/patients/p1/anamnesis", "", nil, http.StatusUnauthorized},
		{"unverified write", http.MethodPut, "/api/v1/patients/p1/anamnesis", validBody, unverified, http.StatusForbidden},
		{"foreign patient read", http.MethodGet, "/api/v1/patients/p1/anamnesis", "", otherPatient, http.StatusForbidden},
		{"missing record", http.MethodGet, "/api/v1/patients/nobody/anamnesis", "", doctor, http.StatusNotFound},
		{"invalid document", http.MethodPut, "/api/v1/patients/p1/anamnesis", `{"sections":{"allergies":[1,2]}}`, doctor, http.StatusUnprocessableEntity},
		{"stale sync", http.MethodPut, "/api/v1/patients/p1/anamnesis/sync", staleSync, doctor, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(e, tt.method, tt.path, tt.body, tt.caller)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_ConflictBodyCarriesCurrent(t *testing.T) {
	store := newMemStore()
	e, _ := newTestHandler(store)

	base, _ := store.SaveOrUpdate(context.Background(), "p1", validSections(), "d1")
	winner, _ := store.SaveOrUpdate(context.Background(), "p1", validSections(), "d2")

	body := `{"sections":{"allergies":{"items":[]}},"expected_version":"` + base.VersionID + `"}`
	rec := doRequest(e, http.MethodPut, "/api/v1/patients/p1/anamnesis/sync", body, doctor)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	var resp struct {
		CurrentVersion string  `json:"current_version"`
		Current        *Record `json:"current"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding conflict body: %v", err)
	}
	if resp.CurrentVersion != winner.VersionID {
		t.Errorf("expected current version %s, got %s", winner.VersionID, resp.CurrentVersion)
	}
	if resp.Current == nil || resp.Current.LastEditedBy != "d2" {
		t.Errorf("expected winning record in conflict body, got %+v", resp.Current)
	}
}

func TestHandler_TransientMapsTo503(t *testing.T) {
	store := newMemStore()
	store.saveErr = ErrTransient(nil)
	e, _ := newTestHandler(store)

	body := `{"sections":{"allergies":{"items":[]}}}`
	rec := doRequest(e, http.MethodPut, "/api/v1/patients/p1/anamnesis", body, doctor)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestHandler_History(t *testing.T) {
	store := newMemStore()
	e, _ := newTestHandler(store)

	store.SaveOrUpdate(context.Background(), "p1", validSections(), "d1")
	store.SaveOrUpdate(context.Background(), "p1", validSections(), "d1")
	store.SaveOrUpdate(context.Background(), "p1", validSections(), "d1")

	rec := doRequest(e, http.MethodGet, "/api/v1/patients/p1/anamnesis/history?limit=1", "", doctor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data    []Version `json:"data"`
		Total   int       `json:"total"`
		HasMore bool      `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding history response: %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("expected one history entry per write, got %d", resp.Total)
	}
	if len(resp.Data) != 1 {
		t.Errorf("expected 1 page item, got %d", len(resp.Data))
	}
	if !resp.HasMore {
		t.Error("expected has_more with limit 1")
	}
}

func TestHandler_Validate(t *testing.T) {
	e, _ := newTestHandler(newMemStore())

	rec := doRequest(e, http.MethodPost, "/api/v1/patients/p1/anamnesis/validate", `{"sections":{}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate never errors: expected 200, got %d", rec.Code)
	}
	var result ValidationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Errorf("an empty sections object is structurally valid, got %v", result.Problems)
	}

	rec = doRequest(e, http.MethodPost, "/api/v1/patients/p1/anamnesis/validate", `{"sections":{"allergies":[1,2]}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate never errors: expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Error("expected a non-object section to be invalid")
	}
}
