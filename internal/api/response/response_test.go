package response_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aerosolkit/aeronet/internal/api/middleware"
	"github.com/aerosolkit/aeronet/internal/api/models"
	"github.com/aerosolkit/aeronet/internal/api/response"
)

// requestWithContext creates an HTTP request that has been processed by the RequestID middleware
// to populate the context with a request ID.
func requestWithContext(t *testing.T, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	rec := httptest.NewRecorder()

	var processedReq *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processedReq = r
	}))
	handler.ServeHTTP(rec, req)

	return processedReq, httptest.NewRecorder()
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/test")

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	requestID := rec.Header().Get("X-Request-Id")
	if requestID == "" {
		t.Error("expected X-Request-Id header to be set")
	}
	if len(requestID) < 10 {
		t.Errorf("expected request ID to be a valid ID, got %q", requestID)
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", contentType)
	}
}

func TestJSON_WithoutRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	if requestID := rec.Header().Get("X-Request-Id"); requestID != "" {
		t.Errorf("expected no X-Request-Id header when not in context, got %q", requestID)
	}
}

func TestJSON_NilData(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/test")

	response.JSON(rec, req, http.StatusOK, nil)

	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got %q", rec.Body.String())
	}
}

func TestCSV(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/observations")

	err := response.CSV(rec, req, http.StatusOK, func(w http.ResponseWriter) error {
		_, err := io.WriteString(w, "a,b\n1,2\n")
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Errorf("expected text/csv content type, got %q", ct)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header to be set")
	}
	if rec.Body.String() != "a,b\n1,2\n" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestCSV_ReturnsWriterError(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/observations")
	boom := errors.New("boom")

	err := response.CSV(rec, req, http.StatusOK, func(http.ResponseWriter) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected writer error, got %v", err)
	}
}

func TestBadRequest_IncludesTraceID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/observations")

	fieldErrors := []models.FieldError{
		{Field: "year", Message: "required", Code: models.FieldCodeRequired},
	}
	response.BadRequest(rec, req, "missing required options: year", fieldErrors)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}

	var problem models.Problem
	if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
		t.Fatalf("failed to decode Problem response: %v", err)
	}

	if problem.TraceID == "" {
		t.Error("expected traceId to be set in Problem response")
	}
	if problem.Instance != "/v1/observations" {
		t.Errorf("expected instance /v1/observations, got %q", problem.Instance)
	}
	if len(problem.Errors) != 1 || problem.Errors[0].Field != "year" {
		t.Errorf("expected one field error for year, got %+v", problem.Errors)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, *http.Request, string)
		status int
	}{
		{"not found", response.NotFound, http.StatusNotFound},
		{"unprocessable", response.Unprocessable, http.StatusUnprocessableEntity},
		{"internal", response.InternalError, http.StatusInternalServerError},
		{"bad gateway", response.BadGateway, http.StatusBadGateway},
		{"unavailable", response.ServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := requestWithContext(t, http.MethodGet, "/v1/test")

			tt.write(rec, req, "detail")

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("expected problem content type, got %q", ct)
			}

			var problem models.Problem
			if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
				t.Fatalf("failed to decode Problem response: %v", err)
			}
			if problem.Status != tt.status {
				t.Errorf("expected problem status %d, got %d", tt.status, problem.Status)
			}
			if problem.TraceID == "" {
				t.Error("expected traceId to be set")
			}
			if problem.Detail != "detail" {
				t.Errorf("expected detail to be set, got %q", problem.Detail)
			}
		})
	}
}

func TestRequestIDPropagation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("X-Request-Id", "client-request-123")
	rec := httptest.NewRecorder()

	var processedReq *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processedReq = r
	}))
	handler.ServeHTTP(rec, req)

	if requestID := middleware.GetRequestID(processedReq.Context()); requestID != "client-request-123" {
		t.Errorf("expected client request ID to be preserved, got %q", requestID)
	}

	rec = httptest.NewRecorder()
	response.JSON(rec, processedReq, http.StatusOK, map[string]string{"status": "ok"})

	if got := rec.Header().Get("X-Request-Id"); got != "client-request-123" {
		t.Errorf("expected response X-Request-Id to match client's, got %q", got)
	}
}

func TestGetRequestID_EmptyContext(t *testing.T) {
	if requestID := middleware.GetRequestID(context.Background()); requestID != "" {
		t.Errorf("expected empty request ID for background context, got %q", requestID)
	}
}
