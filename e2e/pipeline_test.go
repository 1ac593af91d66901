package e2e

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func TestIntakeRun_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/intake/run", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)

	result := parseJSON(t, resp)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok || errObj["code"] != "UNAUTHORIZED" {
		t.Errorf("expected UNAUTHORIZED error, got %v", result)
	}
}

func TestIntakeRun_BadToken(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/intake/run", map[string]string{
		"Authorization": "Bearer wrong-token",
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestIntakeRun_NoEmail(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/intake/run")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["status"] != "no_email" {
		t.Errorf("expected no_email, got %v", result["status"])
	}
}

func TestIntakeRun_OperatorJWT(t *testing.T) {
	ta := setupApp(t)

	resp, err := doJWTRequest(t, ta.app, http.MethodGet, "/api/intake/run")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)
}

func TestJobs_EmptyList(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/jobs")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	jobs, ok := result["jobs"].([]interface{})
	if !ok {
		t.Fatalf("expected jobs array, got %v", result)
	}
	if len(jobs) != 0 {
		t.Errorf("expected empty job list, got %d entries", len(jobs))
	}
}

func TestOCRPoll_MissingJobID(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/ocr/poll")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)

	result := parseJSON(t, resp)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok || errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %v", result)
	}
}

func TestOCRPoll_InvalidJobID(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/ocr/poll?job_id=not-a-uuid")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestOCRPoll_UnknownJob(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/ocr/poll?job_id="+uuid.New().String())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)

	result := parseJSON(t, resp)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok || errObj["code"] != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %v", result)
	}
}

func TestDistillQueue_NoFiles(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/distill/queue")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["status"] != "no_files" {
		t.Errorf("expected no_files, got %v", result["status"])
	}
}

func TestDistillProcess_MissingTempID(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/distill/process")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestDistillSave_MissingParams(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/distill/save?result_id=abc")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}
