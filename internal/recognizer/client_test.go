package recognizer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProcess(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/process-base64" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"session_id": "20260101_101010_000001",
			"file_name": "sheet.jpg",
			"answers": {"Q1": "A", "Q2": "", "Q3": "BC", "Roll": "1234"},
			"answers_array": ["A", "", "BC"],
			"output_columns": ["Roll", "Q1", "Q2", "Q3"],
			"total_questions": 3,
			"multi_marked_count": 1,
			"marked_image": "aW1n",
			"timestamp": "2026-01-01T10:10:10"
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "", time.Second)
	rec, err := c.Process(context.Background(), "sheet.jpg", []byte("fake-jpeg"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if got["template"] != DefaultTemplate {
		t.Errorf("template = %q, want %q", got["template"], DefaultTemplate)
	}
	if got["filename"] != "sheet.jpg" {
		t.Errorf("filename = %q", got["filename"])
	}
	img, _ := base64.StdEncoding.DecodeString(got["image"])
	if string(img) != "fake-jpeg" {
		t.Errorf("image payload = %q", img)
	}

	if rec.SessionID == "" || rec.TotalQuestions != 3 || rec.MultiMarkedCount != 1 || rec.MarkedImage != "aW1n" {
		t.Errorf("recognition = %+v", rec)
	}
	if label, ok := rec.Answers["Q1"].Label(); !ok || label != "A" {
		t.Errorf("Q1 = %v", rec.Answers["Q1"])
	}
	if rec.Answers["Q2"].Answered() {
		t.Error("blank bubble should be unanswered")
	}
	if label, _ := rec.Answers["Q3"].Label(); label != "BC" {
		t.Errorf("multi-marked Q3 = %v", rec.Answers["Q3"])
	}
	if len(rec.OutputColumns) != 4 {
		t.Errorf("output columns = %v", rec.OutputColumns)
	}
}

func TestProcessFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"service error", http.StatusBadRequest, `{"success": false, "error": "no markers found"}`},
		{"success false with 200", http.StatusOK, `{"success": false, "error": "bad template"}`},
		{"server crash", http.StatusInternalServerError, `{"success": false}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, "custom", time.Second).Process(context.Background(), "x.jpg", []byte("x"))
			if !errors.Is(err, ErrProcessing) {
				t.Errorf("expected ErrProcessing, got %v", err)
			}
		})
	}
}

func TestProcessBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway timeout</html>`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).Process(context.Background(), "x.jpg", []byte("x"))
	if err == nil || errors.Is(err, ErrProcessing) {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestProcessTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", 50*time.Millisecond).Process(context.Background(), "x.jpg", []byte("x"))
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestHealthAndTemplates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy","service":"OMR Scanner API","version":"1.0.0"}`))
	})
	mux.HandleFunc("/api/templates", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"templates":[{"id":"default","name":"Default Template","fieldBlockCount":4}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.Version != "1.0.0" {
		t.Errorf("health = %+v", h)
	}

	tpls, err := c.Templates(context.Background())
	if err != nil {
		t.Fatalf("Templates: %v", err)
	}
	if len(tpls) != 1 || tpls[0].ID != "default" || tpls[0].FieldBlockCount != 4 {
		t.Errorf("templates = %+v", tpls)
	}
}

func TestHealthDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "", time.Second).Health(context.Background()); err == nil {
		t.Error("expected error from unhealthy service")
	}
}
