package remote

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/devtab/devtab/internal/model"
)

// testServer is a minimal in-memory document API.
type testServer struct {
	mu       sync.Mutex
	taskDocs map[string]model.TaskDocument
	tabDocs  map[string]model.TabDocument
	batches  [][]batchWrite

	failBatch bool
}

func newTestServer() *testServer {
	return &testServer{
		taskDocs: make(map[string]model.TaskDocument),
		tabDocs:  make(map[string]model.TabDocument),
	}
}

func (s *testServer) handler(t *testing.T) http.Handler {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/users/{uid}/tasks", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		docs := make([]model.TaskDocument, 0, len(s.taskDocs))
		for _, d := range s.taskDocs {
			docs = append(docs, d)
		}
		_ = json.NewEncoder(w).Encode(docs)
	})

	mux.HandleFunc("GET /v1/users/{uid}/tasks/{tab}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		doc, ok := s.taskDocs[r.PathValue("tab")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(doc)
	})

	mux.HandleFunc("GET /v1/users/{uid}/tabs", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		docs := make([]model.TabDocument, 0, len(s.tabDocs))
		for _, d := range s.tabDocs {
			docs = append(docs, d)
		}
		_ = json.NewEncoder(w).Encode(docs)
	})

	mux.HandleFunc("DELETE /v1/users/{uid}/tabs/{tab}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.tabDocs, r.PathValue("tab"))
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE /v1/users/{uid}/tasks/{tab}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.taskDocs, r.PathValue("tab"))
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /v1/users/{uid}/batch", func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failBatch {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			return
		}
		s.batches = append(s.batches, req.Writes)
		for _, wr := range req.Writes {
			switch wr.Collection {
			case "tasks":
				var doc model.TaskDocument
				if err := json.Unmarshal(wr.Doc, &doc); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				s.taskDocs[wr.ID] = doc
			case "tabs":
				var doc model.TabDocument
				if err := json.Unmarshal(wr.Doc, &doc); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				s.tabDocs[wr.ID] = doc
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func newTestClient(t *testing.T, srv *testServer) *HTTPClient {
	t.Helper()

	ts := httptest.NewServer(srv.handler(t))
	t.Cleanup(ts.Close)

	return NewHTTPClient(ts.URL, "token", "u1", log.New(os.Stderr, "[test] ", 0))
}

func TestGetTasksMissingDocumentIsEmpty(t *testing.T) {
	client := newTestClient(t, newTestServer())

	tasks, err := client.GetTasks(context.Background(), "tab_missing")
	if err != nil {
		t.Fatalf("GetTasks failed: %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Errorf("expected empty list for missing document, got %+v", tasks)
	}
}

func TestGetAllTasksSkipsMalformedDocuments(t *testing.T) {
	srv := newTestServer()
	srv.taskDocs["tab_a"] = model.TaskDocument{TabID: "tab_a", Tasks: []model.Task{{ID: 1, Text: "ok"}}}
	srv.taskDocs["bad"] = model.TaskDocument{Tasks: []model.Task{{ID: 2}}} // missing tabId

	client := newTestClient(t, srv)
	tasks, err := client.GetAllTasks(context.Background())
	if err != nil {
		t.Fatalf("GetAllTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected malformed document skipped, got %+v", tasks)
	}
	if got := tasks["tab_a"]; len(got) != 1 || got[0].Text != "ok" {
		t.Errorf("valid document mangled: %+v", got)
	}
}

func TestSmartSaveSingleBatch(t *testing.T) {
	srv := newTestServer()
	client := newTestClient(t, srv)

	tasks := model.TaskMap{
		"tab_a": {{ID: 1, Text: "a"}},
		"tab_b": {{ID: 2, Text: "b"}},
	}
	tabs := model.TabsMap{
		"tab_a": {ID: "tab_a", Name: "A"},
		"tab_b": {ID: "tab_b", Name: "B"},
	}

	err := client.SmartSave(context.Background(), []string{"tab_a", "tab_b"}, []string{"tab_a", "tab_b"}, tasks, tabs)
	if err != nil {
		t.Fatalf("SmartSave failed: %v", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.batches) != 1 {
		t.Fatalf("expected 1 batch commit, got %d", len(srv.batches))
	}
	if len(srv.batches[0]) != 4 {
		t.Errorf("expected 4 writes in the batch, got %d", len(srv.batches[0]))
	}
	if len(srv.taskDocs) != 2 || len(srv.tabDocs) != 2 {
		t.Errorf("documents not stored: %d task docs, %d tab docs", len(srv.taskDocs), len(srv.tabDocs))
	}
}

func TestSmartSaveEmptyChangeSetIssuesNoRequest(t *testing.T) {
	srv := newTestServer()
	client := newTestClient(t, srv)

	if err := client.SmartSave(context.Background(), nil, nil, model.TaskMap{}, model.TabsMap{}); err != nil {
		t.Fatalf("empty SmartSave failed: %v", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.batches) != 0 {
		t.Errorf("empty change set hit the server: %d batches", len(srv.batches))
	}
}

func TestSmartSaveSkipsLocallyDeletedTabs(t *testing.T) {
	srv := newTestServer()
	client := newTestClient(t, srv)

	// tab_gone is flagged but absent from the map: deleted mid-window.
	tabs := model.TabsMap{"tab_a": {ID: "tab_a", Name: "A"}}
	err := client.SmartSave(context.Background(), nil, []string{"tab_a", "tab_gone"}, model.TaskMap{}, tabs)
	if err != nil {
		t.Fatalf("SmartSave failed: %v", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.tabDocs) != 1 {
		t.Errorf("expected only the surviving tab uploaded: %+v", srv.tabDocs)
	}
}

func TestManualSaveWritesBothDocuments(t *testing.T) {
	srv := newTestServer()
	client := newTestClient(t, srv)

	tab := model.Tab{ID: "tab_a", Name: "A"}
	err := client.ManualSave(context.Background(), "tab_a", []model.Task{{ID: 1, Text: "x"}}, tab)
	if err != nil {
		t.Fatalf("ManualSave failed: %v", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.batches) != 1 || len(srv.batches[0]) != 2 {
		t.Fatalf("expected one batch of 2 writes, got %+v", srv.batches)
	}
	if got := srv.taskDocs["tab_a"]; len(got.Tasks) != 1 {
		t.Errorf("task document not written: %+v", got)
	}
	if got := srv.tabDocs["tab_a"]; got.Name != "A" {
		t.Errorf("tab document not written: %+v", got)
	}
}

func TestBatchFailureLeavesNothing(t *testing.T) {
	srv := newTestServer()
	srv.failBatch = true
	client := newTestClient(t, srv)

	err := client.ManualSave(context.Background(), "tab_a", nil, model.Tab{ID: "tab_a", Name: "A"})
	if err == nil {
		t.Fatal("expected batch failure")
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.taskDocs) != 0 || len(srv.tabDocs) != 0 {
		t.Errorf("failed batch left partial writes: %+v %+v", srv.taskDocs, srv.tabDocs)
	}
}

func TestDeleteTabCascadesToTasks(t *testing.T) {
	srv := newTestServer()
	srv.tabDocs["tab_a"] = model.TabDocument{ID: "tab_a", Name: "A"}
	srv.taskDocs["tab_a"] = model.TaskDocument{TabID: "tab_a"}

	client := newTestClient(t, srv)
	if err := client.DeleteTab(context.Background(), "tab_a"); err != nil {
		t.Fatalf("DeleteTab failed: %v", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.tabDocs) != 0 {
		t.Errorf("tab document survived delete: %+v", srv.tabDocs)
	}
	if len(srv.taskDocs) != 0 {
		t.Errorf("task document survived cascade: %+v", srv.taskDocs)
	}
}

func TestUnauthorizedMapsToErrUnauthenticated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	t.Cleanup(ts.Close)

	client := NewHTTPClient(ts.URL, "expired", "u1", log.New(os.Stderr, "[test] ", 0))
	_, err := client.GetAllTabs(context.Background())
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}
