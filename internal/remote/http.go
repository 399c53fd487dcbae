package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/devtab/devtab/internal/model"
)

// batchWrite is one entry in an atomic batch commit.
type batchWrite struct {
	Collection string          `json:"collection"` // "tasks" or "tabs"
	ID         string          `json:"id"`
	Doc        json.RawMessage `json:"doc"`
}

// batchRequest is the payload for the atomic multi-document endpoint.
// The server applies all writes in one transaction.
type batchRequest struct {
	Writes []batchWrite `json:"writes"`
}

// HTTPClient talks to the devtab document API over HTTPS.
//
// Endpoints live under /v1/users/{uid}: per-workspace documents in the
// tasks and tabs collections, a settings document, and a batch endpoint
// with transactional semantics.
type HTTPClient struct {
	baseURL    string
	token      string
	userID     string
	httpClient *http.Client
	logger     *log.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a remote client for the given user.
// If logger is nil, a default logger writing to stderr is used.
func NewHTTPClient(baseURL, token, userID string, logger *log.Logger) *HTTPClient {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		userID:     userID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

func (c *HTTPClient) userPath(parts ...string) string {
	p := c.baseURL + "/v1/users/" + url.PathEscape(c.userID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// do issues a request with auth headers and decodes the JSON response into
// out (when out is non-nil). A 404 is reported via the returned bool so
// callers can map missing documents to empty values.
func (c *HTTPClient) do(ctx context.Context, method, url string, body, out any) (found bool, err error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("remote request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, ErrUnauthenticated
	case resp.StatusCode >= 300:
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("remote error: status %d: %s", resp.StatusCode, bytes.TrimSpace(errBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("failed to decode remote response: %w", err)
		}
	}
	return true, nil
}

// GetTasks implements Client.GetTasks.
func (c *HTTPClient) GetTasks(ctx context.Context, tabID string) ([]model.Task, error) {
	var doc model.TaskDocument
	found, err := c.do(ctx, http.MethodGet, c.userPath("tasks", tabID), nil, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to get tasks for %s: %w", tabID, err)
	}
	if !found {
		return []model.Task{}, nil
	}
	if doc.Tasks == nil {
		return []model.Task{}, nil
	}
	return doc.Tasks, nil
}

// GetAllTasks implements Client.GetAllTasks. Documents that fail shape
// validation are logged and skipped rather than trusted.
func (c *HTTPClient) GetAllTasks(ctx context.Context) (model.TaskMap, error) {
	var docs []model.TaskDocument
	if _, err := c.do(ctx, http.MethodGet, c.userPath("tasks"), nil, &docs); err != nil {
		return nil, fmt.Errorf("failed to get all tasks: %w", err)
	}

	tasks := model.TaskMap{}
	for i := range docs {
		if err := docs[i].Validate(); err != nil {
			c.logger.Printf("Warning: skipping malformed task document: %v", err)
			continue
		}
		list := docs[i].Tasks
		if list == nil {
			list = []model.Task{}
		}
		tasks[docs[i].TabID] = list
	}
	return tasks, nil
}

// SaveTasks implements Client.SaveTasks.
func (c *HTTPClient) SaveTasks(ctx context.Context, tabID string, tasks []model.Task) error {
	doc := model.TaskDocument{TabID: tabID, Tasks: tasks}
	if _, err := c.do(ctx, http.MethodPut, c.userPath("tasks", tabID), &doc, nil); err != nil {
		return fmt.Errorf("failed to save tasks for %s: %w", tabID, err)
	}
	return nil
}

// DeleteTasks implements Client.DeleteTasks.
func (c *HTTPClient) DeleteTasks(ctx context.Context, tabID string) error {
	if _, err := c.do(ctx, http.MethodDelete, c.userPath("tasks", tabID), nil, nil); err != nil {
		return fmt.Errorf("failed to delete tasks for %s: %w", tabID, err)
	}
	return nil
}

// SaveTab implements Client.SaveTab.
func (c *HTTPClient) SaveTab(ctx context.Context, tab model.Tab) error {
	doc := model.TabDocumentFrom(tab)
	if _, err := c.do(ctx, http.MethodPut, c.userPath("tabs", tab.ID), &doc, nil); err != nil {
		return fmt.Errorf("failed to save tab %s: %w", tab.ID, err)
	}
	return nil
}

// GetAllTabs implements Client.GetAllTabs.
func (c *HTTPClient) GetAllTabs(ctx context.Context) (model.TabsMap, error) {
	var docs []model.TabDocument
	if _, err := c.do(ctx, http.MethodGet, c.userPath("tabs"), nil, &docs); err != nil {
		return nil, fmt.Errorf("failed to get all tabs: %w", err)
	}

	tabs := model.TabsMap{}
	for i := range docs {
		if err := docs[i].Validate(); err != nil {
			c.logger.Printf("Warning: skipping malformed tab document: %v", err)
			continue
		}
		tabs[docs[i].ID] = docs[i].Tab()
	}
	return tabs, nil
}

// DeleteTab implements Client.DeleteTab. The workspace's task document is
// deleted after the metadata document (cascade).
func (c *HTTPClient) DeleteTab(ctx context.Context, tabID string) error {
	if _, err := c.do(ctx, http.MethodDelete, c.userPath("tabs", tabID), nil, nil); err != nil {
		return fmt.Errorf("failed to delete tab %s: %w", tabID, err)
	}
	return c.DeleteTasks(ctx, tabID)
}

func marshalWrite(collection, id string, doc any) (batchWrite, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return batchWrite{}, fmt.Errorf("failed to marshal %s document %s: %w", collection, id, err)
	}
	return batchWrite{Collection: collection, ID: id, Doc: data}, nil
}

func (c *HTTPClient) commitBatch(ctx context.Context, writes []batchWrite) error {
	if _, err := c.do(ctx, http.MethodPost, c.userPath("batch"), &batchRequest{Writes: writes}, nil); err != nil {
		return fmt.Errorf("batch commit failed: %w", err)
	}
	return nil
}

// BatchSaveAll implements Client.BatchSaveAll.
func (c *HTTPClient) BatchSaveAll(ctx context.Context, tabID string, tasks []model.Task, tabs model.TabsMap) error {
	writes := make([]batchWrite, 0, len(tabs)+1)

	w, err := marshalWrite("tasks", tabID, model.TaskDocument{TabID: tabID, Tasks: tasks})
	if err != nil {
		return err
	}
	writes = append(writes, w)

	for id, tab := range tabs {
		w, err := marshalWrite("tabs", id, model.TabDocumentFrom(tab))
		if err != nil {
			return err
		}
		writes = append(writes, w)
	}

	return c.commitBatch(ctx, writes)
}

// ManualSave implements Client.ManualSave.
func (c *HTTPClient) ManualSave(ctx context.Context, tabID string, tasks []model.Task, tab model.Tab) error {
	taskWrite, err := marshalWrite("tasks", tabID, model.TaskDocument{TabID: tabID, Tasks: tasks})
	if err != nil {
		return err
	}
	tabWrite, err := marshalWrite("tabs", tab.ID, model.TabDocumentFrom(tab))
	if err != nil {
		return err
	}
	return c.commitBatch(ctx, []batchWrite{taskWrite, tabWrite})
}

// SmartSave implements Client.SmartSave.
func (c *HTTPClient) SmartSave(ctx context.Context, changedTaskTabs, changedTabs []string, allTasks model.TaskMap, allTabs model.TabsMap) error {
	if len(changedTaskTabs) == 0 && len(changedTabs) == 0 {
		return nil
	}

	var writes []batchWrite
	for _, tabID := range changedTaskTabs {
		w, err := marshalWrite("tasks", tabID, model.TaskDocument{TabID: tabID, Tasks: allTasks[tabID]})
		if err != nil {
			return err
		}
		writes = append(writes, w)
	}
	for _, tabID := range changedTabs {
		tab, ok := allTabs[tabID]
		if !ok {
			// Flagged but already deleted locally; nothing to upload.
			continue
		}
		w, err := marshalWrite("tabs", tabID, model.TabDocumentFrom(tab))
		if err != nil {
			return err
		}
		writes = append(writes, w)
	}
	if len(writes) == 0 {
		return nil
	}

	return c.commitBatch(ctx, writes)
}

// SaveUserSettings implements Client.SaveUserSettings.
func (c *HTTPClient) SaveUserSettings(ctx context.Context, settings map[string]any) error {
	if _, err := c.do(ctx, http.MethodPatch, c.userPath("settings"), settings, nil); err != nil {
		return fmt.Errorf("failed to save user settings: %w", err)
	}
	return nil
}

// GetUserSettings implements Client.GetUserSettings.
func (c *HTTPClient) GetUserSettings(ctx context.Context) (map[string]any, error) {
	var settings map[string]any
	found, err := c.do(ctx, http.MethodGet, c.userPath("settings"), nil, &settings)
	if err != nil {
		return nil, fmt.Errorf("failed to get user settings: %w", err)
	}
	if !found || settings == nil {
		return map[string]any{}, nil
	}
	return settings, nil
}
