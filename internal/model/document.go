package model

import (
	"fmt"
	"time"
)

// TaskDocument is the remote store's per-workspace task document.
//
// One document exists per workspace in the user's tasks collection,
// holding that workspace's full task list. UpdatedAt is assigned by
// the server on write.
type TaskDocument struct {
	TabID     string    `json:"tabId"`
	Tasks     []Task    `json:"tasks"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Validate checks document shape before trusting remote data.
func (d *TaskDocument) Validate() error {
	if d.TabID == "" {
		return fmt.Errorf("task document missing tabId")
	}
	return nil
}

// TabDocument is the remote store's per-workspace metadata document.
type TabDocument struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt string    `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Validate checks document shape before trusting remote data.
func (d *TabDocument) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("tab document missing id")
	}
	if d.Name == "" {
		return fmt.Errorf("tab document %s missing name", d.ID)
	}
	return nil
}

// Tab converts the document to the in-memory workspace form.
func (d *TabDocument) Tab() Tab {
	return Tab{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt}
}

// TabDocumentFrom builds the remote document for a workspace.
func TabDocumentFrom(tab Tab) TabDocument {
	return TabDocument{ID: tab.ID, Name: tab.Name, CreatedAt: tab.CreatedAt}
}
