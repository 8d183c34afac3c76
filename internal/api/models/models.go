package models

import (
	"strings"

	"github.com/nkkko/textai/internal/api/validation"
	"github.com/nkkko/textai/internal/domain"
)

// maxPathLength bounds document paths accepted by the API
const maxPathLength = 4096

// HealthResponse reports process liveness and whether a window is attached
type HealthResponse struct {
	Status string `json:"status"`
	Window bool   `json:"window"`
}

// MenuResponse lists the menu items in display order
type MenuResponse struct {
	Items []domain.MenuItem `json:"items"`
}

// RecentResponse lists recent documents, most recent first
type RecentResponse struct {
	Documents []string `json:"documents"`
}

// TriggerResponse acknowledges a menu action
type TriggerResponse struct {
	Item      string `json:"item,omitempty"`
	Triggered bool   `json:"triggered"`
}

// AcceleratorRequest runs the menu item bound to a key combination
type AcceleratorRequest struct {
	Accelerator string `json:"accelerator"`
}

// Validate validates the request
func (r *AcceleratorRequest) Validate() error {
	r.Accelerator = strings.TrimSpace(r.Accelerator)
	if err := validation.Required("accelerator", r.Accelerator); err != nil {
		return err
	}
	return validation.MaxLength("accelerator", r.Accelerator, 64)
}

// OpenRecentRequest re-opens a document from the recent list
type OpenRecentRequest struct {
	Path string `json:"path"`
}

// Validate validates the request
func (r *OpenRecentRequest) Validate() error {
	if err := validation.Required("path", r.Path); err != nil {
		return err
	}
	return validation.MaxLength("path", r.Path, maxPathLength)
}
