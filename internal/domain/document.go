package domain

import (
	"errors"
	"fmt"
)

// Document is one retrievable unit of text with caller-supplied metadata.
// ID is unique within a collection; re-adding an ID replaces the document.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Validate checks the parts the caller controls. The tenant tag is not
// checked here: the owning collection overwrites it regardless of input.
func (d *Document) Validate() error {
	if d.ID == "" {
		return errors.New("document id is required")
	}
	if d.Text == "" {
		return fmt.Errorf("document %q: text is required", d.ID)
	}
	return nil
}

// Tenant returns the isolation tag currently set on the document.
func (d *Document) Tenant() string {
	return d.Metadata[TenantTagKey]
}
