package quality

import (
	"context"

	"github.com/platinummonkey/geoqc/pkg/dataset"
)

// Descriptor is the metadata shared by every rule kind
type Descriptor interface {
	ID() string
	Category() Category
	// Severity is the default severity of the rule's findings
	Severity() Severity
	Description() string
}

// Rule interface that all dataset checks must implement.
// Run must stream rows through Handle.Rows rather than buffer the dataset.
type Rule interface {
	Descriptor
	AppliesTo(h *dataset.Handle) bool
	Run(ctx context.Context, h *dataset.Handle) ([]Finding, error)
}

// WorkspaceRule checks properties that span the datasets of a workspace
type WorkspaceRule interface {
	Descriptor
	RunWorkspace(ctx context.Context, handles []*dataset.Handle) ([]Finding, error)
}
