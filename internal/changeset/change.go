package changeset

import (
	"time"

	"github.com/google/uuid"
)

// Operation is the kind of file change a Change proposes.
type Operation string

const (
	OpCreate Operation = "create"
	OpModify Operation = "modify"
	OpDelete Operation = "delete"
)

// ValidationStatus is the validator's per-change verdict.
type ValidationStatus string

const (
	StatusValid   ValidationStatus = "valid"
	StatusInvalid ValidationStatus = "invalid"
	StatusWarning ValidationStatus = "warning"
)

// Change is one proposed file operation inside a request's change-set.
// It is created by generation, mutated only by the validator, and
// immutable afterwards. Optional content sides are pointers so a
// missing side is distinguishable from an empty file.
type Change struct {
	ID              string
	RequestID       string
	Path            string
	Op              Operation
	OriginalContent *string
	NewContent      *string
	Summary         string

	ValidationStatus  ValidationStatus
	ValidationMessage string

	CreatedAt time.Time
}

// NewCreate builds a create-operation change.
func NewCreate(requestID, path, content, summary string) *Change {
	c := newChange(requestID, path, OpCreate, summary)
	c.NewContent = &content
	return c
}

// NewModify builds a modify-operation change carrying both sides.
func NewModify(requestID, path, original, content, summary string) *Change {
	c := newChange(requestID, path, OpModify, summary)
	c.OriginalContent = &original
	c.NewContent = &content
	return c
}

// NewDelete builds a delete-operation change carrying the original.
func NewDelete(requestID, path, original, summary string) *Change {
	c := newChange(requestID, path, OpDelete, summary)
	c.OriginalContent = &original
	return c
}

func newChange(requestID, path string, op Operation, summary string) *Change {
	return &Change{
		ID:               uuid.NewString(),
		RequestID:        requestID,
		Path:             path,
		Op:               op,
		Summary:          summary,
		ValidationStatus: StatusValid,
		CreatedAt:        time.Now(),
	}
}

// Original returns the original content, or "" when absent.
func (c *Change) Original() string {
	if c.OriginalContent == nil {
		return ""
	}
	return *c.OriginalContent
}

// Proposed returns the proposed content, or "" when absent.
func (c *Change) Proposed() string {
	if c.NewContent == nil {
		return ""
	}
	return *c.NewContent
}

func (c *Change) setStatus(status ValidationStatus, message string) {
	c.ValidationStatus = status
	c.ValidationMessage = message
}

// IsInvalid reports whether the validator rejected the change.
func (c *Change) IsInvalid() bool {
	return c.ValidationStatus == StatusInvalid
}
