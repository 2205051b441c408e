package domain

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrEmptyOwnerID     = errors.New("workspace owner ID cannot be empty")
	ErrEmptyWorkspaceID = errors.New("workspace ID cannot be empty")
)

// WorkspaceKey scopes a curriculum queue to one owner's workspace.
// Each key maps to exactly one queue, its circuit state and its run state.
type WorkspaceKey struct {
	OwnerID     uuid.UUID `json:"owner_id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
}

// Validate checks that both halves of the key are set.
func (k WorkspaceKey) Validate() error {
	if k.OwnerID == uuid.Nil {
		return ErrEmptyOwnerID
	}
	if k.WorkspaceID == uuid.Nil {
		return ErrEmptyWorkspaceID
	}
	return nil
}

func (k WorkspaceKey) String() string {
	return k.OwnerID.String() + "/" + k.WorkspaceID.String()
}
