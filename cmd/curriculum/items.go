package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/curriculum"
)

var errAmbiguousItem = errors.New("item reference matches more than one item")

// resolveItem finds the item a reference names. A reference is a full UUID,
// a 1-based queue position, or a unique ID prefix as shown by status.
func resolveItem(snap curriculum.Snapshot, ref string) (uuid.UUID, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return uuid.Nil, fmt.Errorf("%w: empty reference", curriculum.ErrItemNotFound)
	}
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}
	if pos, err := strconv.Atoi(ref); err == nil {
		if pos < 1 || pos > len(snap.Items) {
			return uuid.Nil, fmt.Errorf("%w: position %d", curriculum.ErrItemNotFound, pos)
		}
		return snap.Items[pos-1].ID, nil
	}

	match := uuid.Nil
	for _, item := range snap.Items {
		if !strings.HasPrefix(item.ID.String(), strings.ToLower(ref)) {
			continue
		}
		if match != uuid.Nil {
			return uuid.Nil, fmt.Errorf("%w: %s", errAmbiguousItem, ref)
		}
		match = item.ID
	}
	if match == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s", curriculum.ErrItemNotFound, ref)
	}
	return match, nil
}
