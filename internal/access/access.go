package access

import "github.com/google/uuid"

// Caller identifies the authenticated principal asking for a record.
type Caller struct {
	ID      uuid.UUID
	IsAdmin bool
}

// CanView reports whether the caller may read a record given its owner and
// visibility attributes. Pure function; the asset and job read paths both
// evaluate visibility through it.
//
// Visibility is orthogonal to ownership: is_public broadens access to
// everyone, visible_to grants access to an explicit allow-list, and neither
// transfers ownership.
func CanView(ownerID uuid.UUID, isPublic bool, visibleTo []uuid.UUID, caller Caller) bool {
	if caller.IsAdmin {
		return true
	}
	if caller.ID == ownerID {
		return true
	}
	if isPublic {
		return true
	}
	for _, id := range visibleTo {
		if id == caller.ID {
			return true
		}
	}
	return false
}

// CanModify reports whether the caller may mutate a record (notes, finalize,
// terminate, delete-as-owner). Only the owner and admins qualify.
func CanModify(ownerID uuid.UUID, caller Caller) bool {
	return caller.IsAdmin || caller.ID == ownerID
}
