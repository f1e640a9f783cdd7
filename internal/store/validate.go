package store

import (
	"context"

	"github.com/adityavishwakarma159/CampusConnect/internal/apperr"
	"github.com/adityavishwakarma159/CampusConnect/internal/directory"
	"github.com/adityavishwakarma159/CampusConnect/internal/models"
)

// validateDraft is the structural gate on Append, shared by both
// implementations: identities must resolve and a direct send must stay
// inside one department.
func validateDraft(ctx context.Context, dir directory.Directory, draft MessageDraft) error {
	sender, err := dir.UserByID(ctx, draft.SenderID)
	if err != nil {
		return err
	}
	if ok, err := dir.DepartmentExists(ctx, draft.DepartmentID); err != nil {
		return err
	} else if !ok {
		return apperr.NotFoundf("department %d", draft.DepartmentID)
	}
	if draft.ChatType == models.ChatTypeOneToOne {
		if draft.ReceiverID == nil {
			return apperr.Validationf("one-to-one message needs a receiver")
		}
		receiver, err := dir.UserByID(ctx, *draft.ReceiverID)
		if err != nil {
			return err
		}
		if sender.DepartmentID != receiver.DepartmentID {
			return apperr.PermissionDeniedf("cannot chat across departments")
		}
		return nil
	}
	if draft.ReceiverID != nil {
		return apperr.Validationf("group message must not name a receiver")
	}
	return nil
}
