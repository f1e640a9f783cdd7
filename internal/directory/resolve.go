package directory

import (
	"context"
	"strconv"

	"github.com/adityavishwakarma159/CampusConnect/internal/models"
)

// ResolveSubject maps a JWT subject to a directory user. Numeric
// subjects are user ids; anything else is treated as an email.
func ResolveSubject(ctx context.Context, dir Directory, subject string) (*models.User, error) {
	if id, err := strconv.ParseInt(subject, 10, 64); err == nil {
		return dir.UserByID(ctx, id)
	}
	return dir.UserByEmail(ctx, subject)
}
