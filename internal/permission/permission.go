// Package permission decides who may post where. The engine is
// stateless: every answer is computed from the directory and the live
// monitoring signal at call time.
package permission

import (
	"context"

	"github.com/adityavishwakarma159/CampusConnect/internal/directory"
	"github.com/adityavishwakarma159/CampusConnect/internal/models"
)

// Monitor reports whether any faculty/admin is currently present in a
// department's general group. Backed by the websocket hub: presence
// begins on subscribe and ends on unsubscribe or disconnect, so the
// signal clears itself. It is never cached and never persisted.
type Monitor interface {
	IsMonitoring(departmentID int64) bool
}

type Engine struct {
	dir directory.Directory
	mon Monitor
}

func NewEngine(dir directory.Directory, mon Monitor) *Engine {
	return &Engine{dir: dir, mon: mon}
}

// CanPost evaluates membership first, then the per-chat-type rule.
// Students lose DEPARTMENT_GROUP posting the moment a faculty/admin is
// monitoring, and regain it the moment that presence ends.
func (e *Engine) CanPost(ctx context.Context, userID int64, chatType models.ChatType, departmentID int64) bool {
	user, err := e.dir.UserByID(ctx, userID)
	if err != nil {
		return false
	}
	if user.DepartmentID != departmentID {
		return false
	}

	switch chatType {
	case models.ChatTypeOneToOne:
		// Same-department is enforced structurally at append time.
		return true
	case models.ChatTypeFacultyStudentGroup:
		return user.Role.Staff()
	case models.ChatTypeDepartmentGroup:
		if user.Role.Staff() {
			return true
		}
		if user.Role == models.RoleStudent {
			return !e.mon.IsMonitoring(departmentID)
		}
		return false
	default:
		return false
	}
}

// CanRead is department membership, independent of monitoring.
func (e *Engine) CanRead(ctx context.Context, userID, departmentID int64) bool {
	user, err := e.dir.UserByID(ctx, userID)
	if err != nil {
		return false
	}
	return user.DepartmentID == departmentID
}

// IsMonitoring is exposed so clients can show the monitoring banner.
// Recomputed on every call.
func (e *Engine) IsMonitoring(ctx context.Context, departmentID int64) bool {
	return e.mon.IsMonitoring(departmentID)
}
