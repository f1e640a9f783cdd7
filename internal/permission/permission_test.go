package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adityavishwakarma159/CampusConnect/internal/directory"
	"github.com/adityavishwakarma159/CampusConnect/internal/models"
)

type fakeMonitor struct {
	monitored map[int64]bool
}

func (m *fakeMonitor) IsMonitoring(departmentID int64) bool { return m.monitored[departmentID] }

func newEngine(mon *fakeMonitor) *Engine {
	dir := directory.NewStatic()
	dir.AddUser(&models.User{ID: 10, Role: models.RoleStudent, DepartmentID: 1})
	dir.AddUser(&models.User{ID: 20, Role: models.RoleFaculty, DepartmentID: 1})
	dir.AddUser(&models.User{ID: 30, Role: models.RoleAdmin, DepartmentID: 1})
	dir.AddUser(&models.User{ID: 12, Role: models.RoleStudent, DepartmentID: 2})
	return NewEngine(dir, mon)
}

func Test_CanPost_Requires_Department_Membership(t *testing.T) {
	req := require.New(t)
	e := newEngine(&fakeMonitor{monitored: map[int64]bool{}})
	ctx := context.Background()

	req.False(e.CanPost(ctx, 12, models.ChatTypeOneToOne, 1))
	req.False(e.CanPost(ctx, 12, models.ChatTypeDepartmentGroup, 1))
	req.False(e.CanPost(ctx, 99, models.ChatTypeOneToOne, 1))
}

func Test_CanPost_OneToOne_Always_Allowed_For_Members(t *testing.T) {
	req := require.New(t)
	e := newEngine(&fakeMonitor{monitored: map[int64]bool{1: true}})

	req.True(e.CanPost(context.Background(), 10, models.ChatTypeOneToOne, 1))
}

func Test_CanPost_FacultyStudentGroup_Staff_Only(t *testing.T) {
	req := require.New(t)
	e := newEngine(&fakeMonitor{monitored: map[int64]bool{}})
	ctx := context.Background()

	req.False(e.CanPost(ctx, 10, models.ChatTypeFacultyStudentGroup, 1))
	req.True(e.CanPost(ctx, 20, models.ChatTypeFacultyStudentGroup, 1))
	req.True(e.CanPost(ctx, 30, models.ChatTypeFacultyStudentGroup, 1))
}

func Test_CanPost_DepartmentGroup_Student_Gated_By_Monitoring(t *testing.T) {
	req := require.New(t)
	mon := &fakeMonitor{monitored: map[int64]bool{}}
	e := newEngine(mon)
	ctx := context.Background()

	// no faculty present: student may post
	req.True(e.CanPost(ctx, 10, models.ChatTypeDepartmentGroup, 1))

	// faculty joins: student posting revoked immediately
	mon.monitored[1] = true
	req.False(e.CanPost(ctx, 10, models.ChatTypeDepartmentGroup, 1))
	// staff unaffected
	req.True(e.CanPost(ctx, 20, models.ChatTypeDepartmentGroup, 1))
	req.True(e.CanPost(ctx, 30, models.ChatTypeDepartmentGroup, 1))

	// faculty leaves: student posting restored
	mon.monitored[1] = false
	req.True(e.CanPost(ctx, 10, models.ChatTypeDepartmentGroup, 1))
}

func Test_CanRead_Is_Membership_Independent_Of_Monitoring(t *testing.T) {
	req := require.New(t)
	e := newEngine(&fakeMonitor{monitored: map[int64]bool{1: true}})
	ctx := context.Background()

	req.True(e.CanRead(ctx, 10, 1))
	req.False(e.CanRead(ctx, 12, 1))
	req.False(e.CanRead(ctx, 99, 1))
}
