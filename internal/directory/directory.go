// Package directory talks to the user/department directory. The chat
// service treats it as read-only: roles and department membership are
// owned elsewhere.
package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/adityavishwakarma159/CampusConnect/internal/apperr"
	"github.com/adityavishwakarma159/CampusConnect/internal/models"
)

type Directory interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UsersInDepartment(ctx context.Context, departmentID int64) ([]*models.User, error)
	DepartmentExists(ctx context.Context, departmentID int64) (bool, error)
}

// Static is an in-memory Directory used in dev mode and tests.
type Static struct {
	mu    sync.RWMutex
	users map[int64]*models.User
	depts map[int64]struct{}
}

func NewStatic() *Static {
	return &Static{users: make(map[int64]*models.User), depts: make(map[int64]struct{})}
}

func (s *Static) AddDepartment(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depts[id] = struct{}{}
}

func (s *Static) AddUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	s.depts[u.DepartmentID] = struct{}{}
}

func (s *Static) UserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFoundf("user %d", id)
	}
	cp := *u
	return &cp, nil
}

func (s *Static) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFoundf("user %s", email)
}

func (s *Static) UsersInDepartment(ctx context.Context, departmentID int64) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.depts[departmentID]; !ok {
		return nil, apperr.NotFoundf("department %d", departmentID)
	}
	var out []*models.User
	for _, u := range s.users {
		if u.DepartmentID == departmentID {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Static) DepartmentExists(ctx context.Context, departmentID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.depts[departmentID]
	return ok, nil
}
