package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adityavishwakarma159/CampusConnect/internal/apperr"
	"github.com/adityavishwakarma159/CampusConnect/internal/directory"
	"github.com/adityavishwakarma159/CampusConnect/internal/models"
	"github.com/adityavishwakarma159/CampusConnect/internal/permission"
	"github.com/adityavishwakarma159/CampusConnect/internal/store"
)

type recordedDelivery struct {
	userID  int64
	payload any
}

type recordedBroadcast struct {
	departmentID int64
	chatType     models.ChatType
	payload      any
}

type fakeRouter struct {
	mu         sync.Mutex
	deliveries []recordedDelivery
	broadcasts []recordedBroadcast
}

func (r *fakeRouter) SendToUser(userID int64, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, recordedDelivery{userID: userID, payload: payload})
}

func (r *fakeRouter) BroadcastTopic(departmentID int64, chatType models.ChatType, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, recordedBroadcast{departmentID: departmentID, chatType: chatType, payload: payload})
}

type fakeMonitor struct{ monitored map[int64]bool }

func (m *fakeMonitor) IsMonitoring(departmentID int64) bool { return m.monitored[departmentID] }

type fixture struct {
	svc    *ChatService
	router *fakeRouter
	mon    *fakeMonitor
	index  store.ConversationIndex
}

func newFixture() *fixture {
	dir := directory.NewStatic()
	dir.AddUser(&models.User{ID: 10, Name: "Asha", Email: "asha@campus.edu", Role: models.RoleStudent, DepartmentID: 1})
	dir.AddUser(&models.User{ID: 11, Name: "Ben", Email: "ben@campus.edu", Role: models.RoleStudent, DepartmentID: 1})
	dir.AddUser(&models.User{ID: 12, Name: "Chitra", Email: "chitra@campus.edu", Role: models.RoleStudent, DepartmentID: 2})
	dir.AddUser(&models.User{ID: 20, Name: "Prof. Das", Email: "das@campus.edu", Role: models.RoleFaculty, DepartmentID: 1})

	mon := &fakeMonitor{monitored: map[int64]bool{}}
	router := &fakeRouter{}
	messages := store.NewMemoryMessageStore(dir)
	index := store.NewMemoryConversationIndex()
	perms := permission.NewEngine(dir, mon)
	svc := NewChatService(messages, index, dir, perms, router, nil)
	return &fixture{svc: svc, router: router, mon: mon, index: index}
}

func unreadFor(t *testing.T, f *fixture, owner, other int64) int {
	t.Helper()
	rows, err := f.index.List(context.Background(), owner)
	require.NoError(t, err)
	for _, row := range rows {
		if row.OtherUserID == other {
			return row.UnreadCount
		}
	}
	t.Fatalf("no summary row for owner %d other %d", owner, other)
	return 0
}

func Test_SendDirect_Creates_Both_Summary_Rows(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	msg, err := f.svc.SendDirect(ctx, 10, 11, "hi", "")
	req.NoError(err)
	req.Equal(models.ChatTypeOneToOne, msg.ChatType)
	req.EqualValues(1, msg.DepartmentID)

	// receiver's unread bumps, sender's does not
	req.Equal(1, unreadFor(t, f, 11, 10))
	req.Equal(0, unreadFor(t, f, 10, 11))

	// exactly one row per side
	senderRows, err := f.index.List(ctx, 10)
	req.NoError(err)
	req.Len(senderRows, 1)
	receiverRows, err := f.index.List(ctx, 11)
	req.NoError(err)
	req.Len(receiverRows, 1)

	// delivered to receiver and echoed to sender
	req.Len(f.router.deliveries, 2)
	req.EqualValues(11, f.router.deliveries[0].userID)
	req.EqualValues(10, f.router.deliveries[1].userID)
	ev := f.router.deliveries[0].payload.(MessageEvent)
	req.Equal("message_created", ev.Event)
	req.Equal(msg.ID, ev.Message.ID)
}

type failingIndex struct {
	store.ConversationIndex
}

func (f *failingIndex) TouchPair(ctx context.Context, senderID, receiverID int64, chatType models.ChatType, messageID string) error {
	return errors.New("index unavailable")
}

func Test_SendDirect_Failed_Index_Update_Leaves_Nothing(t *testing.T) {
	req := require.New(t)
	dir := directory.NewStatic()
	dir.AddUser(&models.User{ID: 10, Name: "Asha", Email: "asha@campus.edu", Role: models.RoleStudent, DepartmentID: 1})
	dir.AddUser(&models.User{ID: 11, Name: "Ben", Email: "ben@campus.edu", Role: models.RoleStudent, DepartmentID: 1})

	router := &fakeRouter{}
	messages := store.NewMemoryMessageStore(dir)
	idx := &failingIndex{ConversationIndex: store.NewMemoryConversationIndex()}
	perms := permission.NewEngine(dir, &fakeMonitor{monitored: map[int64]bool{}})
	svc := NewChatService(messages, idx, dir, perms, router, nil)
	ctx := context.Background()

	_, err := svc.SendDirect(ctx, 10, 11, "hi", "")
	req.Error(err)

	// the failed send must not be visible anywhere
	history, err := svc.History(ctx, 10, 11)
	req.NoError(err)
	req.Empty(history)
	rows, err := idx.List(ctx, 10)
	req.NoError(err)
	req.Empty(rows)
	req.Empty(router.deliveries)

	// a retried failure accumulates nothing either
	_, err = svc.SendDirect(ctx, 10, 11, "hi", "")
	req.Error(err)
	history, err = svc.History(ctx, 10, 11)
	req.NoError(err)
	req.Empty(history)
}

func Test_SendDirect_Cross_Department_Leaves_No_State(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.SendDirect(ctx, 12, 10, "hello", "")
	req.ErrorIs(err, apperr.ErrPermissionDenied)

	history, err := f.svc.History(ctx, 10, 11)
	req.NoError(err)
	req.Empty(history)
	rows, err := f.index.List(ctx, 10)
	req.NoError(err)
	req.Empty(rows)
	req.Empty(f.router.deliveries)
}

func Test_SendDirect_Empty_Body_Is_Validation(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	_, err := f.svc.SendDirect(context.Background(), 10, 11, "   ", "")
	req.ErrorIs(err, apperr.ErrValidation)
}

func Test_MarkRead_Resets_And_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.SendDirect(ctx, 10, 11, "hi", "")
	req.NoError(err)
	req.Equal(1, unreadFor(t, f, 11, 10))

	req.NoError(f.svc.MarkRead(ctx, 11, 10))
	req.Equal(0, unreadFor(t, f, 11, 10))

	convs, err := f.svc.Conversations(ctx, 11)
	req.NoError(err)
	req.Len(convs, 1)
	req.Equal(0, convs[0].UnreadCount)
	req.Equal("hi", convs[0].LastMessage)
	req.Equal("Asha", convs[0].OtherUserName)

	// repeat is a no-op
	req.NoError(f.svc.MarkRead(ctx, 11, 10))
	req.Equal(0, unreadFor(t, f, 11, 10))
}

func Test_Repeated_Sends_Count_Individually(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.SendDirect(ctx, 10, 11, "ping", "")
		req.NoError(err)
	}
	req.Equal(3, unreadFor(t, f, 11, 10))
}

func Test_SendGroup_Broadcasts_Without_Touching_Index(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	msg, err := f.svc.SendGroup(ctx, 20, 1, models.ChatTypeDepartmentGroup, "announcement", "")
	req.NoError(err)
	req.Nil(msg.ReceiverID)

	req.Len(f.router.broadcasts, 1)
	req.EqualValues(1, f.router.broadcasts[0].departmentID)
	req.Equal(models.ChatTypeDepartmentGroup, f.router.broadcasts[0].chatType)

	rows, err := f.index.List(ctx, 20)
	req.NoError(err)
	req.Empty(rows)
}

func Test_SendGroup_Student_Blocked_While_Monitored(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.SendGroup(ctx, 10, 1, models.ChatTypeDepartmentGroup, "free speech", "")
	req.NoError(err)

	f.mon.monitored[1] = true
	_, err = f.svc.SendGroup(ctx, 10, 1, models.ChatTypeDepartmentGroup, "blocked", "")
	req.ErrorIs(err, apperr.ErrPermissionDenied)

	// faculty still posts
	_, err = f.svc.SendGroup(ctx, 20, 1, models.ChatTypeDepartmentGroup, "still here", "")
	req.NoError(err)

	f.mon.monitored[1] = false
	_, err = f.svc.SendGroup(ctx, 10, 1, models.ChatTypeDepartmentGroup, "free again", "")
	req.NoError(err)
}

func Test_SendGroup_Student_Blocked_In_Faculty_Group(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	_, err := f.svc.SendGroup(context.Background(), 10, 1, models.ChatTypeFacultyStudentGroup, "hello", "")
	req.ErrorIs(err, apperr.ErrPermissionDenied)
}

func Test_History_Symmetric_And_Cross_Department_Denied(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.SendDirect(ctx, 10, 11, "a", "")
	req.NoError(err)
	_, err = f.svc.SendDirect(ctx, 11, 10, "b", "")
	req.NoError(err)

	ab, err := f.svc.History(ctx, 10, 11)
	req.NoError(err)
	ba, err := f.svc.History(ctx, 11, 10)
	req.NoError(err)
	req.Equal(ab, ba)
	req.Len(ab, 2)

	_, err = f.svc.History(ctx, 10, 12)
	req.ErrorIs(err, apperr.ErrPermissionDenied)
}

func Test_GroupHistory_Requires_Membership(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.SendGroup(ctx, 20, 1, models.ChatTypeDepartmentGroup, "first", "")
	req.NoError(err)

	msgs, err := f.svc.GroupHistory(ctx, 10, 1, models.ChatTypeDepartmentGroup)
	req.NoError(err)
	req.Len(msgs, 1)

	_, err = f.svc.GroupHistory(ctx, 12, 1, models.ChatTypeDepartmentGroup)
	req.ErrorIs(err, apperr.ErrPermissionDenied)
}

func Test_Permissions_Reflect_Monitoring(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	perms, err := f.svc.Permissions(ctx, 10, 1, models.ChatTypeDepartmentGroup)
	req.NoError(err)
	req.True(perms.CanPost)
	req.True(perms.CanRead)
	req.False(perms.FacultyMonitoring)

	f.mon.monitored[1] = true
	perms, err = f.svc.Permissions(ctx, 10, 1, models.ChatTypeDepartmentGroup)
	req.NoError(err)
	req.False(perms.CanPost)
	req.True(perms.CanRead)
	req.True(perms.FacultyMonitoring)
}

func Test_ChatUsers_Excludes_Self_And_Other_Departments(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	users, err := f.svc.ChatUsers(context.Background(), 10)
	req.NoError(err)
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	req.ElementsMatch([]int64{11, 20}, ids)
}

// Scenario from the campus rollout: two dept-1 students exchange a
// message and reconcile unread; a dept-2 student is rejected outright.
func Test_Direct_Chat_End_To_End(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	msg, err := f.svc.SendDirect(ctx, 10, 11, "hi", "")
	req.NoError(err)
	req.Equal(models.ChatTypeOneToOne, msg.ChatType)
	req.Equal(1, unreadFor(t, f, 11, 10))

	req.NoError(f.svc.MarkRead(ctx, 11, 10))
	req.Equal(0, unreadFor(t, f, 11, 10))

	_, err = f.svc.SendDirect(ctx, 12, 10, "hey", "")
	req.ErrorIs(err, apperr.ErrPermissionDenied)
	history, err := f.svc.History(ctx, 10, 11)
	req.NoError(err)
	req.Len(history, 1)
}
