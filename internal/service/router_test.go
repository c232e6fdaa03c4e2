package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/relaychat/relayd/internal/domain/model"
	"github.com/relaychat/relayd/internal/domain/registry"
	"github.com/stretchr/testify/assert"
)

// In-memory collaborators standing in for the store, queue and bridge. The
// engine only sees the narrow port interfaces, so these cover everything the
// core needs from the outside world.

type fakeConn struct {
	id uuid.UUID

	mu     sync.Mutex
	writes [][]byte
}

func newFakeConn() *fakeConn { return &fakeConn{id: uuid.New()} }

func (f *fakeConn) ID() uuid.UUID { return f.id }

func (f *fakeConn) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), p...))
	return nil
}

func (f *fakeConn) RemoteAddr() string { return "test" }
func (f *fakeConn) Close() error       { return nil }

func (f *fakeConn) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

type fakeStore struct {
	mu      sync.Mutex
	users   map[int64]*model.User
	nextID  int64
	friends map[int64][]int64
	groups  map[int64]*model.Group
	nextGID int64
	members map[int64]map[int64]model.Role

	insertUserErr  error
	createGroupErr error
	resetCalls     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[int64]*model.User),
		friends: make(map[int64][]int64),
		groups:  make(map[int64]*model.Group),
		members: make(map[int64]map[int64]model.Role),
	}
}

func (s *fakeStore) FindUserByID(ctx context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) FindUserByIDAndSecret(ctx context.Context, id int64, secret string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.Secret != secret {
		return nil, model.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) InsertUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertUserErr != nil {
		return s.insertUserErr
	}
	s.nextID++
	u.ID = s.nextID
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateUserState(ctx context.Context, id int64, state model.UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.State = state
	}
	return nil
}

func (s *fakeStore) ResetAllOnlineToOffline(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetCalls++
	for _, u := range s.users {
		if u.State == model.StateOnline {
			u.State = model.StateOffline
		}
	}
	return nil
}

func (s *fakeStore) ListFriends(ctx context.Context, id int64) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.User
	for _, fid := range s.friends[id] {
		if u, ok := s.users[fid]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertFriendship(ctx context.Context, ownerID, friendID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friends[ownerID] = append(s.friends[ownerID], friendID)
	return nil
}

func (s *fakeStore) CreateGroup(ctx context.Context, g *model.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createGroupErr != nil {
		return s.createGroupErr
	}
	s.nextGID++
	g.ID = s.nextGID
	cp := *g
	s.groups[g.ID] = &cp
	s.members[g.ID] = make(map[int64]model.Role)
	return nil
}

func (s *fakeStore) AddMembership(ctx context.Context, userID, groupID int64, role model.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[groupID] == nil {
		s.members[groupID] = make(map[int64]model.Role)
	}
	s.members[groupID][userID] = role
	return nil
}

func (s *fakeStore) ListGroupsWithRosters(ctx context.Context, userID int64) ([]model.GroupWithMembers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.GroupWithMembers
	for gid, roster := range s.members {
		if _, in := roster[userID]; !in {
			continue
		}
		gwm := model.GroupWithMembers{Group: *s.groups[gid]}
		for uid, role := range roster {
			u := s.users[uid]
			gwm.Members = append(gwm.Members, model.GroupMember{ID: uid, Name: u.Name, State: u.State, Role: role})
		}
		out = append(out, gwm)
	}
	return out, nil
}

func (s *fakeStore) ListGroupMemberIDs(ctx context.Context, userID, groupID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for uid := range s.members[groupID] {
		if uid != userID {
			out = append(out, uid)
		}
	}
	return out, nil
}

type fakeQueue struct {
	mu       sync.Mutex
	queued   map[int64][][]byte
	enqueues int
}

func newFakeQueue() *fakeQueue { return &fakeQueue{queued: make(map[int64][][]byte)} }

func (q *fakeQueue) Enqueue(ctx context.Context, userID int64, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueues++
	q.queued[userID] = append(q.queued[userID], append([]byte(nil), payload...))
	return nil
}

func (q *fakeQueue) DrainAll(ctx context.Context, userID int64) ([][]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.queued[userID]
	delete(q.queued, userID)
	return out, nil
}

func (q *fakeQueue) pending(userID int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queued[userID])
}

type publishCall struct {
	userID  int64
	payload []byte
}

type fakeBridge struct {
	mu         sync.Mutex
	subscribed map[int64]bool
	published  []publishCall
	inbound    InboundFunc
}

func newFakeBridge() *fakeBridge { return &fakeBridge{subscribed: make(map[int64]bool)} }

func (b *fakeBridge) Subscribe(ctx context.Context, userID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed[userID] = true
	return nil
}

func (b *fakeBridge) Unsubscribe(ctx context.Context, userID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribed, userID)
	return nil
}

func (b *fakeBridge) Publish(ctx context.Context, userID int64, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, publishCall{userID, append([]byte(nil), payload...)})
	return nil
}

func (b *fakeBridge) Bind(fn InboundFunc) { b.inbound = fn }

func (b *fakeBridge) publishes() []publishCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published
}

func (b *fakeBridge) isSubscribed(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribed[userID]
}

type testEnv struct {
	router *Router
	reg    *registry.Registry
	store  *fakeStore
	queue  *fakeQueue
	bridge *fakeBridge
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	reg := registry.New()
	store := newFakeStore()
	queue := newFakeQueue()
	bridge := newFakeBridge()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testEnv{
		router: NewRouter(log, reg, store, queue, bridge),
		reg:    reg,
		store:  store,
		queue:  queue,
		bridge: bridge,
	}
}

// addUser seeds an account directly in the fake store.
func (e *testEnv) addUser(name, secret string) *model.User {
	u := &model.User{Name: name, Secret: secret, State: model.StateOffline}
	_ = e.store.InsertUser(context.Background(), u)
	return u
}

func TestRecoverIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	a := e.addUser("alice", "pw")
	b := e.addUser("bob", "pw")
	e.store.users[a.ID].State = model.StateOnline
	e.store.users[b.ID].State = model.StateOnline

	ctx := context.Background()
	assert.NoError(t, e.router.Recover(ctx))
	assert.Equal(t, model.StateOffline, e.store.users[a.ID].State)
	assert.Equal(t, model.StateOffline, e.store.users[b.ID].State)

	assert.NoError(t, e.router.Recover(ctx))
	assert.Equal(t, model.StateOffline, e.store.users[a.ID].State)
	assert.Equal(t, model.StateOffline, e.store.users[b.ID].State)
	assert.Equal(t, 2, e.store.resetCalls)
}

func TestHandleInboundLocal(t *testing.T) {
	e := newTestEnv(t)
	conn := newFakeConn()
	e.reg.Put(9, conn)

	e.router.HandleInbound(9, []byte(`{"msgid":"chat","msg":"relayed"}`))

	assert.Len(t, conn.written(), 1)
	assert.Zero(t, e.queue.enqueues)
}

func TestHandleInboundGoneOffline(t *testing.T) {
	e := newTestEnv(t)

	// The recipient logged out between the remote publish and this delivery.
	e.router.HandleInbound(9, []byte(`{"msgid":"chat","msg":"late"}`))

	assert.Equal(t, 1, e.queue.pending(9), "message is delayed, not dropped")
}
