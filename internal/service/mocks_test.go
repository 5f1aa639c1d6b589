package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"call-service/internal/client"
	"call-service/internal/model"
	"call-service/internal/ws"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := db.AutoMigrate(
		&model.Call{},
		&model.Friendship{},
		&model.Subscription{},
		&model.UserAvailability{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return db
}

// fakeGateway records deliveries per user. Only online users are
// reachable, mirroring the hub's best-effort contract.
type fakeGateway struct {
	mu     sync.Mutex
	online map[uuid.UUID]bool
	events map[uuid.UUID][]ws.Event
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		online: make(map[uuid.UUID]bool),
		events: make(map[uuid.UUID][]ws.Event),
	}
}

func (g *fakeGateway) setOnline(ids ...uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		g.online[id] = true
	}
}

func (g *fakeGateway) SendToUser(userID uuid.UUID, event ws.Event) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.online[userID] {
		return false
	}
	g.events[userID] = append(g.events[userID], event)
	return true
}

func (g *fakeGateway) IsOnline(userID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online[userID]
}

func (g *fakeGateway) OnlineUsers() []uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	users := make([]uuid.UUID, 0, len(g.online))
	for id, on := range g.online {
		if on {
			users = append(users, id)
		}
	}
	return users
}

func (g *fakeGateway) eventsFor(userID uuid.UUID) []ws.Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ws.Event(nil), g.events[userID]...)
}

func (g *fakeGateway) eventTypesFor(userID uuid.UUID) []string {
	types := []string{}
	for _, event := range g.eventsFor(userID) {
		types = append(types, event.Type)
	}
	return types
}

// fakeUserClient serves display info from an in-memory map.
type fakeUserClient struct {
	mu      sync.Mutex
	infos   map[string]*client.UserInfo
	failAll bool
}

func newFakeUserClient() *fakeUserClient {
	return &fakeUserClient{infos: make(map[string]*client.UserInfo)}
}

func (f *fakeUserClient) add(id uuid.UUID, name, role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos[id.String()] = &client.UserInfo{
		UserID:   id.String(),
		FullName: name,
		Role:     role,
	}
}

func (f *fakeUserClient) ValidateToken(ctx context.Context, token string) (*client.TokenValidationResponse, error) {
	return nil, errors.New("not supported in tests")
}

func (f *fakeUserClient) GetUserInfo(ctx context.Context, userID, token string) (*client.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("user service unavailable")
	}
	info, ok := f.infos[userID]
	if !ok {
		return nil, errors.New("user not found")
	}
	return info, nil
}

// fakeMedia records provider-side room operations.
type fakeMedia struct {
	mu      sync.Mutex
	created []string
	deleted []string
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{}
}

func (m *fakeMedia) CreateRoom(ctx context.Context, roomName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, roomName)
	return nil
}

func (m *fakeMedia) DeleteRoom(ctx context.Context, roomName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, roomName)
}

func (m *fakeMedia) JoinToken(roomName, identity, displayName string) (string, error) {
	return "media-token-" + identity, nil
}

func (m *fakeMedia) WSUrl() string {
	return "wss://media.test"
}

func (m *fakeMedia) createdRooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.created...)
}

func (m *fakeMedia) deletedRooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}
