// Package memstore хранит пользователей, комнаты и заявки в памяти процесса.
// Используется в режиме storage=memory и в тестах.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thereayou/roomgate/internal/models"
	"github.com/thereayou/roomgate/pkg/apperr"
)

type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*models.User
	rooms    map[string]*models.Room
	requests map[uuid.UUID]*models.JoinRequest
	members  map[string]map[string]models.RoomMember
	// last время последней созданной заявки, CreatedAt строго возрастает
	last time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]*models.User),
		rooms:    make(map[string]*models.Room),
		requests: make(map[uuid.UUID]*models.JoinRequest),
		members:  make(map[string]map[string]models.RoomMember),
	}
}

// --- users ---

func (s *Store) SaveUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) || strings.EqualFold(u.Username, user.Username) {
			return apperr.ErrAlreadyExists
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) UpdateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return apperr.ErrUserNotFound
	}
	user.UpdatedAt = time.Now()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.ErrUserNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[uid]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.ErrUserNotFound
}

func (s *Store) SearchUsersByUsername(_ context.Context, query string, limit int) ([]models.User, error) {
	query = strings.ToLower(query)

	s.mu.RLock()
	var found []models.User
	for _, u := range s.users {
		if strings.Contains(strings.ToLower(u.Username), query) {
			found = append(found, *u)
		}
	}
	s.mu.RUnlock()

	sort.Slice(found, func(i, j int) bool { return found[i].Username < found[j].Username })
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (s *Store) UpdateLastSeen(_ context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return apperr.ErrUserNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return apperr.ErrUserNotFound
	}
	u.LastSeenAt = time.Now()
	return nil
}

// --- rooms ---

func (s *Store) InsertRoom(_ context.Context, room *models.Room) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.Code]; ok {
		return false, nil
	}
	cp := *room
	s.rooms[room.Code] = &cp
	return true, nil
}

func (s *Store) GetRoom(_ context.Context, code string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[code]
	if !ok {
		return nil, apperr.ErrRoomNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) UpsertCreator(_ context.Context, code, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if r, ok := s.rooms[code]; ok {
		r.CreatorID = userID
		r.UpdatedAt = now
		return nil
	}
	s.rooms[code] = &models.Room{Code: code, CreatorID: userID, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (s *Store) SwapCreator(_ context.Context, code, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return false, apperr.ErrRoomNotFound
	}
	if r.CreatorID != from {
		return false, nil
	}
	now := time.Now()
	r.CreatorID = to
	r.UpdatedAt = now
	s.addMemberLocked(code, from, to, now)
	return true, nil
}

func (s *Store) DeleteRoom(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[code]; !ok {
		return apperr.ErrRoomNotFound
	}
	delete(s.rooms, code)
	delete(s.members, code)
	for id, req := range s.requests {
		if req.RoomCode == code {
			delete(s.requests, id)
		}
	}
	return nil
}

func (s *Store) IsMember(_ context.Context, code, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.members[code][userID]
	return ok, nil
}

func (s *Store) addMemberLocked(code, userID, by string, at time.Time) {
	if _, ok := s.rooms[code]; !ok {
		return
	}
	room, ok := s.members[code]
	if !ok {
		room = make(map[string]models.RoomMember)
		s.members[code] = room
	}
	if _, ok := room[userID]; ok {
		return
	}
	room[userID] = models.RoomMember{RoomCode: code, UserID: userID, AdmittedBy: by, AdmittedAt: at}
}

// --- join requests ---

func (s *Store) CreatePending(_ context.Context, req *models.JoinRequest) (*models.JoinRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[req.RoomCode]; !ok {
		return nil, false, apperr.ErrRoomNotFound
	}
	for _, existing := range s.requests {
		if existing.RoomCode == req.RoomCode && existing.UserID == req.UserID && existing.IsPending() {
			cp := *existing
			return &cp, false, nil
		}
	}

	cp := *req
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	if !cp.CreatedAt.After(s.last) {
		cp.CreatedAt = s.last.Add(time.Nanosecond)
	}
	s.last = cp.CreatedAt
	cp.Status = models.JoinRequestPending
	s.requests[cp.ID] = &cp

	out := cp
	return &out, true, nil
}

func (s *Store) GetRequest(_ context.Context, id uuid.UUID) (*models.JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, apperr.ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ResolveRequest(_ context.Context, id uuid.UUID, status models.JoinRequestStatus, reason, by string, at time.Time) (*models.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, apperr.ErrRequestNotFound
	}
	if !r.IsPending() {
		return nil, apperr.ErrAlreadyResolved
	}
	r.Status = status
	r.Reason = reason
	r.ResolvedBy = by
	resolvedAt := at
	r.ResolvedAt = &resolvedAt
	if status == models.JoinRequestApproved {
		s.addMemberLocked(r.RoomCode, r.UserID, by, at)
	}

	cp := *r
	return &cp, nil
}

func (s *Store) ListPending(_ context.Context, code string) ([]models.JoinRequest, error) {
	return s.pending(func(r *models.JoinRequest) bool { return r.RoomCode == code }), nil
}

func (s *Store) ListPendingBefore(_ context.Context, before time.Time) ([]models.JoinRequest, error) {
	return s.pending(func(r *models.JoinRequest) bool { return r.CreatedAt.Before(before) }), nil
}

func (s *Store) pending(match func(*models.JoinRequest) bool) []models.JoinRequest {
	s.mu.RLock()
	var out []models.JoinRequest
	for _, r := range s.requests {
		if r.IsPending() && match(r) {
			out = append(out, *r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) DeleteRequest(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[id]; !ok {
		return apperr.ErrRequestNotFound
	}
	delete(s.requests, id)
	return nil
}
