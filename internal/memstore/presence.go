package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/thereayou/roomgate/internal/models"
)

// Presence хранит живых участников комнат в памяти.
type Presence struct {
	mu    sync.RWMutex
	rooms map[string]map[string]models.Participant
}

func NewPresence() *Presence {
	return &Presence{rooms: make(map[string]map[string]models.Participant)}
}

// Join не сдвигает время входа при повторном подключении.
func (p *Presence) Join(_ context.Context, roomID string, participant models.Participant) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	room, ok := p.rooms[roomID]
	if !ok {
		room = make(map[string]models.Participant)
		p.rooms[roomID] = room
	}
	if existing, ok := room[participant.UID]; ok {
		participant.JoinedAt = existing.JoinedAt
	}
	room[participant.UID] = participant
	return nil
}

func (p *Presence) Leave(_ context.Context, roomID, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	room, ok := p.rooms[roomID]
	if !ok {
		return nil
	}
	delete(room, uid)
	if len(room) == 0 {
		delete(p.rooms, roomID)
	}
	return nil
}

// List возвращает участников в порядке входа.
func (p *Presence) List(_ context.Context, roomID string) ([]models.Participant, error) {
	p.mu.RLock()
	out := make([]models.Participant, 0, len(p.rooms[roomID]))
	for _, participant := range p.rooms[roomID] {
		out = append(out, participant)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UID < out[j].UID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (p *Presence) Clear(_ context.Context, roomID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rooms, roomID)
	return nil
}
