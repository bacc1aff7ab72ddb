// Package redisstore держит присутствие участников в Redis, чтобы все
// инстансы сервиса видели один и тот же состав комнаты.
package redisstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/thereayou/roomgate/internal/models"
)

const (
	presencePrefix = "presence:"
	namesSuffix    = ":names"

	// DefaultPresenceTTL через сколько забыть комнату, в которую никто не заходил.
	DefaultPresenceTTL = 24 * time.Hour
)

// Presence хранит участников в sorted set со временем входа в качестве score
// и их имена в отдельном hash.
type Presence struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPresence(rdb *redis.Client, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &Presence{rdb: rdb, ttl: ttl}
}

func key(roomID string) string { return presencePrefix + roomID }

func namesKey(roomID string) string { return presencePrefix + roomID + namesSuffix }

// Join добавляет участника. ZADD NX оставляет исходное время входа
// при повторном подключении.
func (p *Presence) Join(ctx context.Context, roomID string, participant models.Participant) error {
	if participant.JoinedAt.IsZero() {
		participant.JoinedAt = time.Now()
	}
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddNX(ctx, key(roomID), &redis.Z{
			Score:  float64(participant.JoinedAt.UnixNano()),
			Member: participant.UID,
		})
		pipe.HSet(ctx, namesKey(roomID), participant.UID, participant.Name)
		pipe.Expire(ctx, key(roomID), p.ttl)
		pipe.Expire(ctx, namesKey(roomID), p.ttl)
		return nil
	})
	return err
}

func (p *Presence) Leave(ctx context.Context, roomID, uid string) error {
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, key(roomID), uid)
		pipe.HDel(ctx, namesKey(roomID), uid)
		return nil
	})
	return err
}

func (p *Presence) List(ctx context.Context, roomID string) ([]models.Participant, error) {
	members, err := p.rdb.ZRangeWithScores(ctx, key(roomID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	uids := make([]string, len(members))
	for i, m := range members {
		uids[i], _ = m.Member.(string)
	}
	names, err := p.rdb.HMGet(ctx, namesKey(roomID), uids...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.Participant, len(members))
	for i, m := range members {
		out[i] = models.Participant{
			UID:      uids[i],
			JoinedAt: time.Unix(0, int64(m.Score)),
		}
		if name, ok := names[i].(string); ok {
			out[i].Name = name
		}
	}
	return out, nil
}

func (p *Presence) Clear(ctx context.Context, roomID string) error {
	return p.rdb.Del(ctx, key(roomID), namesKey(roomID)).Err()
}
