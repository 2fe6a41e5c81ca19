package redis

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
)

// opTimeout bounds each Redis call; the registry is used under the duel service lock.
const opTimeout = 500 * time.Millisecond

// Registry is an app.DuelRegistry that claims participants in Redis so that
// instances sharing one Redis never put the same participant in two duels.
// Notes:
//   - Sessions stay in the embedded in-process registry; the state machine is
//     not shared across instances.
//   - Keys: duel:active:{duelID} -> "p1,p2" and duel:participant:{id} -> duelID.
//     Both carry the TTL, refreshed on every round, so a crashed instance
//     releases its participants once the TTL passes.
//   - Redis failures are logged and the registry falls back to local state.
type Registry struct {
	*memory.Registry
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRegistry(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		Registry: memory.NewRegistry(),
		client:   client,
		ttl:      ttl,
		logger:   logger,
	}
}

// claimScript sets the duel key and every participant key, or nothing if any
// participant key is already held.
// KEYS[1] duel key, KEYS[2..] participant keys; ARGV: duelID, players, ttl ms.
var claimScript = redis.NewScript(`
for i = 2, #KEYS do
	if redis.call("EXISTS", KEYS[i]) == 1 then
		return 0
	end
end
local ttl = tonumber(ARGV[3])
for i = 1, #KEYS do
	local value = ARGV[1]
	if i == 1 then
		value = ARGV[2]
	end
	if ttl > 0 then
		redis.call("SET", KEYS[i], value, "PX", ARGV[3])
	else
		redis.call("SET", KEYS[i], value)
	end
end
return 1
`)

// releaseScript deletes the duel key and the participant keys still owned by ARGV[1].
var releaseScript = redis.NewScript(`
redis.call("DEL", KEYS[1])
for i = 2, #KEYS do
	if redis.call("GET", KEYS[i]) == ARGV[1] then
		redis.call("DEL", KEYS[i])
	end
end
return 1
`)

func (r *Registry) Create(session *app.Session) error {
	players := session.Players()
	for _, p := range players {
		if r.Registry.Busy(p.ID) {
			return domain.ErrParticipantBusy
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	claimed, err := claimScript.Run(ctx, r.client, r.keys(session),
		session.ID(), players[0].ID+","+players[1].ID, strconv.FormatInt(r.ttl.Milliseconds(), 10)).Int()
	switch {
	case err != nil:
		r.logger.Warn("redis claim failed", "duel", session.ID(), "error", err)
	case claimed == 0:
		return domain.ErrParticipantBusy
	}

	if err := r.Registry.Create(session); err != nil {
		if claimed == 1 {
			r.release(session)
		}
		return err
	}
	return nil
}

// Busy reports participants dueling here or on any instance sharing the Redis.
func (r *Registry) Busy(participantID string) bool {
	if r.Registry.Busy(participantID) {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	n, err := r.client.Exists(ctx, participantKey(participantID)).Result()
	if err != nil {
		r.logger.Warn("redis busy check failed", "participant", participantID, "error", err)
		return false
	}
	return n > 0
}

// Touch extends the duel's claims by another TTL.
func (r *Registry) Touch(duelID string) {
	session, ok := r.Registry.Get(duelID)
	if !ok || r.ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range r.keys(session) {
			pipe.PExpire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("redis touch failed", "duel", duelID, "error", err)
	}
}

func (r *Registry) Remove(duelID string) {
	session, ok := r.Registry.Get(duelID)
	r.Registry.Remove(duelID)
	if !ok {
		return
	}
	r.release(session)
}

func (r *Registry) release(session *app.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := releaseScript.Run(ctx, r.client, r.keys(session), session.ID()).Err(); err != nil {
		r.logger.Warn("redis release failed", "duel", session.ID(), "error", err)
	}
}

func (r *Registry) keys(session *app.Session) []string {
	players := session.Players()
	return []string{duelKey(session.ID()), participantKey(players[0].ID), participantKey(players[1].ID)}
}

func duelKey(duelID string) string {
	return "duel:active:" + duelID
}

func participantKey(participantID string) string {
	return "duel:participant:" + participantID
}
