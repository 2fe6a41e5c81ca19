package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"quiz-duel-service/internal/domain"
)

// rankScale separates rating from registration order inside one sorted-set score:
// score = rating*rankScale + (rankScale-1-seq). Equal ratings then rank earlier
// registrations first under ZREVRANGE.
const rankScale = 1_000_000_000

// RatingStore keeps participant records in Redis.
// Records live in a hash per participant: HSET duel:player:{id} name {name} rating {rating} seq {seq}
// The leaderboard is a sorted set:        ZADD duel:leaderboard {score} {id}
type RatingStore struct {
	client *redis.Client
}

func NewRatingStore(client *redis.Client) *RatingStore {
	return &RatingStore{client: client}
}

func (s *RatingStore) EnsureRegistered(ctx context.Context, participantID, displayName string) (bool, domain.Player, error) {
	key := playerKey(participantID)
	created, err := s.client.HSetNX(ctx, key, "rating", domain.DefaultRating).Result()
	if err != nil {
		return false, domain.Player{}, fmt.Errorf("register player: %w", err)
	}
	if !created {
		player, err := s.player(ctx, participantID)
		return false, player, err
	}

	seq, err := s.client.Incr(ctx, seqKey).Result()
	if err != nil {
		return false, domain.Player{}, fmt.Errorf("player sequence: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "name", displayName, "seq", seq)
		pipe.ZAdd(ctx, leaderboardKey, redis.Z{Score: rankScore(domain.DefaultRating, seq), Member: participantID})
		return nil
	})
	if err != nil {
		return false, domain.Player{}, fmt.Errorf("register player: %w", err)
	}
	return true, domain.Player{ID: participantID, DisplayName: displayName, Rating: domain.DefaultRating}, nil
}

// AdjustRating updates the record and the leaderboard in one MULTI block.
func (s *RatingStore) AdjustRating(ctx context.Context, participantID string, delta int) error {
	key := playerKey(participantID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("adjust rating: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotRegistered
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, "rating", int64(delta))
		pipe.ZIncrBy(ctx, leaderboardKey, float64(delta)*rankScale, participantID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("adjust rating: %w", err)
	}
	return nil
}

func (s *RatingStore) TopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := s.client.ZRevRange(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, playerKey(id), "name", "rating")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(ids))
	for i, id := range ids {
		vals := cmds[i].Val()
		name, _ := vals[0].(string)
		ratingStr, _ := vals[1].(string)
		rating, err := strconv.Atoi(ratingStr)
		if err != nil {
			return nil, fmt.Errorf("leaderboard: bad rating for %s: %w", id, err)
		}
		entries = append(entries, domain.LeaderboardEntry{
			Rank:        i + 1,
			PlayerID:    id,
			DisplayName: name,
			Rating:      rating,
		})
	}
	return entries, nil
}

func (s *RatingStore) GetRating(ctx context.Context, participantID string) (int, error) {
	rating, err := s.client.HGet(ctx, playerKey(participantID), "rating").Int()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrNotRegistered
	}
	if err != nil {
		return 0, fmt.Errorf("get rating: %w", err)
	}
	return rating, nil
}

func (s *RatingStore) player(ctx context.Context, participantID string) (domain.Player, error) {
	vals, err := s.client.HMGet(ctx, playerKey(participantID), "name", "rating").Result()
	if err != nil {
		return domain.Player{}, fmt.Errorf("load player: %w", err)
	}
	name, _ := vals[0].(string)
	ratingStr, _ := vals[1].(string)
	rating, err := strconv.Atoi(ratingStr)
	if err != nil {
		return domain.Player{}, fmt.Errorf("load player: bad rating: %w", err)
	}
	return domain.Player{ID: participantID, DisplayName: name, Rating: rating}, nil
}

const (
	seqKey         = "duel:players:seq"
	leaderboardKey = "duel:leaderboard"
)

func playerKey(participantID string) string {
	return "duel:player:" + participantID
}

func rankScore(rating int, seq int64) float64 {
	return float64(rating)*rankScale + float64(rankScale-1-seq)
}
