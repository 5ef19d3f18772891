package counters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/pulsecards/internal/repos/counters"
	"github.com/redis/go-redis/v9"
)

var _ counters.Store = (*store)(nil)

// balanceTTL bounds how long a mirrored balance lives without a refresh.
const balanceTTL = 15 * time.Minute

// setBalance writes the hash only when it carries a newer version than the
// stored one. KEYS[1] balance key; ARGV balance, version, updated_at, ttl ms.
var setBalance = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'balance', ARGV[1], 'version', ARGV[2], 'updated_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

type store struct {
	rdb redis.UniversalClient
}

func New(rdb redis.UniversalClient) *store {
	return &store{rdb: rdb}
}

func balanceKey(userID string) string { return "credits:balance:" + userID }
func codeKey(userID string) string    { return "referral:code:" + userID }
func ownerKey(code string) string     { return "referral:owner:" + code }

func dailyKey(key string, day time.Time) string {
	return "daily:" + key + ":" + day.UTC().Format(time.DateOnly)
}

func (s *store) GetBalance(ctx context.Context, userID string) (counters.CachedBalance, error) {
	res := s.rdb.HGetAll(ctx, balanceKey(userID))

	err := res.Err()
	if err != nil {
		return counters.CachedBalance{}, fmt.Errorf("hgetall: %w", err)
	}

	if len(res.Val()) == 0 {
		return counters.CachedBalance{}, counters.ErrMiss
	}

	var b counters.CachedBalance

	err = res.Scan(&b)
	if err != nil {
		return counters.CachedBalance{}, fmt.Errorf("scan balance: %w", err)
	}

	return b, nil
}

func (s *store) SetBalance(ctx context.Context, userID string, b counters.CachedBalance) (bool, error) {
	stored, err := setBalance.Run(ctx, s.rdb, []string{balanceKey(userID)},
		b.Credits, b.Version, time.Now().UnixMilli(), balanceTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("set balance: %w", err)
	}

	return stored == 1, nil
}

func (s *store) DeleteBalance(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, balanceKey(id))
	}

	err := s.rdb.Del(ctx, keys...).Err()
	if err != nil {
		return fmt.Errorf("del balance: %w", err)
	}

	return nil
}

func (s *store) ReferralCode(ctx context.Context, userID string) (string, error) {
	return s.getString(ctx, codeKey(userID))
}

func (s *store) ReferrerByCode(ctx context.Context, code string) (string, error) {
	return s.getString(ctx, ownerKey(code))
}

func (s *store) getString(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", counters.ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}

	return v, nil
}

func (s *store) SetReferralCode(ctx context.Context, userID, code string) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, codeKey(userID), code, 0)
		p.Set(ctx, ownerKey(code), userID, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set referral code: %w", err)
	}

	return nil
}

func (s *store) IncrDaily(ctx context.Context, key string, day time.Time) (int64, error) {
	k := dailyKey(key, day)

	var incr *redis.IntCmd

	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.ExpireAt(ctx, k, nextMidnight(day))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("incr daily: %w", err)
	}

	return incr.Val(), nil
}

func (s *store) DecrDaily(ctx context.Context, key string, day time.Time) error {
	err := s.rdb.Decr(ctx, dailyKey(key, day)).Err()
	if err != nil {
		return fmt.Errorf("decr daily: %w", err)
	}

	return nil
}

func nextMidnight(day time.Time) time.Time {
	d := day.UTC()
	return time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, time.UTC)
}
