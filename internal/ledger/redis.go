package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces ledger keys.
const DefaultRedisPrefix = "mm:ledger:"

// releaseScript deletes a claim only if the caller's token still holds it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisStore keeps records as hashes and claims as SET NX keys with a TTL.
// Claim expiry is enforced by Redis, so the now argument to Claim only
// sets the returned ExpiresAt.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore creates a ledger on an existing client.
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *RedisStore) claimKey(k Key) string {
	return s.prefix + "claim:" + pairKey(k)
}

func (s *RedisStore) recordKey(k Key) string {
	return s.prefix + "record:" + pairKey(k)
}

// pairKey length-prefixes the investor ID so IDs containing ':' cannot
// collide: ("a:b", "c") and ("a", "b:c") map to different keys.
func pairKey(k Key) string {
	return strconv.Itoa(len(k.InvestorID)) + ":" + k.InvestorID + ":" + k.PropertyID
}

func (s *RedisStore) investorKey(investorID string) string {
	return s.prefix + "investor:" + investorID
}

// Claim takes the lease for key.
func (s *RedisStore) Claim(ctx context.Context, key Key, now time.Time, ttl time.Duration) (*Claim, error) {
	token := uuid.NewString()

	ok, err := s.rdb.SetNX(ctx, s.claimKey(key), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("claiming %s/%s: %w", key.InvestorID, key.PropertyID, err)
	}
	if !ok {
		return nil, nil
	}
	return &Claim{Key: key, Token: token, ExpiresAt: now.Add(ttl)}, nil
}

// Get returns the record for key.
func (s *RedisStore) Get(ctx context.Context, key Key) (*Record, error) {
	fields, err := s.rdb.HGetAll(ctx, s.recordKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("querying record %s/%s: %w", key.InvestorID, key.PropertyID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return parseRecord(fields)
}

// Confirm writes the record and then drops the claim.
func (s *RedisStore) Confirm(ctx context.Context, c *Claim, scoreAtSend int, sentAt time.Time) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.recordKey(c.Key),
			"investor_id", c.InvestorID,
			"property_id", c.PropertyID,
			"score_at_send", scoreAtSend,
			"sent_at", sentAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.SAdd(ctx, s.investorKey(c.InvestorID), c.PropertyID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing record %s/%s: %w", c.InvestorID, c.PropertyID, err)
	}
	return s.Release(ctx, c)
}

// Release drops the claim if this holder still owns it.
func (s *RedisStore) Release(ctx context.Context, c *Claim) error {
	if err := releaseScript.Run(ctx, s.rdb, []string{s.claimKey(c.Key)}, c.Token).Err(); err != nil {
		return fmt.Errorf("releasing claim %s/%s: %w", c.InvestorID, c.PropertyID, err)
	}
	return nil
}

// List returns records matching the filter, newest first.
func (s *RedisStore) List(ctx context.Context, f Filter) ([]*Record, error) {
	keys, err := s.listKeys(ctx, f)
	if err != nil {
		return nil, err
	}

	var records []*Record
	for _, key := range keys {
		fields, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		if len(fields) == 0 {
			continue
		}
		rec, err := parseRecord(fields)
		if err != nil {
			return nil, err
		}
		if f.InvestorID != "" && rec.InvestorID != f.InvestorID {
			continue
		}
		if f.PropertyID != "" && rec.PropertyID != f.PropertyID {
			continue
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.SentAt.Equal(b.SentAt) {
			return a.SentAt.After(b.SentAt)
		}
		if a.InvestorID != b.InvestorID {
			return a.InvestorID < b.InvestorID
		}
		return a.PropertyID < b.PropertyID
	})
	return records, nil
}

func (s *RedisStore) listKeys(ctx context.Context, f Filter) ([]string, error) {
	if f.InvestorID != "" {
		if f.PropertyID != "" {
			return []string{s.recordKey(Key{InvestorID: f.InvestorID, PropertyID: f.PropertyID})}, nil
		}
		members, err := s.rdb.SMembers(ctx, s.investorKey(f.InvestorID)).Result()
		if err != nil {
			return nil, fmt.Errorf("listing records for %s: %w", f.InvestorID, err)
		}
		keys := make([]string, len(members))
		for i, propertyID := range members {
			keys[i] = s.recordKey(Key{InvestorID: f.InvestorID, PropertyID: propertyID})
		}
		return keys, nil
	}

	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.prefix+"record:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning records: %w", err)
	}
	return keys, nil
}

// ResetInvestor deletes all records for an investor.
func (s *RedisStore) ResetInvestor(ctx context.Context, investorID string) (int64, error) {
	members, err := s.rdb.SMembers(ctx, s.investorKey(investorID)).Result()
	if err != nil {
		return 0, fmt.Errorf("listing records for %s: %w", investorID, err)
	}

	keys := make([]string, 0, len(members))
	for _, propertyID := range members {
		keys = append(keys, s.recordKey(Key{InvestorID: investorID, PropertyID: propertyID}))
	}

	var deleted *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, s.investorKey(investorID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("resetting records for %s: %w", investorID, err)
	}
	if deleted == nil {
		return 0, nil
	}
	return deleted.Val(), nil
}

func parseRecord(fields map[string]string) (*Record, error) {
	score, err := strconv.Atoi(fields["score_at_send"])
	if err != nil {
		return nil, fmt.Errorf("parsing score_at_send: %w", err)
	}
	sentAt, err := time.Parse(time.RFC3339Nano, fields["sent_at"])
	if err != nil {
		return nil, fmt.Errorf("parsing sent_at: %w", err)
	}
	rec := &Record{
		InvestorID:  fields["investor_id"],
		PropertyID:  fields["property_id"],
		ScoreAtSend: score,
		SentAt:      sentAt,
	}
	if rec.InvestorID == "" || rec.PropertyID == "" {
		return nil, errors.New("record is missing its key fields")
	}
	return rec, nil
}
