package deletion

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "deletion_token:v1:"

// consumeScript deletes the token hash only when the digest matches and the
// stored expiry (unix ms) is after ARGV[2]. It returns the expiry on success
// and 0 otherwise.
var consumeScript = redis.NewScript(`
local stored = redis.call('HGET', KEYS[1], 'secret_hash')
if not stored or stored ~= ARGV[1] then
	return 0
end
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
if not expires or expires <= tonumber(ARGV[2]) then
	return 0
end
redis.call('DEL', KEYS[1])
return expires
`)

// RedisStore keeps tokens in Redis hashes that expire with the token.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed token store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(email string) string { return redisKeyPrefix + email }

// Put writes the token and sets the key to expire with it.
func (s *RedisStore) Put(ctx context.Context, token Token) error {
	key := redisKey(token.Email)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]any{
			"secret_hash": token.SecretHash,
			"expires_at":  token.ExpiresAt.UnixMilli(),
		})
		pipe.PExpireAt(ctx, key, token.ExpiresAt)
		return nil
	})
	return err
}

// Get reads the token for email.
func (s *RedisStore) Get(ctx context.Context, email string) (Token, error) {
	vals, err := s.client.HGetAll(ctx, redisKey(email)).Result()
	if err != nil {
		return Token{}, err
	}
	if len(vals) == 0 {
		return Token{}, ErrTokenNotFound
	}
	ms, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		return Token{}, err
	}
	return Token{Email: email, SecretHash: vals["secret_hash"], ExpiresAt: time.UnixMilli(ms).UTC()}, nil
}

// Consume runs the conditional delete as a single script.
func (s *RedisStore) Consume(ctx context.Context, email, secretHash string, now time.Time) (Token, error) {
	expires, err := consumeScript.Run(ctx, s.client, []string{redisKey(email)}, secretHash, now.UnixMilli()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Token{}, err
	}
	if expires == 0 {
		return Token{}, errInvalidToken
	}
	return Token{Email: email, SecretHash: secretHash, ExpiresAt: time.UnixMilli(expires).UTC()}, nil
}
