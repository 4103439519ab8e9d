package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/postapi/postapi/config"
)

func init() {
	PasswordCost = bcrypt.MinCost
	config.Set(config.AppConfig{JWTSecret: "utils-test-secret", TokenTTLHours: 2})
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestTokenRoundTrip(t *testing.T) {
	assert.Equal(t, 2*time.Hour, TokenTTL())

	token, err := GenerateToken(42, "alice", "user", time.Hour)
	require.NoError(t, err)
	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.NotEmpty(t, claims.ID)

	other, err := GenerateToken(42, "alice", "user", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)

	expired, err := GenerateToken(42, "alice", "user", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)

	_, err = ParseToken(token + "x")
	assert.Error(t, err)
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{UserID: 1, Username: "alice", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("utils-test-secret"))
	require.NoError(t, err)
	_, err = ParseToken(signed)
	assert.Error(t, err)

	zero, err := GenerateToken(0, "nobody", "user", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(zero)
	assert.Error(t, err)
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
	assert.False(t, CheckPassword("", "correct horse"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "<b>bold</b> text", Sanitize("  <b>bold</b> text<script>alert(1)</script> "))
	assert.Equal(t, "Tom & Jerry", PlainText("<i>Tom &amp; Jerry</i>"))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []uint{3, 1, 2}, Unique([]uint{3, 1, 3, 2, 1}))
	assert.Empty(t, Unique([]string{}))
}

func TestRedisCache(t *testing.T) {
	mr, client := newMiniRedis(t)
	ctx := context.Background()

	var nilCache *RedisCache
	var out []string
	assert.False(t, nilCache.GetJSON(ctx, "k", &out))
	nilCache.SetJSON(ctx, "k", []string{"a"})
	nilCache.Invalidate(ctx)
	assert.Nil(t, NewRedisCache(nil, "p:", time.Minute))

	cache := NewRedisCache(client, "tiers:", time.Minute)
	assert.False(t, cache.GetJSON(ctx, "in_use", &out))
	cache.SetJSON(ctx, "in_use", []string{"gold", "silver"})
	cache.SetJSON(ctx, "other", []string{"x"})
	require.True(t, mr.Exists("tiers:in_use"))
	require.NoError(t, client.Set(ctx, "unrelated", "keep", 0).Err())

	require.True(t, cache.GetJSON(ctx, "in_use", &out))
	assert.Equal(t, []string{"gold", "silver"}, out)

	cache.Invalidate(ctx)
	assert.False(t, mr.Exists("tiers:in_use"))
	assert.False(t, mr.Exists("tiers:other"))
	assert.True(t, mr.Exists("unrelated"))
}

func TestRevokeTokenFallsBackToMemory(t *testing.T) {
	SetRedis(nil)
	ctx := context.Background()

	RevokeToken(ctx, "memory-token", time.Now().Add(time.Hour))
	assert.True(t, IsTokenRevoked(ctx, "memory-token"))
	assert.False(t, IsTokenRevoked(ctx, "another-token"))

	RevokeToken(ctx, "already-expired", time.Now().Add(-time.Minute))
	assert.False(t, IsTokenRevoked(ctx, "already-expired"))
}

func TestRevokeTokenInRedis(t *testing.T) {
	mr, client := newMiniRedis(t)
	SetRedis(client)
	t.Cleanup(func() { SetRedis(nil) })
	ctx := context.Background()

	RevokeToken(ctx, "redis-token", time.Now().Add(time.Hour))
	assert.True(t, mr.Exists("jwt:revoked:redis-token"))
	assert.True(t, IsTokenRevoked(ctx, "redis-token"))

	mr.FastForward(2 * time.Hour)
	assert.False(t, IsTokenRevoked(ctx, "redis-token"))
}

func TestRedisCaptchaStore(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := NewRedisCaptchaStore(client, time.Minute)

	require.NoError(t, store.Set("abc", "12345"))
	assert.True(t, mr.Exists("captcha:abc"))
	assert.Equal(t, "12345", store.Get("abc", false))
	assert.False(t, store.Verify("abc", "00000", false))
	assert.True(t, store.Verify("abc", "12345", true))
	assert.False(t, mr.Exists("captcha:abc"))
	assert.Empty(t, store.Get("abc", false))
}
