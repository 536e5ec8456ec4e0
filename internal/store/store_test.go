package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mechconnect/internal/registration"
)

func newTestStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	db := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { db.Close() })
	return NewRedis(db, time.Hour), server
}

func TestRedis_SaveAndLoad(t *testing.T) {
	s, server := newTestStore(t)
	ctx := context.Background()

	form := registration.NewForm().WithUsername("ana").WithPassword("pass123").WithConfirmPassword("pass123")
	require.NoError(t, s.Save(ctx, "42", Draft{Form: form, Stage: registration.StageDemographics}))

	raw, err := server.Get("draft:42")
	require.NoError(t, err)
	assert.NotContains(t, raw, "pass123")
	assert.Equal(t, time.Hour, server.TTL("draft:42"))

	draft, ok, err := s.Load(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ana", draft.Form.Username)
	assert.Empty(t, draft.Form.Password)
	assert.Equal(t, registration.StageDemographics, draft.Stage)
	assert.False(t, draft.UpdatedAt.IsZero())
}

func TestRedis_LoadMissing(t *testing.T) {
	s, _ := newTestStore(t)

	_, ok, err := s.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_Expiry(t *testing.T) {
	s, server := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "42", Draft{Form: registration.NewForm(), Stage: registration.StagePersonal}))
	server.FastForward(2 * time.Hour)

	_, ok, err := s.Load(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_Delete(t *testing.T) {
	s, server := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "42", Draft{Form: registration.NewForm(), Stage: registration.StagePersonal}))
	require.NoError(t, s.Delete(ctx, "42"))
	assert.False(t, server.Exists("draft:42"))
	require.NoError(t, s.Delete(ctx, "42"))
}

func TestRedis_CorruptDraftIsDiscarded(t *testing.T) {
	s, server := newTestStore(t)
	require.NoError(t, server.Set("draft:42", "{not json"))

	_, ok, err := s.Load(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, server.Exists("draft:42"))
}

func TestRedis_InvalidStageFallsBack(t *testing.T) {
	s, server := newTestStore(t)
	require.NoError(t, server.Set("draft:42", `{"form":{"username":"ana"},"stage":9}`))

	draft, ok, err := s.Load(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, registration.FirstStage, draft.Stage)
}

func TestRedis_ServerDown(t *testing.T) {
	s, server := newTestStore(t)
	server.Close()

	_, _, err := s.Load(context.Background(), "42")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	server := miniredis.RunT(t)

	s, err := Open(context.Background(), "redis://"+server.Addr()+"/0", time.Minute)
	require.NoError(t, err)
	defer s.Close()

	_, err = Open(context.Background(), "not a url", time.Minute)
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var s Store = Nop{}
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "42", Draft{}))
	_, ok, err := s.Load(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.Delete(ctx, "42"))
}
