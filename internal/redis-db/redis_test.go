package redis_db

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRedisURL_PlainAddress(t *testing.T) {
	opts, err := ParseRedisURL("redis:6379", false)
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", opts.Addr)
	assert.Empty(t, opts.Password)
}

func TestParseRedisURL_URLWithPassword(t *testing.T) {
	opts, err := ParseRedisURL("redis://:secret@localhost:6379/2", false)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
}

func TestNewRedisClient_EmptyAddresses(t *testing.T) {
	_, err := NewRedisClient(nil, false)
	assert.Error(t, err)
}

func TestNewRedisClient_SingleInstance(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewRedisClient([]string{mr.Addr()}, false)
	require.NoError(t, err)
	assert.NotNil(t, client.Client())
	assert.NotNil(t, client.MakeRedisClient())
}
