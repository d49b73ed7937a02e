package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPingsServer(t *testing.T) {
	srv := miniredis.RunT(t)

	h, err := Open(context.Background(), "redis://"+srv.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	assert.NoError(t, h.Ping(context.Background()))

	srv.Close()
	assert.Error(t, h.Ping(context.Background()))
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)

	_, err = Open(context.Background(), "://nope")
	assert.Error(t, err)
}

func TestNilHandle(t *testing.T) {
	var h *Handle
	assert.Error(t, h.Ping(context.Background()))
	assert.NoError(t, h.Close())
}
