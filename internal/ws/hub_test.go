package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func attach(t *testing.T, h *Hub, id string, buffer int) *Client {
	t.Helper()
	c := NewClient(id, "", nil, buffer)
	h.Attach(c)
	return c
}

func next(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case msg := <-c.Send:
		var out map[string]any
		require.NoError(t, json.Unmarshal(msg, &out))
		return out
	default:
		t.Fatalf("no frame queued for %s", c.ID)
		return nil
	}
}

func TestEmitExcludes(t *testing.T) {
	h := NewHub(zap.NewNop(), nil)
	a := attach(t, h, "a", 4)
	b := attach(t, h, "b", 4)
	require.NoError(t, h.Join("a", "room"))
	require.NoError(t, h.Join("b", "room"))

	h.Emit("room", "hello", map[string]int{"n": 1}, "a")

	assert.Empty(t, a.Send)
	f := next(t, b)
	assert.Equal(t, "hello", f["event"])
	assert.Equal(t, map[string]any{"n": float64(1)}, f["data"])
}

func TestAckFrame(t *testing.T) {
	h := NewHub(zap.NewNop(), nil)
	a := attach(t, h, "a", 1)

	h.Ack("a", 7, "done")

	f := next(t, a)
	assert.Equal(t, AckEvent, f["event"])
	assert.Equal(t, float64(7), f["ack"])
	assert.Equal(t, "done", f["data"])
}

func TestFullBufferDrops(t *testing.T) {
	h := NewHub(zap.NewNop(), nil)
	a := attach(t, h, "a", 1)

	h.EmitTo("a", "one", nil)
	h.EmitTo("a", "two", nil)

	assert.Equal(t, "one", next(t, a)["event"])
	assert.Empty(t, a.Send)
}

func TestJoinUnknownConnection(t *testing.T) {
	h := NewHub(zap.NewNop(), nil)
	assert.ErrorIs(t, h.Join("ghost", "room"), ErrUnknownConnection)
}

func TestRemoveLeavesGroups(t *testing.T) {
	h := NewHub(zap.NewNop(), nil)
	a := attach(t, h, "a", 1)
	require.NoError(t, h.Join("a", "room"))

	h.Remove("a")
	h.Remove("a")

	assert.Empty(t, h.Members("room"))
	assert.Empty(t, h.Groups("a"))
	assert.Equal(t, 0, h.Count())
	_, open := <-a.Send
	assert.False(t, open)
}

func TestEvictWaitsForCleanup(t *testing.T) {
	h := NewHub(zap.NewNop(), nil)
	a := attach(t, h, "a", 1)

	go func() {
		<-a.Closing()
		time.Sleep(10 * time.Millisecond)
		h.Remove("a")
		a.Finish()
	}()

	require.NoError(t, h.Evict(context.Background(), "a"))
	assert.Equal(t, 0, h.Count())
}

func TestEvictTimesOut(t *testing.T) {
	h := NewHub(zap.NewNop(), nil)
	attach(t, h, "a", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Evict(ctx, "a"), context.DeadlineExceeded)
	assert.NoError(t, h.Evict(context.Background(), "ghost"))
}
