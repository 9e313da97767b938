package realtime

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(roundID uuid.UUID) *Client {
	return &Client{
		ID:            uuid.NewString(),
		RoundID:       roundID,
		ParticipantID: uuid.New(),
		send:          make(chan WSMessage, 16),
	}
}

func TestHub_BroadcastReachesRoundClientsOnly(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	roundA, roundB := uuid.New(), uuid.New()
	a := testClient(roundA)
	b := testClient(roundB)
	hub.Register(a)
	hub.Register(b)

	hub.BroadcastToRound(roundA, "status_changed", map[string]string{"status": "matched"})

	select {
	case msg := <-a.send:
		assert.Equal(t, "status_changed", msg.Event)
	default:
		t.Fatal("round A client got no message")
	}
	assert.Empty(t, b.send)
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	roundID := uuid.New()
	c := testClient(roundID)
	hub.Register(c)
	require.Equal(t, 1, hub.ConnectionCount(roundID))

	hub.Unregister(c)
	assert.Equal(t, 0, hub.ConnectionCount(roundID))

	hub.BroadcastToRound(roundID, "status_changed", nil)
	assert.Empty(t, c.send)
}

func TestHub_BroadcastDuringRegisterChurn(t *testing.T) {
	// Broadcast snapshots the room, so concurrent joins and leaves must not
	// disturb an in-flight send.
	hub := NewHub(zap.NewNop(), nil, nil)
	roundID := uuid.New()
	hub.Register(testClient(roundID))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c := testClient(roundID)
				hub.Register(c)
				hub.Unregister(c)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.BroadcastToRound(roundID, "status_changed", map[string]int{"n": j})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, hub.ConnectionCount(roundID))
}
