package streaming

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

func TestBroadcastDeliversOnlyToMatchingMarketSubscribers(t *testing.T) {
	b := New(DefaultConfig(), nil)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		go b.Subscribe(context.Background(), conn, dlobtypes.MarketTypePerp, 0)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	// Different market: should not be delivered.
	b.Broadcast(dlobtypes.MarketTypePerp, 1, []byte("other market"))
	// Matching market: should be delivered.
	b.Broadcast(dlobtypes.MarketTypePerp, 0, []byte("l3 snapshot"))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "l3 snapshot", string(msg))
}
