package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novadash/engine/internal/config"
	"github.com/novadash/engine/internal/filter"
	"github.com/novadash/engine/internal/layout"
	"github.com/novadash/engine/internal/notify"
	"github.com/novadash/engine/internal/persist"
	"github.com/novadash/engine/internal/wire"
)

func testConfig(wsURL, apiURL string) *config.Config {
	return &config.Config{
		WSURL:                wsURL,
		NotificationsWSURL:   wsURL,
		HeartbeatInterval:    time.Hour,
		HeartbeatTimeout:     2 * time.Hour,
		BackoffBase:          10 * time.Millisecond,
		BackoffCap:           50 * time.Millisecond,
		UpdateRate:           100,
		APIBaseURL:           apiURL,
		SeedTimeout:          time.Second,
		SessionToken:         "tok",
		FlushInterval:        10 * time.Millisecond,
		LargeTradeSOL:        50,
		BurstCount:           3,
		BurstWindow:          time.Minute,
		NotificationCooldown: time.Second,
		DBPath:               ":memory:",
		CellWidth:            8,
		CellHeight:           16,
	}
}

// frames pushed by the fake backend after a join of the channel
var joinReplies = map[string][]string{
	wire.ChannelCosmo: {
		`{"channel":"cosmo","success":true}`,
		`{"channel":"cosmo","data":[{"mint":"M1","category":"created"},{"mint":"M2","category":"graduated"}]}`,
		`{"channel":"cosmo","data":{"mint":"M1","category":"about_to_graduate"}}`,
		`{not json`,
	},
	wire.ChannelWalletTracker: {
		`{"channel":"walletTracker","data":{"wallet":"W1","lastActivity":1}}`,
		`{"channel":"walletTracker","data":{"wallet":"W2","lastActivity":2}}`,
	},
	wire.ChannelNotifications: {
		`{"channel":"notifications","data":{"id":"n1","type":"filled","title":"Snipe filled"}}`,
	},
}

func backend(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg wire.Subscription
			if json.Unmarshal(data, &msg) != nil || msg.Action != "join" {
				continue
			}
			for _, f := range joinReplies[msg.Channel] {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func seedAPI(t *testing.T, failing bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/cosmo":
			w.Write([]byte(`{"created":[{"mint":"S1","category":"created"}],"aboutToGraduate":[],"graduated":[{"mint":"S2","category":"graduated"}]}`))
		case "/wallet-tracker/wallets":
			w.Write([]byte(`[{"wallet":"W1","lastActivity":1},{"wallet":"W3","lastActivity":3}]`))
		case "/holdings":
			wallets := r.URL.Query().Get("wallets")
			if wallets == "" {
				wallets = "W1"
			}
			var out []map[string]any
			for _, wl := range strings.Split(wallets, ",") {
				out = append(out, map[string]any{"wallet": wl, "holdings": []any{}})
			}
			json.NewEncoder(w).Encode(out)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestLivePipeline(t *testing.T) {
	ws := backend(t)
	api := seedAPI(t, true)

	a, err := New(context.Background(), testConfig(wsURL(ws), api.URL))
	require.NoError(t, err)
	a.Run(context.Background())
	t.Cleanup(a.Shutdown)

	require.Eventually(t, func() bool {
		tok, ok := a.Stores.Cosmo.Get("M1")
		return ok && tok.Category == "about_to_graduate" && a.Stores.Cosmo.Len() == 2
	}, 3*time.Second, 10*time.Millisecond)

	lists := a.Stores.Cosmo.Lists()
	assert.Len(t, lists.AboutToGraduate, 1)
	assert.Len(t, lists.Graduated, 1)
	assert.Empty(t, lists.Created, "a token lives in one column only")

	require.Eventually(t, func() bool { return a.Stores.WalletTracker.Len() == 2 }, 3*time.Second, 10*time.Millisecond)

	// server notification plus one per failed seed fetch
	require.Eventually(t, func() bool { return a.Center.Len() == 4 }, 3*time.Second, 10*time.Millisecond)
	var server []notify.Notification
	for _, n := range a.Center.Active() {
		if n.Source == "server" {
			server = append(server, n)
		}
	}
	require.Len(t, server, 1)
	assert.Equal(t, notify.LevelSuccess, server[0].Level)

	snap := a.Tracker.Snapshot()
	assert.Equal(t, int64(1), snap.Malformed)
	assert.NotEmpty(t, snap.Queues)
	require.Len(t, snap.Sockets, 2)
	for _, s := range snap.Sockets {
		assert.Equal(t, "connected", s.Status)
	}
}

func TestLogoutClosesSockets(t *testing.T) {
	ws := backend(t)
	api := seedAPI(t, false)

	a, err := New(context.Background(), testConfig(wsURL(ws), api.URL))
	require.NoError(t, err)
	a.Run(context.Background())
	t.Cleanup(a.Shutdown)

	require.Eventually(t, func() bool { return a.Main.Status().Connected }, 3*time.Second, 10*time.Millisecond)

	a.Session.Logout()
	require.Eventually(t, func() bool {
		return !a.Main.Status().Connected && !a.Notify.Status().Connected
	}, 3*time.Second, 10*time.Millisecond)

	a.Session.Login("tok")
	require.Eventually(t, func() bool { return a.Main.Status().Connected }, 3*time.Second, 10*time.Millisecond)
}

func TestSeedStores(t *testing.T) {
	api := seedAPI(t, false)
	a, err := New(context.Background(), testConfig("ws://127.0.0.1:1", api.URL))
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)

	require.NoError(t, a.SeedStores(context.Background()))
	assert.Equal(t, 2, a.Stores.Cosmo.Len())
	assert.Equal(t, 2, a.Stores.WalletTracker.Len())
	assert.Equal(t, 1, a.Stores.Holdings.Len())
	assert.Zero(t, a.Center.Len())

	require.NoError(t, a.SelectWallets(context.Background(), []string{"W1", "W3"}))
	assert.Equal(t, []string{"W1", "W3"}, a.SelectedWallets())
	assert.Equal(t, 2, a.Stores.Holdings.Len())

	var saved []string
	require.NoError(t, a.Persist.Load(context.Background(), persist.KeySelectedWallets, &saved))
	assert.Equal(t, []string{"W1", "W3"}, saved)
}

func TestSeedFailureNotifies(t *testing.T) {
	api := seedAPI(t, true)
	a, err := New(context.Background(), testConfig("ws://127.0.0.1:1", api.URL))
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)

	err = a.SeedStores(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, a.Center.Len())
	for _, n := range a.Center.Active() {
		assert.Equal(t, notify.LevelError, n.Level)
		assert.Equal(t, "seed", n.Source)
	}
}

func TestPresets(t *testing.T) {
	a, err := New(context.Background(), testConfig("ws://127.0.0.1:1", "http://127.0.0.1:1"))
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)
	ctx := context.Background()

	cosmo := a.Filters[wire.ChannelCosmo]
	cosmo.SetPreviewList("created", filter.ListFilter{MarketCap: filter.Range{Min: 10_000}})
	cosmo.Apply()
	require.NoError(t, a.SavePreset(ctx, wire.ChannelCosmo, "small caps"))

	cosmo.SetGenuine(filter.FilterState{})
	require.NoError(t, a.LoadPreset(ctx, wire.ChannelCosmo, "small caps"))
	assert.Equal(t, 10_000.0, cosmo.Genuine()["created"].MarketCap.Min)

	names, err := a.PresetNames(ctx, wire.ChannelCosmo)
	require.NoError(t, err)
	assert.Equal(t, []string{"small caps"}, names)

	assert.ErrorIs(t, a.LoadPreset(ctx, wire.ChannelCosmo, "missing"), ErrUnknownPreset)
	assert.Error(t, a.SavePreset(ctx, "footer", "x"))
}

func TestLayoutPersistsOnCommit(t *testing.T) {
	a, err := New(context.Background(), testConfig("ws://127.0.0.1:1", "http://127.0.0.1:1"))
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)

	_, err = a.Layout.Open("wallets")
	require.NoError(t, err)

	var saved map[string]layout.Geometry
	require.NoError(t, a.Persist.Load(context.Background(), persist.KeyPanelGeometry, &saved))
	assert.Equal(t, layout.StateFloating, saved["wallets"].State)

	// 100x40 cells at 8x16 px
	vp := a.SetTerminalSize(100, 40)
	assert.Equal(t, layout.Viewport{Width: 800, Height: 640}, vp)
	assert.Equal(t, vp, a.Layout.Viewport())

	// narrower than the footer breakpoint
	g, ok := a.Layout.Geometry("wallets")
	require.True(t, ok)
	assert.Equal(t, layout.StateFooter, g.State)
}
