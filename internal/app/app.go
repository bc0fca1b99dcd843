// Package app owns every container of the dashboard and wires them together:
// sockets feed the dispatcher, the dispatcher feeds the batching queues, the
// queues write the domain stores and the stores publish on the bus.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/novadash/engine/internal/batch"
	"github.com/novadash/engine/internal/config"
	"github.com/novadash/engine/internal/filter"
	"github.com/novadash/engine/internal/ingest"
	"github.com/novadash/engine/internal/layout"
	"github.com/novadash/engine/internal/metrics"
	"github.com/novadash/engine/internal/notify"
	"github.com/novadash/engine/internal/persist"
	"github.com/novadash/engine/internal/session"
	"github.com/novadash/engine/internal/store"
	"github.com/novadash/engine/internal/wire"
)

const (
	// Socket names.
	SocketMain          = "main"
	SocketNotifications = "notifications"

	// cleanupInterval paces idle-state pruning of the signal detector and
	// notification center.
	cleanupInterval = 5 * time.Minute

	// persistTimeout bounds a single preference write.
	persistTimeout = 2 * time.Second
)

// DefaultViewport is used until the UI reports its size.
var DefaultViewport = layout.Viewport{Width: 1600, Height: 900}

// runner is a batching queue seen without its entry type.
type runner interface {
	Name() string
	Run(ctx context.Context)
	Flush() int
	Len() int
}

// Option customises an App.
type Option func(*options)

type options struct {
	dialer ingest.DialFunc
	now    func() time.Time
}

// WithDialer replaces the websocket dialer of both sockets.
func WithDialer(d ingest.DialFunc) Option {
	return func(o *options) { o.dialer = d }
}

// WithClock replaces time.Now for every time-dependent component.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// App is the application context.
type App struct {
	cfg *config.Config

	Session    *session.Session
	Bus        *store.Bus
	Stores     *store.Stores
	Center     *notify.Center
	Detector   *notify.Detector
	Tracker    *metrics.Tracker
	Exporter   *metrics.Exporter
	Dispatcher *ingest.Dispatcher
	Main       *ingest.Socket
	Notify     *ingest.Socket
	Sockets    *ingest.Manager
	Seed       *ingest.SeedClient
	Layout     *layout.Manager
	Persist    *persist.Store

	// Filters holds the filter state of every filterable channel.
	Filters map[string]*filter.State

	queues []runner

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	reconnects map[string]int
	selected   []string
	unobserve  func()
}

// New builds the application from configuration. Nothing connects until Run.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	var exporter *metrics.Exporter
	if cfg.PrometheusPort > 0 {
		exporter = metrics.NewExporter()
	}

	a := &App{
		cfg:        cfg,
		Session:    newSession(cfg),
		Bus:        store.NewBus(),
		Exporter:   exporter,
		Dispatcher: ingest.NewDispatcher(),
		Filters:    make(map[string]*filter.State),
		reconnects: make(map[string]int),
	}
	a.Stores = store.NewStores(a.Bus)
	a.Center = notify.NewCenter(a.Bus, cfg.NotificationCooldown, o.now)
	a.Detector = notify.NewDetector(notify.Rules{
		LargeTradeSOL: cfg.LargeTradeSOL,
		BurstCount:    cfg.BurstCount,
		BurstWindow:   cfg.BurstWindow,
	}, o.now)
	a.Tracker = metrics.NewTracker(a.Exporter, o.now)
	a.Seed = ingest.NewSeedClient(cfg.APIBaseURL, a.Session, cfg.SeedTimeout)

	a.Dispatcher.OnFrame = a.Tracker.RecordFrame
	a.Dispatcher.OnMalformed = a.Tracker.RecordMalformed

	a.buildQueues()
	a.buildSockets(o)

	for _, ch := range []string{wire.ChannelCosmo, wire.ChannelWalletTracker, wire.ChannelSniper} {
		a.Filters[ch] = filter.NewState(ch, a.Main)
	}

	if err := a.buildLayout(ctx); err != nil {
		return nil, err
	}

	return a, nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config {
	return a.cfg
}

func newSession(cfg *config.Config) *session.Session {
	if cfg.SessionToken != "" {
		return session.New(cfg.SessionToken)
	}
	return session.FromCookie(cfg.SessionCookie)
}

// buildQueues creates one batching queue per channel and routes it.
func (a *App) buildQueues() {
	s := a.Stores
	interval := a.cfg.FlushInterval

	addQueue(a, batch.NewQueue(wire.ChannelCosmo, interval, store.DecodeCosmo, store.CosmoKey, s.Cosmo.Apply))
	addQueue(a, batch.NewQueue(wire.ChannelWalletTracker, interval, store.DecodeTrackedWallet, store.WalletKey, a.applyWallets))
	addQueue(a, batch.NewQueue(wire.ChannelHoldings, interval, store.DecodeHoldings, store.HoldingsKey, s.Holdings.Apply))
	addQueue(a, batch.NewQueue(wire.ChannelFooter, interval, store.DecodeFooter, store.FooterKey, s.Footer.Apply))
	addQueue(a, batch.NewQueue(wire.ChannelSniper, interval, store.DecodeSniperTask, store.SniperKey, s.Sniper.Apply))
	addQueue(a, batch.NewQueue(wire.ChannelNotifications, interval, notify.DecodeServer, notify.ServerKey, a.Center.Apply))
}

func addQueue[T any](a *App, q *batch.Queue[T]) {
	q.OnFlush = a.Tracker.RecordFlush
	q.OnDrop = a.Tracker.RecordDrop
	a.Dispatcher.Route(q.Name(), q)
	a.queues = append(a.queues, q)
}

// applyWallets writes a wallet tracker batch and raises activity signals.
func (a *App) applyWallets(batch []store.TrackedWallet) {
	a.Stores.WalletTracker.Apply(batch)
	for _, w := range batch {
		for _, sig := range a.Detector.Detect(w) {
			slog.Debug("wallet_signal", "type", sig.Type, "wallet", w.Wallet)
			a.Center.Push(sig.Notification())
		}
	}
}

func (a *App) buildSockets(o options) {
	var sockOpts []ingest.SocketOption
	if o.dialer != nil {
		sockOpts = append(sockOpts, ingest.WithDialer(o.dialer))
	}
	sockOpts = append(sockOpts, ingest.WithClock(o.now))

	base := ingest.SocketConfig{
		HeartbeatInterval: a.cfg.HeartbeatInterval,
		HeartbeatTimeout:  a.cfg.HeartbeatTimeout,
		BackoffBase:       a.cfg.BackoffBase,
		BackoffCap:        a.cfg.BackoffCap,
		UpdateRate:        rate.Limit(a.cfg.UpdateRate),
	}

	mainCfg := base
	mainCfg.Name, mainCfg.URL = SocketMain, a.cfg.WSURL
	a.Main = ingest.NewSocket(mainCfg, a.Session, sockOpts...)

	notifyCfg := base
	notifyCfg.Name, notifyCfg.URL = SocketNotifications, a.cfg.NotificationsWSURL
	a.Notify = ingest.NewSocket(notifyCfg, a.Session, sockOpts...)

	for _, sock := range []*ingest.Socket{a.Main, a.Notify} {
		sock.OnMessage(func(raw []byte) { a.Dispatcher.Handle(sock, raw) })
		sock.OnStatus(a.socketStatus)
	}

	for _, ch := range []string{wire.ChannelCosmo, wire.ChannelWalletTracker, wire.ChannelHoldings, wire.ChannelFooter, wire.ChannelSniper} {
		a.Main.Subscribe(ch, nil)
	}
	a.Notify.Subscribe(wire.ChannelNotifications, nil)

	sockets := []*ingest.Socket{a.Main}
	if a.cfg.NotificationsWSURL != "" {
		sockets = append(sockets, a.Notify)
	}
	a.Sockets = ingest.NewManager(a.Session, sockets...)
}

// socketStatus mirrors socket liveness into metrics and the bus.
func (a *App) socketStatus(st ingest.Status) {
	a.mu.Lock()
	reconnected := st.Reconnects > a.reconnects[st.Name]
	a.reconnects[st.Name] = st.Reconnects
	a.mu.Unlock()

	a.Tracker.SetSocketStatus(st.Name, StatusText(st), reconnected)
	a.Bus.Publish(store.Event{Domain: store.DomainConnection, Kind: store.ChangeStatus})
}

// StatusText renders a socket status for metrics and the UI.
func StatusText(st ingest.Status) string {
	switch {
	case st.Connected:
		return "connected"
	case st.Connecting:
		return "connecting"
	default:
		return "disconnected"
	}
}

// Run starts every loop and connects the sockets. It returns immediately;
// Shutdown stops what Run started.
func (a *App) Run(ctx context.Context) {
	a.mu.Lock()
	if a.ctx != nil {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.ctx, a.cancel = ctx, cancel
	a.mu.Unlock()

	for _, q := range a.queues {
		a.wg.Add(1)
		go func(q runner) {
			defer a.wg.Done()
			q.Run(ctx)
		}(q)
	}

	if a.Exporter != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.Exporter.Serve(ctx, a.cfg.PrometheusPort); err != nil {
				slog.Error("metrics_server_failed", "error", err)
			}
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.cleanupLoop(ctx)
	}()

	a.unobserve = a.Session.Observe(func(loggedIn bool) {
		if loggedIn {
			a.seedAsync(ctx)
		}
	})
	a.Sockets.Start(ctx)
	if a.Session.Valid() {
		a.seedAsync(ctx)
	}

	slog.Info("app_started",
		"queues", len(a.queues),
		"channels", a.Dispatcher.Channels(),
		"sockets", len(a.Sockets.Sockets()),
		"panels", len(a.Layout.Panels()),
	)
}

func (a *App) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Detector.Cleanup()
			a.Center.Cleanup()
		}
	}
}

// Shutdown closes the sockets, flushes pending batches, saves the layout and
// closes the database.
func (a *App) Shutdown() {
	a.mu.Lock()
	cancel := a.cancel
	unobserve := a.unobserve
	a.unobserve = nil
	a.mu.Unlock()

	if unobserve != nil {
		unobserve()
	}
	a.Sockets.Stop()
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()

	drained := 0
	for _, q := range a.queues {
		drained += q.Flush()
	}
	if drained > 0 {
		slog.Info("queues_drained", "count", drained)
	}

	if a.Persist != nil {
		a.saveLayout()
		if err := a.Persist.Close(); err != nil {
			slog.Warn("persist_close_failed", "error", err)
		}
	}
	slog.Info("app_stopped")
}

// SeedStores fetches the initial snapshot of every seeded domain. Failures become
// notifications; the live feed still fills the stores.
func (a *App) SeedStores(ctx context.Context) error {
	s := a.Stores
	s.Cosmo.MarkLoading()
	s.WalletTracker.MarkLoading()
	s.Holdings.MarkLoading()

	var errs []error

	if lists, err := a.Seed.FetchCosmo(ctx); err != nil {
		errs = append(errs, a.seedFailed("cosmo", "Token feed unavailable", err))
	} else {
		s.Cosmo.SetAll(lists)
	}

	if wallets, err := a.Seed.FetchTrackedWallets(ctx); err != nil {
		errs = append(errs, a.seedFailed("walletTracker", "Wallet tracker unavailable", err))
	} else {
		a.Detector.Observe(wallets)
		s.WalletTracker.SetAll(wallets)
	}

	if holdings, err := a.Seed.FetchHoldings(ctx, a.SelectedWallets()); err != nil {
		errs = append(errs, a.seedFailed("holdings", "Holdings unavailable", err))
	} else {
		s.Holdings.SetAll(holdings)
	}

	return errors.Join(errs...)
}

func (a *App) seedFailed(domain, title string, err error) error {
	slog.Warn("seed_fetch_failed", "domain", domain, "error", err)
	a.Center.Error("seed", title, err)
	return fmt.Errorf("seed %s: %w", domain, err)
}

func (a *App) seedAsync(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.SeedStores(ctx); err == nil {
			slog.Info("seed_complete",
				"cosmo", a.Stores.Cosmo.Len(),
				"wallets", a.Stores.WalletTracker.Len(),
				"holdings", a.Stores.Holdings.Len(),
			)
		}
	}()
}

// Submit posts a transaction. A failure is surfaced as a notification.
func (a *App) Submit(ctx context.Context, tx ingest.Transaction) (ingest.TransactionResult, error) {
	res, err := a.Seed.SubmitTransaction(ctx, tx)
	if err != nil {
		a.Center.Error("transactions", "Transaction failed", err)
		return res, err
	}
	a.Center.Push(notify.Notification{
		Level:   notify.LevelSuccess,
		Title:   "Transaction submitted",
		Message: fmt.Sprintf("%s %s", tx.Side, res.ID),
		Source:  "transactions",
	})
	return res, nil
}

// buildLayout registers the panels, opens the preference database and
// restores the saved geometry against the current viewport.
func (a *App) buildLayout(ctx context.Context) error {
	panels, err := config.LoadLayout(a.cfg.LayoutFile)
	if err != nil {
		return fmt.Errorf("load layout: %w", err)
	}

	a.Layout = layout.NewManager(DefaultViewport)
	for _, p := range panels {
		if err := a.Layout.Register(p); err != nil {
			return fmt.Errorf("register panel: %w", err)
		}
	}

	a.Layout.OnCommit(func(id string, g layout.Geometry) {
		slog.Debug("panel_commit", "panel", id, "state", g.State, "side", g.SnappedSide)
		if a.Persist != nil {
			a.saveLayout()
		}
		a.Bus.Publish(store.Event{Domain: store.DomainLayout, Kind: store.ChangeUpsert, Count: 1})
	})

	if a.cfg.DBPath == "" {
		return nil
	}
	if a.cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persist.Open(ctx, a.cfg.DBPath)
	if err != nil {
		return err
	}
	a.Persist = db
	a.restorePreferences(ctx)
	return nil
}

func (a *App) saveLayout() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := a.Persist.Save(ctx, persist.KeyPanelGeometry, a.Layout.Snapshot()); err != nil {
		slog.Warn("layout_save_failed", "error", err)
	}
}
