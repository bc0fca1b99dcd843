package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/novadash/engine/internal/session"
	"github.com/novadash/engine/internal/store"
)

// DefaultSeedTimeout is the hard limit of every REST call.
const DefaultSeedTimeout = 5 * time.Second

var (
	// ErrRequestTimeout is returned when a REST call hits its hard timeout.
	ErrRequestTimeout = errors.New("request timed out")
	// ErrNoSession is returned when there is no token to authenticate with.
	ErrNoSession = errors.New("no session token")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Transaction is a buy or sell submitted from the dashboard.
type Transaction struct {
	Wallet    string  `json:"wallet"`
	Mint      string  `json:"mint"`
	Side      string  `json:"side"`
	AmountSOL float64 `json:"amountSol"`
	Preset    string  `json:"preset,omitempty"`
}

// TransactionResult is the server reply to a submitted transaction.
type TransactionResult struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Signature string `json:"signature,omitempty"`
}

// cosmoSeed is the wire shape of GET /cosmo.
type cosmoSeed struct {
	Created         []store.CosmoToken `json:"created"`
	AboutToGraduate []store.CosmoToken `json:"aboutToGraduate"`
	Graduated       []store.CosmoToken `json:"graduated"`
}

// SeedClient fetches the initial snapshots of the domain stores.
type SeedClient struct {
	baseURL string
	session *session.Session
	client  *http.Client
	timeout time.Duration
}

// NewSeedClient creates a client. A zero timeout uses DefaultSeedTimeout.
func NewSeedClient(baseURL string, sess *session.Session, timeout time.Duration) *SeedClient {
	if timeout <= 0 {
		timeout = DefaultSeedTimeout
	}
	return &SeedClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		session: sess,
		client:  &http.Client{},
		timeout: timeout,
	}
}

// FetchHoldings returns the holdings of the given wallets, or of every wallet
// of the account when wallets is empty.
func (c *SeedClient) FetchHoldings(ctx context.Context, wallets []string) ([]store.WalletHoldings, error) {
	q := url.Values{}
	if len(wallets) > 0 {
		q.Set("wallets", strings.Join(wallets, ","))
	}
	return doJSON[[]store.WalletHoldings](ctx, c, http.MethodGet, "/holdings", q, nil)
}

// FetchTrackedWallets returns the wallet tracker list.
func (c *SeedClient) FetchTrackedWallets(ctx context.Context) ([]store.TrackedWallet, error) {
	return doJSON[[]store.TrackedWallet](ctx, c, http.MethodGet, "/wallet-tracker/wallets", nil, nil)
}

// FetchCosmo returns the three cosmo columns.
func (c *SeedClient) FetchCosmo(ctx context.Context) (store.CosmoLists, error) {
	seed, err := doJSON[cosmoSeed](ctx, c, http.MethodGet, "/cosmo", nil, nil)
	if err != nil {
		return store.CosmoLists{}, err
	}
	return store.CosmoLists{
		Created:         seed.Created,
		AboutToGraduate: seed.AboutToGraduate,
		Graduated:       seed.Graduated,
	}, nil
}

// SubmitTransaction posts a transaction.
func (c *SeedClient) SubmitTransaction(ctx context.Context, tx Transaction) (TransactionResult, error) {
	if tx.Mint == "" || tx.Wallet == "" {
		return TransactionResult{}, fmt.Errorf("transaction needs wallet and mint")
	}
	return doJSON[TransactionResult](ctx, c, http.MethodPost, "/transactions", nil, tx)
}

func doJSON[T any](ctx context.Context, c *SeedClient, method, path string, query url.Values, body any) (T, error) {
	var out T

	token := c.session.Token()
	if token == "" {
		return out, ErrNoSession
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return out, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return out, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out, fmt.Errorf("%s %s: %w after %s", method, path, ErrRequestTimeout, c.timeout)
		}
		return out, fmt.Errorf("%s %s: request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return out, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out, fmt.Errorf("%s %s: %w after %s", method, path, ErrRequestTimeout, c.timeout)
		}
		return out, fmt.Errorf("%s %s: decode failed: %w", method, path, err)
	}

	slog.Debug("seed_fetched", "method", method, "path", path, "duration", time.Since(start))
	return out, nil
}
