// Package store holds the reconciled per-domain views of live data.
package store

import "time"

// Cosmo feed categories.
const (
	CategoryCreated         = "created"
	CategoryAboutToGraduate = "about_to_graduate"
	CategoryGraduated       = "graduated"
)

// ActionRemove marks a pushed entry that deletes its key.
const ActionRemove = "remove"

// CosmoToken is one token card of the cosmo feed.
type CosmoToken struct {
	// Mint is the token mint address (natural key)
	Mint string `json:"mint"`

	Name   string `json:"name,omitempty"`
	Symbol string `json:"symbol,omitempty"`

	// Category is one of created, about_to_graduate, graduated
	Category string `json:"category"`

	MarketCapUSD    float64 `json:"marketCapUsd,omitempty"`
	VolumeUSD       float64 `json:"volumeUsd,omitempty"`
	Holders         int     `json:"holders,omitempty"`
	BondingProgress float64 `json:"bondingProgress,omitempty"`
	Dex             string  `json:"dex,omitempty"`
	Developer       string  `json:"developer,omitempty"`

	// CreatedAt is unix milliseconds
	CreatedAt int64 `json:"createdAt,omitempty"`

	// Action is "remove" when the server drops the token from the feed
	Action string `json:"action,omitempty"`
}

// TrackedWallet is a wallet followed in the wallet tracker.
type TrackedWallet struct {
	// Wallet is the wallet address (natural key)
	Wallet string `json:"wallet"`
	Name   string `json:"name,omitempty"`
	Emoji  string `json:"emoji,omitempty"`

	// LastActivity is unix milliseconds of the latest observed transaction
	LastActivity int64   `json:"lastActivity"`
	LastMint     string  `json:"lastMint,omitempty"`
	LastSide     string  `json:"lastSide,omitempty"`
	AmountSOL    float64 `json:"amountSol,omitempty"`
	BalanceSOL   float64 `json:"balanceSol,omitempty"`

	Action string `json:"action,omitempty"`
}

// LastActive returns the last activity time.
func (w TrackedWallet) LastActive() time.Time {
	return time.UnixMilli(w.LastActivity)
}

// Holding is one token position of a wallet.
type Holding struct {
	Mint       string  `json:"mint"`
	Symbol     string  `json:"symbol,omitempty"`
	Balance    float64 `json:"balance"`
	ValueUSD   float64 `json:"valueUsd"`
	PnLPercent float64 `json:"pnlPercent,omitempty"`
}

// WalletHoldings is the full position list of one wallet.
type WalletHoldings struct {
	// Wallet is the wallet address (natural key)
	Wallet    string    `json:"wallet"`
	Holdings  []Holding `json:"holdings"`
	UpdatedAt int64     `json:"updatedAt,omitempty"`
}

// TotalValue sums the USD value of the wallet's positions.
func (h WalletHoldings) TotalValue() float64 {
	total := 0.0
	for _, holding := range h.Holdings {
		total += holding.ValueUSD
	}
	return total
}

// FooterCounts are the badge counters shown in the footer bar.
type FooterCounts struct {
	WalletTracker int `json:"walletTracker"`
	Alerts        int `json:"alerts"`
	Sniper        int `json:"sniper"`
	Holdings      int `json:"holdings"`
}

// Sniper task statuses
const (
	SniperPending   = "pending"
	SniperActive    = "active"
	SniperFilled    = "filled"
	SniperFailed    = "failed"
	SniperCancelled = "cancelled"
)

// SniperTask is a pending or executed snipe preset applied to a mint.
type SniperTask struct {
	// ID is the task id (natural key)
	ID        string  `json:"id"`
	Mint      string  `json:"mint"`
	Preset    string  `json:"preset,omitempty"`
	Status    string  `json:"status"`
	AmountSOL float64 `json:"amountSol,omitempty"`
	CreatedAt int64   `json:"createdAt,omitempty"`

	Action string `json:"action,omitempty"`
}
