package ledger

import (
	"context"
	"log"
	"time"
)

// Reaper periodically expires pending transactions abandoned by their clients
type Reaper struct {
	Ledger   *LedgerService
	Interval time.Duration
	MaxAge   time.Duration
	Logger   *log.Logger
}

// NewReaper creates a new Reaper instance
func NewReaper(ledger *LedgerService, interval, maxAge time.Duration) *Reaper {
	return &Reaper{
		Ledger:   ledger,
		Interval: interval,
		MaxAge:   maxAge,
		Logger:   log.Default(),
	}
}

// Run expires stale transactions every Interval until ctx is done
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single expiry pass and returns how many transactions were expired
func (r *Reaper) RunOnce(ctx context.Context) int {
	n, err := r.Ledger.ExpireStale(ctx, r.MaxAge)
	if err != nil {
		r.Logger.Printf("failed to expire stale transactions: %v", err)
	}
	if n > 0 {
		r.Logger.Printf("expired %d stale pending transactions", n)
	}
	return n
}
