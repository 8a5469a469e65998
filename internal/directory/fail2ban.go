package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/coremailer/coremail/common/retry"
	"github.com/coremailer/coremail/internal/storage"
)

const (
	// DefaultFail2BanThreshold is the number of failed attempts within
	// DefaultFail2BanWindow that promotes an IP to Banned.
	DefaultFail2BanThreshold = 5
	DefaultFail2BanWindow    = 15 * time.Minute

	// softThrottleRate bounds how many attempts per second from a single IP
	// are even worth persisting to the durable ledger; beyond this the IP is
	// almost certainly already hammering the listener and the in-memory
	// fast path is sufficient to reach the ban threshold without touching
	// SQLite on every call.
	softThrottleRate  = 5
	softThrottleBurst = 10
)

// BanStore is the keyed counter store by (remote_ip, optional login) with a
// sliding window. Fail2Ban is the only implementation shipped; the interface
// keeps the auth coordinator off the concrete SQLite-backed type.
type BanStore interface {
	RecordAttempt(ctx context.Context, remoteIP, login string) error
	IsBanned(ctx context.Context, remoteIP string) (bool, error)
}

// Fail2Ban combines an in-memory sliding-window counter (a pruning-slice
// technique keyed by remote IP) with an optional SQLite-backed durable
// ledger so ban state survives a process restart. A per-IP token bucket
// (golang.org/x/time/rate) soft-throttles how often the durable ledger is
// touched under a sustained attack, independent of the hard ban decision.
type Fail2Ban struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	counters  map[string][]time.Time
	limiters  map[string]*rate.Limiter

	store *storage.Store // nil: in-memory only, no restart durability
}

// NewFail2Ban constructs a ban store. store may be nil to run purely
// in-memory (e.g. in tests).
func NewFail2Ban(threshold int, window time.Duration, store *storage.Store) *Fail2Ban {
	if threshold <= 0 {
		threshold = DefaultFail2BanThreshold
	}
	if window <= 0 {
		window = DefaultFail2BanWindow
	}
	return &Fail2Ban{
		threshold: threshold,
		window:    window,
		counters:  make(map[string][]time.Time),
		limiters:  make(map[string]*rate.Limiter),
		store:     store,
	}
}

func (f *Fail2Ban) limiterFor(remoteIP string) *rate.Limiter {
	if l, ok := f.limiters[remoteIP]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(softThrottleRate), softThrottleBurst)
	f.limiters[remoteIP] = l
	return l
}

// RecordAttempt records a failed authentication attempt from remoteIP for
// login, pruning stale in-memory entries and persisting to the durable
// ledger unless the soft-throttle bucket for this IP is currently empty.
func (f *Fail2Ban) RecordAttempt(ctx context.Context, remoteIP, login string) error {
	f.mu.Lock()
	now := time.Now()
	cutoff := now.Add(-f.window)

	existing := f.counters[remoteIP]
	valid := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	f.counters[remoteIP] = append(valid, now)

	shouldPersist := f.store != nil && f.limiterFor(remoteIP).Allow()
	f.mu.Unlock()

	if shouldPersist {
		// SQLite's single-writer model means a concurrent migration or
		// checkpoint can transiently busy-lock the connection; retry a
		// couple of times rather than losing the attempt record.
		err := retry.Do(ctx, retry.Config{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond}, func() error {
			_, err := f.store.DB().ExecContext(ctx,
				`INSERT INTO fail2ban_attempts (remote_ip, login, attempted_at) VALUES (?, ?, ?)`,
				remoteIP, login, now,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("fail2ban: persist attempt: %w", err)
		}
	}
	return nil
}

// IsBanned reports whether remoteIP has reached the failure threshold
// within the current window, consulting both the in-memory fast path and
// (if configured) the durable ledger, so a restarted process still honors
// bans recorded before the crash.
func (f *Fail2Ban) IsBanned(ctx context.Context, remoteIP string) (bool, error) {
	f.mu.Lock()
	cutoff := time.Now().Add(-f.window)
	count := 0
	for _, t := range f.counters[remoteIP] {
		if t.After(cutoff) {
			count++
		}
	}
	f.mu.Unlock()

	if count >= f.threshold {
		return true, nil
	}

	if f.store == nil {
		return false, nil
	}

	var dbCount int
	err := f.store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fail2ban_attempts WHERE remote_ip = ? AND attempted_at > ?`,
		remoteIP, cutoff,
	).Scan(&dbCount)
	if err != nil {
		return false, fmt.Errorf("fail2ban: query ledger: %w", err)
	}
	return dbCount >= f.threshold, nil
}
