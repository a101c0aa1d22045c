package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/credano/bifrost/core"
	"github.com/credano/bifrost/ports"
)

// WatcherConfig carries the tunables of the watched-transaction store.
type WatcherConfig struct {
	PollInterval    time.Duration // Cadence of each entry's status poll
	CleanupInterval time.Duration // Cadence of the cleanup sweeper
	MaxRetries      int           // Transient failures tolerated before failed
	PendingTTL      time.Duration // Age at which a non-terminal entry expires
	TerminalGrace   time.Duration // How long terminal entries stay visible
}

const (
	DefaultPollInterval    = 10 * time.Second
	DefaultCleanupInterval = 5 * time.Minute
	DefaultMaxRetries      = 10
	DefaultPendingTTL      = 30 * time.Minute
	DefaultTerminalGrace   = 10 * time.Minute
)

// stateRank orders the forward-only confirmation states. Terminal states
// are handled separately and never rank-compared.
var stateRank = map[core.TxState]int{
	core.TxPending:   0,
	core.TxConfirmed: 1,
	core.TxUpdated:   2,
}

// watchedEntry wraps a transaction with the watcher's bookkeeping.
type watchedEntry struct {
	tx       core.WatchedTransaction
	notified bool // completion callback fired
}

// WatcherOption configures a TxWatcher.
type WatcherOption func(*TxWatcher)

// WithCompletionFunc registers a callback invoked exactly once per entry
// when it first reaches a terminal state.
func WithCompletionFunc(fn func(core.WatchedTransaction)) WatcherOption {
	return func(w *TxWatcher) { w.onComplete = fn }
}

// TxWatcher is the process-wide store of in-flight transactions. It is
// the sole owner of the entries: every mutation goes through its own
// operations, and consumers only ever receive copies. Each tracked hash
// gets its own cancellable poll task; a single sweeper reclaims terminal
// entries. The watcher outlives any UI scope that triggered a track.
type TxWatcher struct {
	gateway    ports.Gateway
	events     ports.EventPublisher
	logger     *zap.Logger
	cfg        WatcherConfig
	onComplete func(core.WatchedTransaction)

	mu        sync.Mutex
	entries   map[string]*watchedEntry
	cancels   map[string]context.CancelFunc
	listeners map[int]func(pending int)
	nextSubID int
	closed    bool

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewTxWatcher creates the store. Poll tasks and the sweeper run on an
// internal context so that tearing down a caller's scope never removes or
// stops tracking; Close ends everything.
func NewTxWatcher(gateway ports.Gateway, events ports.EventPublisher, logger *zap.Logger, cfg WatcherConfig, opts ...WatcherOption) *TxWatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	if cfg.TerminalGrace <= 0 {
		cfg.TerminalGrace = DefaultTerminalGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &TxWatcher{
		gateway:    gateway,
		events:     events,
		logger:     logger.Named("watcher"),
		cfg:        cfg,
		entries:    make(map[string]*watchedEntry),
		cancels:    make(map[string]context.CancelFunc),
		listeners:  make(map[int]func(int)),
		rootCtx:    ctx,
		rootCancel: cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Track starts watching a submitted transaction. Re-tracking a hash that
// is already present is a no-op, not an error. The passed ctx scopes only
// the gateway registration call; polling runs on the watcher's own
// lifetime.
func (w *TxWatcher) Track(ctx context.Context, txHash string, txType core.TxType, metadata map[string]string) error {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return errors.New("tx hash is required")
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errors.New("watcher is closed")
	}
	if _, exists := w.entries[txHash]; exists {
		w.mu.Unlock()
		return nil
	}

	w.entries[txHash] = &watchedEntry{
		tx: core.WatchedTransaction{
			TxHash:      txHash,
			TxType:      txType,
			State:       core.TxPending,
			SubmittedAt: time.Now(),
			Metadata:    metadata,
		},
	}

	pollCtx, cancel := context.WithCancel(w.rootCtx)
	w.cancels[txHash] = cancel
	w.wg.Add(1)
	go w.pollLoop(pollCtx, txHash)
	w.mu.Unlock()

	w.logger.Info("tracking transaction",
		zap.String("tx_hash", txHash), zap.String("tx_type", string(txType)))

	// Server-side registration is best-effort; the status poll is the
	// authority either way.
	if err := w.gateway.RegisterTransaction(ctx, txHash, txType, metadata); err != nil {
		w.logger.Warn("failed to register transaction with gateway",
			zap.String("tx_hash", txHash), zap.Error(err))
	}

	w.notify()
	return nil
}

// pollLoop drives one entry until it is terminal or its task is cancelled.
func (w *TxWatcher) pollLoop(ctx context.Context, txHash string) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := w.PollOnce(ctx, txHash); done {
				return
			}
		}
	}
}

// PollOnce queries the gateway for one entry and advances it. Returns
// true when no further polling is needed. Exposed so callers can force an
// immediate refresh between ticks.
func (w *TxWatcher) PollOnce(ctx context.Context, txHash string) bool {
	w.mu.Lock()
	entry, exists := w.entries[txHash]
	if !exists || entry.tx.IsTerminal() {
		w.mu.Unlock()
		return true
	}
	submittedAt := entry.tx.SubmittedAt
	w.mu.Unlock()

	// Local expiry: an entry that aged past the TTL expires even if the
	// gateway is unreachable.
	if time.Since(submittedAt) > w.cfg.PendingTTL {
		w.transition(txHash, func(tx *core.WatchedTransaction) {
			tx.State = core.TxExpired
			tx.LastError = "transaction aged out before confirmation"
		})
		return true
	}

	status, err := w.gateway.TransactionStatus(ctx, txHash)
	if err != nil {
		if errors.Is(err, core.ErrTxNotFound) {
			// The gateway hasn't ingested the transaction yet; that
			// window is expected and never downgrades the entry.
			return false
		}
		return w.recordPollError(txHash, err)
	}

	return w.advance(txHash, status)
}

// recordPollError bumps the retry count for a transient failure and
// escalates to failed when the bound is exhausted.
func (w *TxWatcher) recordPollError(txHash string, pollErr error) bool {
	w.logger.Debug("transaction status poll failed",
		zap.String("tx_hash", txHash), zap.Error(pollErr))

	var exhausted bool
	w.transition(txHash, func(tx *core.WatchedTransaction) {
		tx.RetryCount++
		tx.LastError = pollErr.Error()
		if tx.RetryCount >= w.cfg.MaxRetries {
			tx.State = core.TxFailed
			exhausted = true
		}
	})
	return exhausted
}

// advance applies a gateway-reported status. State only ever moves
// forward; a terminal entry never changes again.
func (w *TxWatcher) advance(txHash string, status *ports.TxStatus) bool {
	var terminal bool
	w.transition(txHash, func(tx *core.WatchedTransaction) {
		if status.RetryCount > tx.RetryCount {
			tx.RetryCount = status.RetryCount
		}
		if status.LastError != "" {
			tx.LastError = status.LastError
		}
		if !status.ConfirmedAt.IsZero() {
			tx.ConfirmedAt = status.ConfirmedAt
		}

		if status.State.Terminal() {
			tx.State = status.State
		} else if stateRank[status.State] > stateRank[tx.State] {
			tx.State = status.State
		}
		terminal = tx.IsTerminal()
	})
	return terminal
}

// transition mutates one entry under the lock and handles the
// terminal-edge bookkeeping: cancel the poll task, stamp TerminalAt, fire
// the completion callback exactly once and publish the lifecycle event.
// Callbacks run outside the lock.
func (w *TxWatcher) transition(txHash string, mutate func(*core.WatchedTransaction)) {
	w.mu.Lock()
	entry, exists := w.entries[txHash]
	if !exists || entry.tx.IsTerminal() {
		w.mu.Unlock()
		return
	}

	mutate(&entry.tx)

	var completed *core.WatchedTransaction
	if entry.tx.IsTerminal() && !entry.notified {
		entry.notified = true
		entry.tx.TerminalAt = time.Now()
		if cancel, ok := w.cancels[txHash]; ok {
			cancel()
			delete(w.cancels, txHash)
		}
		copied := entry.tx
		completed = &copied
	}
	w.mu.Unlock()

	if completed != nil {
		w.logger.Info("transaction reached terminal state",
			zap.String("tx_hash", completed.TxHash),
			zap.String("state", string(completed.State)),
			zap.String("last_error", completed.LastError))
		if w.onComplete != nil {
			w.onComplete(*completed)
		}
		if w.events != nil {
			if err := w.events.PublishTransactionTerminal(context.Background(), completed); err != nil {
				w.logger.Warn("failed to publish transaction event", zap.Error(err))
			}
		}
	}

	w.notify()
}

// Get returns a copy of one tracked entry.
func (w *TxWatcher) Get(txHash string) (core.WatchedTransaction, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	entry, exists := w.entries[txHash]
	if !exists {
		return core.WatchedTransaction{}, false
	}
	return entry.tx, true
}

// PendingCount is the number of non-terminal entries, recomputed on every
// mutation for cheap UI badges.
func (w *TxWatcher) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pendingCountLocked()
}

func (w *TxWatcher) pendingCountLocked() int {
	count := 0
	for _, entry := range w.entries {
		if !entry.tx.IsTerminal() {
			count++
		}
	}
	return count
}

// Subscribe registers a listener invoked with the pending count after
// every store mutation. The returned func removes the listener.
func (w *TxWatcher) Subscribe(fn func(pending int)) func() {
	w.mu.Lock()
	id := w.nextSubID
	w.nextSubID++
	w.listeners[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

// notify fans the current pending count out to listeners, outside the lock.
func (w *TxWatcher) notify() {
	w.mu.Lock()
	pending := w.pendingCountLocked()
	fns := make([]func(int), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(pending)
	}
}

// Acknowledge removes one entry ahead of the sweeper, e.g. when the user
// navigated away from the surface that cared about it.
func (w *TxWatcher) Acknowledge(txHash string) {
	w.mu.Lock()
	if cancel, ok := w.cancels[txHash]; ok {
		cancel()
		delete(w.cancels, txHash)
	}
	_, existed := w.entries[txHash]
	delete(w.entries, txHash)
	w.mu.Unlock()

	if existed {
		w.notify()
	}
}

// Purge removes every entry and stops its polling immediately. Logout
// calls this rather than waiting for the next sweep.
func (w *TxWatcher) Purge() {
	w.mu.Lock()
	for hash, cancel := range w.cancels {
		cancel()
		delete(w.cancels, hash)
	}
	purged := len(w.entries)
	w.entries = make(map[string]*watchedEntry)
	w.mu.Unlock()

	if purged > 0 {
		w.logger.Info("purged watched transactions", zap.Int("count", purged))
		w.notify()
	}
}

// StartSweeper runs the periodic cleanup pass until the watcher closes.
// The sweeper only removes, never advances.
func (w *TxWatcher) StartSweeper() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-w.rootCtx.Done():
				return
			case <-ticker.C:
				w.SweepOnce(time.Now())
			}
		}
	}()
}

// SweepOnce evicts terminal entries whose grace window has passed. A
// non-terminal entry is never removed regardless of age.
func (w *TxWatcher) SweepOnce(now time.Time) int {
	w.mu.Lock()
	removed := 0
	for hash, entry := range w.entries {
		if !entry.tx.IsTerminal() {
			continue
		}
		if now.Sub(entry.tx.TerminalAt) > w.cfg.TerminalGrace {
			if cancel, ok := w.cancels[hash]; ok {
				cancel()
				delete(w.cancels, hash)
			}
			delete(w.entries, hash)
			removed++
		}
	}
	w.mu.Unlock()

	if removed > 0 {
		w.logger.Debug("cleanup sweep removed entries", zap.Int("count", removed))
		w.notify()
	}
	return removed
}

// Close cancels every poll task and the sweeper and waits for them to
// stop. Entries are left in place; Close tears down scheduling, not state.
func (w *TxWatcher) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.rootCancel()
	w.wg.Wait()
}
