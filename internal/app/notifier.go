package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	defaultDebounceMs   = 200
	defaultPollInterval = 10 * time.Second

	// LedgerUpdateMethod is the MCP notification method pushed after commits.
	LedgerUpdateMethod = "notifications/ledger_update"
)

// LedgerUpdateParams is the payload for notifications/ledger_update.
type LedgerUpdateParams struct {
	Summary
	Text string `json:"text"`
}

// Notifier watches the signal file and pushes a ledger summary to connected
// clients whenever the ledger revision changes.
type Notifier struct {
	signalPath   string
	summarize    func() Summary
	pushFunc     func(method string, params any) error
	logger       *log.Logger
	debounceMs   int
	pollInterval time.Duration

	mu            sync.Mutex
	lastPushedRev string
	debounceTimer *time.Timer
	watcher       *fsnotify.Watcher
	useFsnotify   bool
	stopCh        chan struct{}
	doneCh        chan struct{}
	stopOnce      sync.Once
	pushMu        sync.Mutex // serializes checkAndPush so one revision is pushed once
}

// NotifierOption configures the notifier.
type NotifierOption func(*Notifier)

// WithPollInterval sets the fallback poll interval (default 10s).
func WithPollInterval(d time.Duration) NotifierOption {
	return func(n *Notifier) {
		n.pollInterval = d
	}
}

// WithDebounce sets the debounce delay applied to bursts of signal writes.
func WithDebounce(ms int) NotifierOption {
	return func(n *Notifier) {
		n.debounceMs = ms
	}
}

// NewNotifier creates a notifier. summarize is called for each new revision and
// pushFunc receives LedgerUpdateMethod with a LedgerUpdateParams payload.
func NewNotifier(signalPath string, summarize func() Summary, pushFunc func(method string, params any) error, logger *log.Logger, opts ...NotifierOption) *Notifier {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	n := &Notifier{
		signalPath:   signalPath,
		summarize:    summarize,
		pushFunc:     pushFunc,
		logger:       logger,
		debounceMs:   defaultDebounceMs,
		pollInterval: defaultPollInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Start starts the file watcher and fallback poll. Returns when ctx is cancelled or Stop is called.
// If fsnotify fails to initialize, falls back to poll-only mode.
func (n *Notifier) Start(ctx context.Context) {
	defer close(n.doneCh)

	watchDir := filepath.Dir(n.signalPath)
	signalName := filepath.Base(n.signalPath)

	if err := os.MkdirAll(watchDir, 0755); err != nil {
		n.logger.Printf("Notifier: create %s failed (%v)", watchDir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		n.logger.Printf("Notifier: fsnotify init failed (%v), using poll-only", err)
	} else if err := watcher.Add(watchDir); err != nil {
		n.logger.Printf("Notifier: fsnotify add %s failed (%v), using poll-only", watchDir, err)
		_ = watcher.Close()
	} else {
		n.watcher = watcher
		n.useFsnotify = true
	}

	if n.useFsnotify {
		defer n.watcher.Close()
		go n.watchLoop(ctx, signalName)
	}

	n.pollLoop(ctx)
}

// Stop signals the notifier to stop and waits for Start to return.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() { close(n.stopCh) })
	<-n.doneCh
}

// CheckOnce runs one check-and-push cycle.
func (n *Notifier) CheckOnce() {
	n.checkAndPush()
}

// Trigger schedules a check-and-push cycle that ignores the revision dedup.
// Store.Run calls it after every commit because fsnotify may coalesce or miss same-process writes.
func (n *Notifier) Trigger() {
	n.mu.Lock()
	n.lastPushedRev = ""
	n.mu.Unlock()
	n.triggerDebounced()
}

func (n *Notifier) watchLoop(ctx context.Context, signalName string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stopCh:
			return
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != signalName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			n.triggerDebounced()
		case _, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (n *Notifier) triggerDebounced() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.debounceTimer != nil {
		n.debounceTimer.Stop()
	}
	n.debounceTimer = time.AfterFunc(time.Duration(n.debounceMs)*time.Millisecond, n.checkAndPush)
}

func (n *Notifier) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.checkAndPush()
		}
	}
}

func (n *Notifier) checkAndPush() {
	n.pushMu.Lock()
	defer n.pushMu.Unlock()

	rev := n.readSignalRevision()
	if rev == "" {
		return
	}
	n.mu.Lock()
	if rev == n.lastPushedRev {
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	sum := n.summarize()
	if sum.Voters == 0 && sum.Proposals == 0 {
		n.markPushed(rev)
		return
	}

	params := LedgerUpdateParams{Summary: sum, Text: buildSummaryText(sum)}
	if err := n.pushFunc(LedgerUpdateMethod, params); err != nil {
		n.logger.Printf("Notifier: push failed: %v", err)
		return
	}
	n.markPushed(rev)
}

func (n *Notifier) markPushed(rev string) {
	n.mu.Lock()
	n.lastPushedRev = rev
	n.mu.Unlock()
}

func (n *Notifier) readSignalRevision() string {
	data, err := os.ReadFile(n.signalPath)
	if err != nil {
		return ""
	}
	return string(data)
}

func buildSummaryText(sum Summary) string {
	text := fmt.Sprintf("%d vote(s) across %d proposal(s) from %d voter(s)", sum.TotalVotes, sum.Proposals, sum.Voters)
	if sum.Leader != nil {
		text += fmt.Sprintf("; proposal %d leads with %d", sum.Leader.ProposalID, sum.Leader.Votes)
	}
	return text
}
