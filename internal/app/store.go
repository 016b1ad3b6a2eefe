package app

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/jaakkos/dao-ledger/internal/domain"
)

// ErrNoChange may be returned by a Run callback to discard its work without
// persisting, bumping the revision, or signalling watchers. Run then returns nil.
var ErrNoChange = errors.New("no change")

// Triggerable is something that can be triggered after a committed write (e.g. Notifier).
type Triggerable interface {
	Trigger()
}

// Store owns the single ledger state and serializes every access to it.
// It must be initialized (Initialize or Restore) before Run or Query; using it
// earlier is a programming error and panics.
type Store struct {
	repo     StateRepository // optional; nil keeps the ledger in memory only
	policy   Policy          // optional; supplies the signal file path
	logger   *log.Logger
	mu       sync.Mutex
	state    *domain.LedgerState
	revision uint64
	notifier Triggerable // optional; set via SetNotifier after construction
}

// NewStore returns an uninitialized Store.
func NewStore(repo StateRepository, policy Policy, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{repo: repo, policy: policy, logger: logger}
}

// SetNotifier attaches a Triggerable (e.g. *Notifier) that is poked after every commit.
func (s *Store) SetNotifier(n Triggerable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Initialize installs an empty ledger. Calling it again silently replaces the
// current ledger; the replacement is logged.
func (s *Store) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != nil {
		s.logger.Printf("Warning: ledger re-initialized at revision %d, previous state discarded", s.revision)
	}
	s.state = domain.NewLedgerState()
	s.revision = 0
}

// Restore loads the persisted ledger from the repository. Without a repository
// it behaves like Initialize.
func (s *Store) Restore() error {
	if s.repo == nil {
		s.Initialize()
		return nil
	}
	state, err := s.repo.Load()
	if err != nil {
		return fmt.Errorf("state load: %w", err)
	}
	EnsureStateMaps(state)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.revision = 0
	return nil
}

// Initialized reports whether Initialize or Restore has run.
func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != nil
}

// Revision returns the number of commits since the store was initialized.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Run hands fn a private copy of the ledger. If fn succeeds the copy is saved
// and becomes the ledger; otherwise it is dropped. A panic in fn leaves the
// committed ledger untouched. Callers must not retain state after fn returns.
func (s *Store) Run(fn func(*domain.LedgerState) error) error {
	_, err := s.Commit(fn)
	return err
}

// Commit is Run that also returns the revision the change was committed at.
// The revision is 0 when nothing was committed.
func (s *Store) Commit(fn func(*domain.LedgerState) error) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.mustState().Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, ErrNoChange) {
			return 0, nil
		}
		return 0, err
	}
	if s.repo != nil {
		if err := s.repo.Save(next); err != nil {
			return 0, fmt.Errorf("state save: %w", err)
		}
	}
	s.state = next
	s.revision++

	if s.policy != nil {
		if err := TouchSignal(s.policy.SignalFilePath(), s.revision); err != nil {
			s.logger.Printf("Warning: %v", err)
		}
	}
	if s.notifier != nil {
		s.notifier.Trigger()
	}
	return s.revision, nil
}

// Query runs fn against the committed ledger without saving. fn must not mutate state.
func (s *Store) Query(fn func(*domain.LedgerState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.mustState())
}

func (s *Store) mustState() *domain.LedgerState {
	if s.state == nil {
		panic("ledger: state is not initialized")
	}
	return s.state
}
