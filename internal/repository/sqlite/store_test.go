package sqlite

import (
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jaakkos/dao-ledger/internal/domain"
)

func actor(b byte) domain.ActorID {
	var id domain.ActorID
	id[31] = b
	return id
}

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "state.sqlite"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRoundtrip(t *testing.T) {
	store := openStore(t)

	state := domain.NewLedgerState()
	state.Admins = []domain.ActorID{actor(9), actor(1)}
	state.Voters[actor(1)] = domain.Voter{Name: "alice", Eligible: true}
	state.Voters[actor(2)] = domain.Voter{Name: "bob", Eligible: false}
	state.Proposals[1] = domain.Proposal{ID: 1, Description: "Budget"}
	state.Proposals[2] = domain.Proposal{ID: 2, Description: "Policy"}
	state.VoteCounts[1] = 1
	state.VoteCounts[2] = 1
	state.VotesCast[actor(1)] = []uint64{2, 1}

	if err := store.Save(state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Snapshot(), state.Snapshot()) {
		t.Errorf("loaded snapshot = %+v\nwant %+v", loaded.Snapshot(), state.Snapshot())
	}
	// History order is part of the state.
	if got := loaded.VotesCast[actor(1)]; !reflect.DeepEqual(got, []uint64{2, 1}) {
		t.Errorf("VotesCast order = %v, want [2 1]", got)
	}
	if !reflect.DeepEqual(loaded.Admins, []domain.ActorID{actor(9), actor(1)}) {
		t.Errorf("Admins = %v", loaded.Admins)
	}
}

func TestStoreLoadEmpty(t *testing.T) {
	store := openStore(t)

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Voters) != 0 || len(loaded.Proposals) != 0 || loaded.VotesCast == nil {
		t.Errorf("empty database should load an empty, initialized state: %+v", loaded)
	}
}

func TestStoreSaveReplacesPreviousState(t *testing.T) {
	store := openStore(t)

	first := domain.NewLedgerState()
	first.Voters[actor(1)] = domain.Voter{Name: "alice", Eligible: true}
	first.VotesCast[actor(1)] = []uint64{1}
	if err := store.Save(first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := domain.NewLedgerState()
	second.Proposals[3] = domain.Proposal{ID: 3, Description: "Grants"}
	second.VoteCounts[3] = 0
	if err := store.Save(second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Voters) != 0 || len(loaded.VotesCast) != 0 {
		t.Errorf("second save should replace voters and histories, got %+v", loaded)
	}
	if _, ok := loaded.Proposals[3]; !ok {
		t.Error("proposal 3 missing after second save")
	}
}

func TestStoreUint64Extremes(t *testing.T) {
	store := openStore(t)

	state := domain.NewLedgerState()
	state.Proposals[math.MaxUint64] = domain.Proposal{ID: math.MaxUint64, Description: "max"}
	state.VoteCounts[math.MaxUint64] = math.MaxUint64 - 1
	state.Voters[actor(1)] = domain.Voter{Name: "alice", Eligible: true}
	state.VotesCast[actor(1)] = []uint64{math.MaxUint64}
	if err := store.Save(state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.VoteCounts[math.MaxUint64] != math.MaxUint64-1 {
		t.Errorf("VoteCounts[max] = %d", loaded.VoteCounts[math.MaxUint64])
	}
	if !loaded.HasVoted(actor(1), math.MaxUint64) {
		t.Error("history for max proposal id lost")
	}
}

func TestStoreSaveNil(t *testing.T) {
	store := openStore(t)
	if err := store.Save(nil); err == nil {
		t.Error("Save(nil) should fail")
	}
}

func TestStoreSavedAt(t *testing.T) {
	store := openStore(t)

	at, err := store.SavedAt()
	if err != nil {
		t.Fatalf("SavedAt: %v", err)
	}
	if !at.IsZero() {
		t.Errorf("SavedAt before any save = %v, want zero", at)
	}

	if err := store.Save(domain.NewLedgerState()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	at, err = store.SavedAt()
	if err != nil {
		t.Fatalf("SavedAt: %v", err)
	}
	if at.IsZero() {
		t.Error("SavedAt should be set after Save")
	}
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.sqlite")

	store, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	state := domain.NewLedgerState()
	state.Voters[actor(7)] = domain.Voter{Name: "carol", Eligible: true}
	if err := store.Save(state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_ = store.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	loaded, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Voters[actor(7)].Name != "carol" {
		t.Errorf("voter lost across reopen: %+v", loaded.Voters)
	}
}

func TestStoreClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "closed.sqlite")

	st, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if st.db != nil {
		t.Error("Close should set db to nil")
	}
	// Second Close is no-op
	if err := st.Close(); err != nil {
		t.Errorf("Second Close: %v", err)
	}
}

func TestStoreRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.sqlite")

	store, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Save(domain.NewLedgerState()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.db.Exec("UPDATE meta SET value = '99' WHERE key = 'schema_version'"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = store.Close()

	if _, err := New(path); err == nil {
		t.Fatal("New should refuse a database with a newer schema version")
	}
}

func TestStoreAcceptsCurrentSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.sqlite")

	store, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Save(domain.NewLedgerState()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	var v string
	if err := store.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&v); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if v != "1" {
		t.Errorf("schema_version = %q, want 1", v)
	}
	_ = store.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = reopened.Close()
}
