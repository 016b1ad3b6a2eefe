package postgres

import (
	"math"
	"os"
	"reflect"
	"testing"

	"github.com/jaakkos/dao-ledger/internal/domain"
)

func actor(b byte) domain.ActorID {
	var id domain.ActorID
	id[31] = b
	return id
}

func sampleState() *domain.LedgerState {
	state := domain.NewLedgerState()
	state.Admins = []domain.ActorID{actor(3)}
	state.Voters[actor(1)] = domain.Voter{Name: "alice", Eligible: true}
	state.Voters[actor(2)] = domain.Voter{Name: "bob", Eligible: false}
	state.Proposals[1] = domain.Proposal{ID: 1, Description: "Budget"}
	state.Proposals[math.MaxUint64] = domain.Proposal{ID: math.MaxUint64, Description: "max"}
	state.VoteCounts[1] = 1
	state.VoteCounts[math.MaxUint64] = 1
	state.VotesCast[actor(1)] = []uint64{math.MaxUint64, 1}
	return state
}

func TestModelsRoundtrip(t *testing.T) {
	state := sampleState()
	rows := toModels(state)

	if len(rows.history) != 2 || rows.history[0].Seq != 0 || rows.history[1].Seq != 1 {
		t.Fatalf("history rows = %+v", rows.history)
	}

	loaded, err := fromModels(rows.admins, rows.voters, rows.proposals, rows.counts, rows.history)
	if err != nil {
		t.Fatalf("fromModels: %v", err)
	}
	if !reflect.DeepEqual(loaded.Snapshot(), state.Snapshot()) {
		t.Errorf("roundtrip snapshot = %+v\nwant %+v", loaded.Snapshot(), state.Snapshot())
	}
}

func TestFromModelsRejectsBadActor(t *testing.T) {
	_, err := fromModels(nil, []voterModel{{Actor: "0xnothex", Name: "x"}}, nil, nil, nil)
	if err == nil {
		t.Fatal("fromModels should reject malformed actor ids")
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("New should fail without a dsn")
	}
}

// TestStoreRoundtrip runs against a live database when DAO_LEDGER_TEST_POSTGRES_DSN is set.
func TestStoreRoundtrip(t *testing.T) {
	dsn := os.Getenv("DAO_LEDGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DAO_LEDGER_TEST_POSTGRES_DSN not set")
	}
	store, err := New(dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	state := sampleState()
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

	if err := store.Save(domain.NewLedgerState()); err != nil {
		t.Fatalf("Save empty: %v", err)
	}
	loaded, err = store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Voters) != 0 || len(loaded.VotesCast) != 0 {
		t.Errorf("empty save should clear tables, got %+v", loaded)
	}
}
