package repository

import (
	"path/filepath"
	"testing"

	"github.com/jaakkos/dao-ledger/internal/policy"
)

func TestNewStateRepository(t *testing.T) {
	repo, err := NewStateRepository(policy.DriverSQLite, filepath.Join(t.TempDir(), "state.sqlite"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if repo == nil {
		t.Fatal("sqlite repository should not be nil")
	}
	if c, ok := repo.(interface{ Close() error }); ok {
		_ = c.Close()
	}

	repo, err = NewStateRepository(policy.DriverMemory, "")
	if err != nil || repo != nil {
		t.Errorf("memory driver = (%v, %v), want (nil, nil)", repo, err)
	}

	if _, err := NewStateRepository("mongo", ""); err == nil {
		t.Error("unknown driver should fail")
	}

	if _, err := NewStateRepository(policy.DriverPostgres, ""); err == nil {
		t.Error("postgres without dsn should fail")
	}
}
