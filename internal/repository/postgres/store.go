// Package postgres implements app.StateRepository on PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/jaakkos/dao-ledger/internal/domain"
)

const opTimeout = 10 * time.Second

// Store implements app.StateRepository using PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New connects to dsn, verifies the connection and migrates the ledger tables.
func New(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return Open(db)
}

// Open wraps an existing gorm handle and migrates the ledger tables.
func Open(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(models()...); err != nil {
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.db = nil
	return sqlDB.Close()
}

// Load implements app.StateRepository.
func (s *Store) Load() (*domain.LedgerState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	db := s.db.WithContext(ctx)

	var (
		admins    []adminModel
		voters    []voterModel
		proposals []proposalModel
		counts    []voteCountModel
		history   []voteCastModel
	)
	if err := db.Order("position ASC").Find(&admins).Error; err != nil {
		return nil, fmt.Errorf("admins: %w", err)
	}
	if err := db.Find(&voters).Error; err != nil {
		return nil, fmt.Errorf("voters: %w", err)
	}
	if err := db.Find(&proposals).Error; err != nil {
		return nil, fmt.Errorf("proposals: %w", err)
	}
	if err := db.Find(&counts).Error; err != nil {
		return nil, fmt.Errorf("vote_counts: %w", err)
	}
	if err := db.Order("voter ASC").Order("seq ASC").Find(&history).Error; err != nil {
		return nil, fmt.Errorf("votes_cast: %w", err)
	}
	return fromModels(admins, voters, proposals, counts, history)
}

// Save implements app.StateRepository. The previous contents are replaced in one transaction.
func (s *Store) Save(state *domain.LedgerState) error {
	if state == nil {
		return fmt.Errorf("state is nil")
	}
	rows := toModels(state)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wipe := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, m := range models() {
			if err := wipe.Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}
		if len(rows.admins) > 0 {
			if err := tx.Create(&rows.admins).Error; err != nil {
				return fmt.Errorf("insert admins: %w", err)
			}
		}
		if len(rows.voters) > 0 {
			if err := tx.Create(&rows.voters).Error; err != nil {
				return fmt.Errorf("insert voters: %w", err)
			}
		}
		if len(rows.proposals) > 0 {
			if err := tx.Create(&rows.proposals).Error; err != nil {
				return fmt.Errorf("insert proposals: %w", err)
			}
		}
		if len(rows.counts) > 0 {
			if err := tx.Create(&rows.counts).Error; err != nil {
				return fmt.Errorf("insert vote_counts: %w", err)
			}
		}
		if len(rows.history) > 0 {
			if err := tx.CreateInBatches(&rows.history, 500).Error; err != nil {
				return fmt.Errorf("insert votes_cast: %w", err)
			}
		}
		return nil
	})
}
