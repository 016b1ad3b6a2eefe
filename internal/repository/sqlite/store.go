package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jaakkos/dao-ledger/internal/domain"
)

// schemaVersion is written to meta on every save. Databases carrying a
// higher version are refused.
const schemaVersion = 1

// Proposal IDs and tallies are unsigned 64-bit; they are stored as the
// bit-identical signed INTEGER and converted back on load.
const schema = `
CREATE TABLE IF NOT EXISTS admins (
	position INTEGER PRIMARY KEY,
	actor TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS voters (
	actor TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	eligible INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS proposals (
	id INTEGER PRIMARY KEY,
	description TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS vote_counts (
	proposal_id INTEGER PRIMARY KEY,
	votes INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS votes_cast (
	voter TEXT NOT NULL,
	seq INTEGER NOT NULL,
	proposal_id INTEGER NOT NULL,
	PRIMARY KEY (voter, seq)
);
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// indexes for history lookups by proposal (tally audits)
const indexes = `
CREATE INDEX IF NOT EXISTS idx_votes_cast_proposal ON votes_cast(proposal_id);
`

// Store implements app.StateRepository using SQLite.
type Store struct {
	db *sql.DB
}

// New opens the SQLite database at path (creating parent dirs and schema).
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	if _, err := db.Exec(indexes); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite indexes: %w", err)
	}
	if err := checkSchemaVersion(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// checkSchemaVersion rejects a database saved by a newer schema. A database
// that was never saved has no version and is accepted.
func checkSchemaVersion(db *sql.DB) error {
	var raw string
	err := db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&raw)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("meta schema_version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("meta schema_version %q: %w", raw, err)
	}
	if v > schemaVersion {
		return fmt.Errorf("sqlite schema version %d is newer than supported version %d", v, schemaVersion)
	}
	return nil
}

// Close releases the database connection. Call on shutdown for clean exit.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func parseActor(s, context string) (domain.ActorID, error) {
	id, err := domain.ParseActorID(s)
	if err != nil {
		return domain.ActorID{}, fmt.Errorf("%s: %w", context, err)
	}
	return id, nil
}

// Load implements app.StateRepository.
func (s *Store) Load() (*domain.LedgerState, error) {
	state := domain.NewLedgerState()

	rows, err := s.db.Query("SELECT actor FROM admins ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("admins: %w", err)
	}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			_ = rows.Close()
			return nil, err
		}
		id, err := parseActor(raw, "admins")
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		state.Admins = append(state.Admins, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("admins iteration: %w", err)
	}

	rows, err = s.db.Query("SELECT actor, name, eligible FROM voters")
	if err != nil {
		return nil, fmt.Errorf("voters: %w", err)
	}
	for rows.Next() {
		var raw string
		var v domain.Voter
		var eligible int
		if err := rows.Scan(&raw, &v.Name, &eligible); err != nil {
			_ = rows.Close()
			return nil, err
		}
		id, err := parseActor(raw, "voters")
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		v.Eligible = eligible != 0
		state.Voters[id] = v
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("voters iteration: %w", err)
	}

	rows, err = s.db.Query("SELECT id, description FROM proposals")
	if err != nil {
		return nil, fmt.Errorf("proposals: %w", err)
	}
	for rows.Next() {
		var id int64
		var p domain.Proposal
		if err := rows.Scan(&id, &p.Description); err != nil {
			_ = rows.Close()
			return nil, err
		}
		p.ID = uint64(id)
		state.Proposals[p.ID] = p
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("proposals iteration: %w", err)
	}

	rows, err = s.db.Query("SELECT proposal_id, votes FROM vote_counts")
	if err != nil {
		return nil, fmt.Errorf("vote_counts: %w", err)
	}
	for rows.Next() {
		var id, votes int64
		if err := rows.Scan(&id, &votes); err != nil {
			_ = rows.Close()
			return nil, err
		}
		state.VoteCounts[uint64(id)] = uint64(votes)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vote_counts iteration: %w", err)
	}

	rows, err = s.db.Query("SELECT voter, proposal_id FROM votes_cast ORDER BY voter, seq")
	if err != nil {
		return nil, fmt.Errorf("votes_cast: %w", err)
	}
	for rows.Next() {
		var raw string
		var id int64
		if err := rows.Scan(&raw, &id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		voter, err := parseActor(raw, "votes_cast")
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		state.VotesCast[voter] = append(state.VotesCast[voter], uint64(id))
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("votes_cast iteration: %w", err)
	}

	return state, nil
}

// Save implements app.StateRepository.
func (s *Store) Save(state *domain.LedgerState) error {
	if state == nil {
		return fmt.Errorf("state is nil")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range []string{"admins", "voters", "proposals", "vote_counts", "votes_cast", "meta"} {
		if _, err := tx.Exec("DELETE FROM " + t); err != nil {
			return err
		}
	}

	meta := map[string]string{
		"schema_version": strconv.Itoa(schemaVersion),
		"saved_at":       time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.Exec("INSERT INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return err
		}
	}

	for i, a := range state.Admins {
		if _, err := tx.Exec("INSERT INTO admins (position, actor) VALUES (?, ?)", i, a.String()); err != nil {
			return err
		}
	}

	for id, v := range state.Voters {
		eligible := 0
		if v.Eligible {
			eligible = 1
		}
		if _, err := tx.Exec("INSERT INTO voters (actor, name, eligible) VALUES (?, ?, ?)",
			id.String(), v.Name, eligible); err != nil {
			return err
		}
	}

	for id, p := range state.Proposals {
		if _, err := tx.Exec("INSERT INTO proposals (id, description) VALUES (?, ?)",
			int64(id), p.Description); err != nil {
			return err
		}
	}

	for id, votes := range state.VoteCounts {
		if _, err := tx.Exec("INSERT INTO vote_counts (proposal_id, votes) VALUES (?, ?)",
			int64(id), int64(votes)); err != nil {
			return err
		}
	}

	for voter, ids := range state.VotesCast {
		for seq, id := range ids {
			if _, err := tx.Exec("INSERT INTO votes_cast (voter, seq, proposal_id) VALUES (?, ?, ?)",
				voter.String(), seq, int64(id)); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// SavedAt returns the time of the last successful Save, or the zero time if none.
func (s *Store) SavedAt() (time.Time, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'saved_at'").Scan(&v)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("meta saved_at: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("meta saved_at %q: %w", v, err)
	}
	return t, nil
}
