// Package scenario replays scripted ledger operations against a fresh
// in-memory store and checks the outcomes they produce.
package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jaakkos/dao-ledger/internal/domain"
)

// Step operations.
const (
	OpRegisterVoter    = "register_voter"
	OpRegisterProposal = "register_proposal"
	OpVote             = "vote"
	OpRemoveVoter      = "remove_voter"
	OpConclude         = "conclude"
)

// ExpectNone is the conclude expectation for a ledger without proposals.
const ExpectNone = "none"

// Scenario is a named sequence of ledger operations.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Actors maps short aliases used in steps to hex actor ids.
	Actors map[string]string `yaml:"actors,omitempty"`

	Steps []Step `yaml:"steps"`

	// VoteCounts, when set, must equal the final tallies exactly.
	VoteCounts map[uint64]uint64 `yaml:"vote_counts,omitempty"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op          string `yaml:"op"`
	Voter       string `yaml:"voter,omitempty"`
	Name        string `yaml:"name,omitempty"`
	ProposalID  uint64 `yaml:"proposal_id,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Expect is the vote outcome name for vote steps, or "none" for a
	// conclude step on an empty ledger.
	Expect string `yaml:"expect,omitempty"`

	// Winner is the expected conclude result.
	Winner *TallyExpect `yaml:"winner,omitempty"`
}

// TallyExpect is an expected (proposal, votes) pair.
type TallyExpect struct {
	ProposalID uint64 `yaml:"proposal_id"`
	Votes      uint64 `yaml:"votes"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks that every step names a known operation with the
// fields it needs and that every voter resolves.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return fmt.Errorf("scenario: name is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("scenario %s: no steps", sc.Name)
	}
	for i, st := range sc.Steps {
		switch st.Op {
		case OpRegisterVoter, OpVote, OpRemoveVoter:
			if _, err := sc.resolve(st.Voter); err != nil {
				return fmt.Errorf("scenario %s: step %d (%s): %w", sc.Name, i+1, st.Op, err)
			}
		case OpRegisterProposal:
		case OpConclude:
			if st.Expect != "" && st.Expect != ExpectNone {
				return fmt.Errorf("scenario %s: step %d: conclude expects %q or a winner, got %q", sc.Name, i+1, ExpectNone, st.Expect)
			}
		default:
			return fmt.Errorf("scenario %s: step %d: unknown op %q", sc.Name, i+1, st.Op)
		}
		if st.Op == OpVote && st.Expect != "" {
			if _, err := domain.ParseVoteOutcome(st.Expect); err != nil {
				return fmt.Errorf("scenario %s: step %d: %w", sc.Name, i+1, err)
			}
		}
	}
	return nil
}

// resolve turns an alias or hex string into an actor id.
func (sc *Scenario) resolve(voter string) (domain.ActorID, error) {
	if voter == "" {
		return domain.ActorID{}, fmt.Errorf("voter is required")
	}
	if hex, ok := sc.Actors[voter]; ok {
		voter = hex
	}
	return domain.ParseActorID(voter)
}
