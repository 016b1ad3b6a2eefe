package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/jaakkos/dao-ledger/internal/app"
	"github.com/jaakkos/dao-ledger/internal/domain"
)

// TraceEntry records one replayed step.
type TraceEntry struct {
	Seq        int     `json:"seq"`
	Op         string  `json:"op"`
	Voter      string  `json:"voter,omitempty"`
	ProposalID *uint64 `json:"proposal_id,omitempty"`
	Outcome    string  `json:"outcome,omitempty"`
}

// Result is the outcome of replaying a scenario.
type Result struct {
	Scenario string          `json:"scenario"`
	Pass     bool            `json:"pass"`
	Trace    []TraceEntry    `json:"trace"`
	Final    domain.Snapshot `json:"final"`
	Winner   *domain.Tally   `json:"winner,omitempty"`
	Errors   []string        `json:"errors,omitempty"`
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// JSON renders the result as indented JSON with a trailing newline.
func (r *Result) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Run replays sc against a fresh in-memory ledger. Expectation mismatches are
// collected in the result; an error means the scenario could not be run.
func Run(ctx context.Context, sc *Scenario, logger *log.Logger) (*Result, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	store := app.NewStore(nil, nil, logger)
	store.Initialize()
	svc := app.NewVotingService(store, logger)

	res := &Result{Scenario: sc.Name, Pass: true, Trace: []TraceEntry{}}
	for i, st := range sc.Steps {
		entry := TraceEntry{Seq: i + 1, Op: st.Op, Voter: st.Voter}
		if err := replayStep(ctx, sc, svc, st, &entry, res); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
		res.Trace = append(res.Trace, entry)
	}

	res.Final = svc.Snapshot()
	if leader, ok := svc.ConcludeVoting(); ok {
		res.Winner = &leader
	}
	if sc.VoteCounts != nil {
		checkCounts(res, sc.VoteCounts, svc.VoteCounts())
	}
	return res, nil
}

func replayStep(ctx context.Context, sc *Scenario, svc *app.VotingService, st Step, entry *TraceEntry, res *Result) error {
	switch st.Op {
	case OpRegisterVoter:
		id, err := sc.resolve(st.Voter)
		if err != nil {
			return err
		}
		return svc.RegisterVoter(ctx, id, st.Name)

	case OpRemoveVoter:
		id, err := sc.resolve(st.Voter)
		if err != nil {
			return err
		}
		return svc.RemoveVoter(ctx, id)

	case OpRegisterProposal:
		pid := st.ProposalID
		entry.ProposalID = &pid
		return svc.RegisterProposal(ctx, pid, st.Description)

	case OpVote:
		id, err := sc.resolve(st.Voter)
		if err != nil {
			return err
		}
		pid := st.ProposalID
		entry.ProposalID = &pid
		outcome, err := svc.Vote(ctx, id, pid)
		if err != nil {
			return err
		}
		entry.Outcome = outcome.String()
		if st.Expect != "" && st.Expect != entry.Outcome {
			res.addError("step %d: vote %s on %d: got %s, want %s", entry.Seq, st.Voter, pid, entry.Outcome, st.Expect)
		}

	case OpConclude:
		leader, ok := svc.ConcludeVoting()
		if !ok {
			entry.Outcome = ExpectNone
		} else {
			entry.Outcome = fmt.Sprintf("%d:%d", leader.ProposalID, leader.Votes)
		}
		switch {
		case st.Expect == ExpectNone && ok:
			res.addError("step %d: conclude: got %s, want none", entry.Seq, entry.Outcome)
		case st.Winner != nil && !ok:
			res.addError("step %d: conclude: got none, want %d:%d", entry.Seq, st.Winner.ProposalID, st.Winner.Votes)
		case st.Winner != nil && (leader.ProposalID != st.Winner.ProposalID || leader.Votes != st.Winner.Votes):
			res.addError("step %d: conclude: got %s, want %d:%d", entry.Seq, entry.Outcome, st.Winner.ProposalID, st.Winner.Votes)
		}
	}
	return nil
}

func checkCounts(res *Result, want, got map[uint64]uint64) {
	for _, id := range sortedIDs(want) {
		n := want[id]
		g, ok := got[id]
		if !ok {
			res.addError("vote_counts: proposal %d missing", id)
			continue
		}
		if g != n {
			res.addError("vote_counts: proposal %d has %d votes, want %d", id, g, n)
		}
	}
	for _, id := range sortedIDs(got) {
		if _, ok := want[id]; !ok {
			res.addError("vote_counts: unexpected proposal %d", id)
		}
	}
}

func sortedIDs(m map[uint64]uint64) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
