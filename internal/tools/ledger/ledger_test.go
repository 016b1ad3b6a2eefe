package ledger

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jaakkos/dao-ledger/internal/domain"
)

const (
	alice = "0x0000000000000000000000000000000000000000000000000000000000000001"
	bob   = "0000000000000000000000000000000000000000000000000000000000000002"
)

func TestVoteFlow(t *testing.T) {
	srv := testServer(newTestService())

	mustCall(t, srv, "register_proposal", map[string]any{"proposal_id": 1, "description": "Budget"})
	mustCall(t, srv, "register_proposal", map[string]any{"proposal_id": 2, "description": "Policy"})
	text := mustCall(t, srv, "register_voter", map[string]any{"voter": alice, "name": "N"})
	if !strings.Contains(text, "registered") {
		t.Errorf("register_voter text = %q", text)
	}

	outcomes := []struct {
		proposal any
		want     string
		counted  bool
	}{
		{1, "accepted", true},
		{2, "accepted", true},
		{1, "already_voted", false},
		{"2", "already_voted", false},
		{99, "unknown_proposal", false},
	}
	for _, o := range outcomes {
		var res voteResult
		decode(t, mustCall(t, srv, "vote", map[string]any{"voter": alice, "proposal_id": o.proposal}), &res)
		if res.Outcome.String() != o.want || res.Counted != o.counted {
			t.Errorf("vote on %v = %+v, want %s counted=%v", o.proposal, res, o.want, o.counted)
		}
	}

	var tallies []domain.Tally
	decode(t, mustCall(t, srv, "get_vote_counts", nil), &tallies)
	want := []domain.Tally{{ProposalID: 1, Votes: 1}, {ProposalID: 2, Votes: 1}}
	if len(tallies) != 2 || tallies[0] != want[0] || tallies[1] != want[1] {
		t.Errorf("get_vote_counts = %+v, want %+v", tallies, want)
	}

	var conclusion conclusionResult
	decode(t, mustCall(t, srv, "conclude_voting", nil), &conclusion)
	if !conclusion.Concluded || conclusion.Winner == nil || *conclusion.Winner != (domain.Tally{ProposalID: 1, Votes: 1}) {
		t.Errorf("conclude_voting = %+v, want proposal 1 with 1 vote", conclusion)
	}
}

func TestVote_UnknownVoterIsNotAnError(t *testing.T) {
	srv := testServer(newTestService())
	mustCall(t, srv, "register_proposal", map[string]any{"proposal_id": 1})

	var res voteResult
	decode(t, mustCall(t, srv, "vote", map[string]any{"voter": bob, "proposal_id": 1}), &res)
	if res.Outcome != domain.VoteUnknownVoter || res.Counted {
		t.Errorf("vote = %+v, want unknown_voter", res)
	}

	var info voterInfoResult
	decode(t, mustCall(t, srv, "get_voter_info", map[string]any{"voter": bob}), &info)
	if info.Registered {
		t.Error("a rejected vote must not register the voter")
	}
}

func TestConcludeVoting_Empty(t *testing.T) {
	srv := testServer(newTestService())
	var conclusion conclusionResult
	decode(t, mustCall(t, srv, "conclude_voting", nil), &conclusion)
	if conclusion.Concluded || conclusion.Winner != nil {
		t.Errorf("conclude_voting on empty ledger = %+v", conclusion)
	}
}

func TestRemoveVoter(t *testing.T) {
	srv := testServer(newTestService())
	mustCall(t, srv, "register_proposal", map[string]any{"proposal_id": 1})
	mustCall(t, srv, "register_voter", map[string]any{"voter": alice, "name": "N"})
	mustCall(t, srv, "vote", map[string]any{"voter": alice, "proposal_id": 1})
	mustCall(t, srv, "remove_voter", map[string]any{"voter": alice})

	var info voterInfoResult
	decode(t, mustCall(t, srv, "get_voter_info", map[string]any{"voter": alice}), &info)
	if info.Registered {
		t.Error("voter should be gone")
	}

	var tallies []domain.Tally
	decode(t, mustCall(t, srv, "get_vote_counts", nil), &tallies)
	if len(tallies) != 1 || tallies[0].Votes != 1 {
		t.Errorf("tally should survive removal, got %+v", tallies)
	}

	// Removing again is a silent no-op.
	mustCall(t, srv, "remove_voter", map[string]any{"voter": alice})
}

func TestGetLedgerState(t *testing.T) {
	srv := testServer(newTestService())
	mustCall(t, srv, "register_proposal", map[string]any{"proposal_id": "18446744073709551615", "description": "max"})
	mustCall(t, srv, "register_voter", map[string]any{"voter": bob, "name": "B"})

	var snap domain.Snapshot
	decode(t, mustCall(t, srv, "get_ledger_state", nil), &snap)
	if len(snap.Proposals) != 1 || snap.Proposals[0].ID != 18446744073709551615 {
		t.Errorf("proposals = %+v", snap.Proposals)
	}
	if len(snap.Voters) != 1 || snap.Voters[0].Voter.Name != "B" || !snap.Voters[0].Voter.Eligible {
		t.Errorf("voters = %+v", snap.Voters)
	}
}

func TestGetProposalsAndSummary(t *testing.T) {
	srv := testServer(newTestService())
	mustCall(t, srv, "register_proposal", map[string]any{"proposal_id": 3, "description": "C"})
	mustCall(t, srv, "register_proposal", map[string]any{"proposal_id": 1, "description": "A"})

	var proposals []domain.Proposal
	decode(t, mustCall(t, srv, "get_proposals", nil), &proposals)
	if len(proposals) != 2 || proposals[0].ID != 1 || proposals[1].ID != 3 {
		t.Errorf("get_proposals = %+v, want sorted [1 3]", proposals)
	}

	var sum struct {
		Revision  uint64 `json:"revision"`
		Proposals int    `json:"proposals"`
	}
	decode(t, mustCall(t, srv, "get_summary", nil), &sum)
	if sum.Proposals != 2 || sum.Revision != 2 {
		t.Errorf("get_summary = %+v", sum)
	}
}

func TestArgumentErrors(t *testing.T) {
	srv := testServer(newTestService())

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"missing voter", "register_voter", map[string]any{"name": "x"}, "voter is required"},
		{"short actor", "register_voter", map[string]any{"voter": "0x01"}, "voter"},
		{"missing proposal", "register_proposal", map[string]any{}, "proposal_id is required"},
		{"negative proposal", "register_proposal", map[string]any{"proposal_id": -1}, "non-negative"},
		{"fractional proposal", "vote", map[string]any{"voter": alice, "proposal_id": 1.5}, "non-negative integer"},
		{"bad string proposal", "vote", map[string]any{"voter": alice, "proposal_id": "abc"}, "unsigned integer"},
		{"wrong type", "vote", map[string]any{"voter": alice, "proposal_id": true}, "must be a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := callTool(t, srv, tt.tool, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("%s error = %v, want containing %q", tt.tool, err, tt.want)
			}
		})
	}
}

func TestWithToolFilter(t *testing.T) {
	enabled := map[string]bool{"get_vote_counts": true}
	srv := testServer(newTestService(), WithToolFilter(func(name string) bool { return enabled[name] }))

	if _, err := callTool(t, srv, "get_vote_counts", nil); err != nil {
		t.Errorf("enabled tool failed: %v", err)
	}
	if _, err := callTool(t, srv, "vote", map[string]any{"voter": alice, "proposal_id": 1}); err == nil {
		t.Error("disabled tool should not be callable")
	}
}

func TestToolNames(t *testing.T) {
	names := ToolNames()
	if len(names) != len(tools) {
		t.Fatalf("ToolNames() = %d names, want %d", len(names), len(tools))
	}
	seen := map[string]bool{}
	for _, n := range names {
		if seen[n] {
			t.Errorf("duplicate tool name %q", n)
		}
		seen[n] = true
	}
	for _, required := range []string{"register_voter", "register_proposal", "vote", "get_proposals", "get_vote_counts", "get_voter_info", "remove_voter", "conclude_voting"} {
		if !seen[required] {
			t.Errorf("missing tool %q", required)
		}
	}
}

func TestStateResource(t *testing.T) {
	srv := testServer(newTestService())
	mustCall(t, srv, "register_proposal", map[string]any{"proposal_id": 5, "description": "E"})

	raw, err := rpc(t, srv, "resources/read", map[string]any{"uri": StateResourceURI})
	if err != nil {
		t.Fatalf("resources/read: %v", err)
	}
	var res struct {
		Contents []struct {
			URI      string `json:"uri"`
			MIMEType string `json:"mimeType"`
			Text     string `json:"text"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(res.Contents) != 1 || res.Contents[0].MIMEType != "application/json" {
		t.Fatalf("contents = %+v", res.Contents)
	}
	var snap domain.Snapshot
	decode(t, res.Contents[0].Text, &snap)
	if len(snap.VoteCounts) != 1 || snap.VoteCounts[0].ProposalID != 5 {
		t.Errorf("state resource = %+v", snap)
	}
}
