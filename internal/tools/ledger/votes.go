package ledger

import (
	"context"
	"log"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/dao-ledger/internal/app"
	"github.com/jaakkos/dao-ledger/internal/domain"
)

// voteResult is the vote payload. Counted is true only for the accepted outcome.
type voteResult struct {
	Voter      string             `json:"voter"`
	ProposalID uint64             `json:"proposal_id"`
	Outcome    domain.VoteOutcome `json:"outcome"`
	Counted    bool               `json:"counted"`
}

func registerVote(s *server.MCPServer, svc *app.VotingService, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("vote",
			mcp.WithDescription("Cast a vote. Votes from unknown or ineligible voters, repeat votes and votes on unknown proposals are not counted; the outcome says which."),
			mcp.WithString("voter", mcp.Required(), mcp.Description(actorDescription)),
			mcp.WithNumber("proposal_id", mcp.Required(), mcp.Description(proposalIDDescription)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			voter, err := requireActor(args, "voter")
			if err != nil {
				return nil, err
			}
			id, err := requireUint64(args, "proposal_id")
			if err != nil {
				return nil, err
			}

			outcome, err := svc.Vote(ctx, voter, id)
			if err != nil {
				return nil, err
			}
			return jsonResult(voteResult{
				Voter:      voter.String(),
				ProposalID: id,
				Outcome:    outcome,
				Counted:    outcome.Accepted(),
			})
		},
	)
}

func registerGetVoteCounts(s *server.MCPServer, svc *app.VotingService, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("get_vote_counts",
			mcp.WithDescription("Return the tally of every proposal, ordered by proposal ID."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			counts := svc.VoteCounts()
			tallies := make([]domain.Tally, 0, len(counts))
			for id, n := range counts {
				tallies = append(tallies, domain.Tally{ProposalID: id, Votes: n})
			}
			sort.Slice(tallies, func(i, j int) bool { return tallies[i].ProposalID < tallies[j].ProposalID })
			return jsonResult(tallies)
		},
	)
}

// conclusionResult is the conclude_voting payload; Winner is nil without proposals.
type conclusionResult struct {
	Concluded bool          `json:"concluded"`
	Winner    *domain.Tally `json:"winner,omitempty"`
}

func registerConcludeVoting(s *server.MCPServer, svc *app.VotingService, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("conclude_voting",
			mcp.WithDescription("Report the proposal with the most votes. Ties go to the lowest proposal ID. Voting stays open; this only reads the tallies."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			leader, ok := svc.ConcludeVoting()
			if !ok {
				return jsonResult(conclusionResult{})
			}
			return jsonResult(conclusionResult{Concluded: true, Winner: &leader})
		},
	)
}

func registerGetLedgerState(s *server.MCPServer, svc *app.VotingService, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("get_ledger_state",
			mcp.WithDescription("Return the full ledger as sorted key/value lists: admins, voters, proposals, vote counts and vote histories."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return jsonResult(svc.Snapshot())
		},
	)
}

func registerGetSummary(s *server.MCPServer, svc *app.VotingService, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("get_summary",
			mcp.WithDescription("Return voter, proposal and vote totals with the current leader."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return jsonResult(svc.Summary())
		},
	)
}
