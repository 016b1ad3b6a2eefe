package ledger

import (
	"context"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/dao-ledger/internal/app"
)

const proposalIDDescription = "Proposal ID (unsigned integer; pass IDs above 2^53 as a decimal string)"

func registerRegisterProposal(s *server.MCPServer, svc *app.VotingService, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("register_proposal",
			mcp.WithDescription("Register a proposal or overwrite an existing one. Its tally is reset to zero; voters who already voted on this ID still cannot vote on it again."),
			mcp.WithNumber("proposal_id", mcp.Required(), mcp.Description(proposalIDDescription)),
			mcp.WithString("description", mcp.Description("Proposal description (may be empty)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			id, err := requireUint64(args, "proposal_id")
			if err != nil {
				return nil, err
			}
			description := optionalString(args, "description", "")

			if err := svc.RegisterProposal(ctx, id, description); err != nil {
				return nil, err
			}
			return mcp.NewToolResultText(fmt.Sprintf("Proposal %d registered: %s", id, app.Truncate(description, 120))), nil
		},
	)
}

func registerGetProposals(s *server.MCPServer, svc *app.VotingService, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("get_proposals",
			mcp.WithDescription("List every registered proposal, ordered by ID."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return jsonResult(svc.Proposals())
		},
	)
}
