package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/dao-ledger/internal/app"
)

const actorDescription = "Actor ID: 64 hex digits (32 bytes), optional 0x prefix"

func registerRegisterVoter(s *server.MCPServer, svc *app.VotingService, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("register_voter",
			mcp.WithDescription("Register a voter or overwrite an existing voter's name. The voter is eligible afterwards. Existing vote history is kept."),
			mcp.WithString("voter", mcp.Required(), mcp.Description(actorDescription)),
			mcp.WithString("name", mcp.Description("Display name (may be empty)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			voter, err := requireActor(args, "voter")
			if err != nil {
				return nil, err
			}
			name := optionalString(args, "name", "")

			if err := svc.RegisterVoter(ctx, voter, name); err != nil {
				return nil, err
			}
			return mcp.NewToolResultText(fmt.Sprintf("Voter %s registered as %q", voter, app.Truncate(name, 80))), nil
		},
	)
}

func registerRemoveVoter(s *server.MCPServer, svc *app.VotingService, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("remove_voter",
			mcp.WithDescription("Remove a voter and their vote history. Tallies they contributed to are kept. Removing an unknown voter does nothing."),
			mcp.WithString("voter", mcp.Required(), mcp.Description(actorDescription)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			voter, err := requireActor(req.GetArguments(), "voter")
			if err != nil {
				return nil, err
			}
			if err := svc.RemoveVoter(ctx, voter); err != nil {
				return nil, err
			}
			return mcp.NewToolResultText(fmt.Sprintf("Voter %s removed", voter)), nil
		},
	)
}

// voterInfoResult is the get_voter_info payload.
type voterInfoResult struct {
	Voter      string `json:"voter"`
	Registered bool   `json:"registered"`
	Name       string `json:"name,omitempty"`
	Eligible   bool   `json:"eligible"`
}

func registerGetVoterInfo(s *server.MCPServer, svc *app.VotingService, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("get_voter_info",
			mcp.WithDescription("Look up a voter. registered is false when the voter is unknown."),
			mcp.WithString("voter", mcp.Required(), mcp.Description(actorDescription)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			voter, err := requireActor(req.GetArguments(), "voter")
			if err != nil {
				return nil, err
			}
			info, ok := svc.VoterInfo(voter)
			return jsonResult(voterInfoResult{
				Voter:      voter.String(),
				Registered: ok,
				Name:       info.Name,
				Eligible:   info.Eligible,
			})
		},
	)
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
