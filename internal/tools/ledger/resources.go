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

// Resource URIs served by the ledger.
const (
	StateResourceURI   = "dao-ledger://state"
	SummaryResourceURI = "dao-ledger://summary"
	GuideResourceURI   = "dao-ledger://guide"
)

// registerResources adds read-only resources so clients can fetch the ledger
// without calling tools.
func registerResources(s *server.MCPServer, svc *app.VotingService, logger *log.Logger) {
	s.AddResource(
		mcp.NewResource(
			StateResourceURI,
			"Ledger state",
			mcp.WithResourceDescription("Full ledger snapshot: voters, proposals, tallies and vote histories, sorted by key."),
			mcp.WithMIMEType("application/json"),
		),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return jsonResource(req.Params.URI, svc.Snapshot())
		},
	)

	s.AddResource(
		mcp.NewResource(
			SummaryResourceURI,
			"Ledger summary",
			mcp.WithResourceDescription("Totals and current leader, the same payload pushed in notifications/ledger_update."),
			mcp.WithMIMEType("application/json"),
		),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return jsonResource(req.Params.URI, svc.Summary())
		},
	)

	s.AddResource(
		mcp.NewResource(
			GuideResourceURI,
			"Voting guide",
			mcp.WithResourceDescription("How to register voters and proposals, cast votes and read results."),
			mcp.WithMIMEType("text/markdown"),
		),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      req.Params.URI,
					MIMEType: "text/markdown",
					Text:     InstructionsText(),
				},
			}, nil
		},
	)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
