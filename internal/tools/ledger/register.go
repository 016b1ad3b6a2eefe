// Package ledger exposes the voting ledger as MCP tools and resources.
package ledger

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/dao-ledger/internal/app"
)

// RegisterOption configures optional behavior for tool registration.
type RegisterOption func(*registerOpts)

type registerOpts struct {
	enabled func(name string) bool
}

// WithToolFilter registers only the tools for which enabled returns true.
// policy.Policy.IsToolEnabled is the usual filter.
func WithToolFilter(enabled func(name string) bool) RegisterOption {
	return func(o *registerOpts) { o.enabled = enabled }
}

type toolRegistrar func(s *server.MCPServer, svc *app.VotingService, logger *log.Logger)

// tools lists every ledger tool by name.
var tools = []struct {
	name     string
	register toolRegistrar
}{
	{"register_voter", registerRegisterVoter},
	{"remove_voter", registerRemoveVoter},
	{"get_voter_info", registerGetVoterInfo},
	{"register_proposal", registerRegisterProposal},
	{"get_proposals", registerGetProposals},
	{"vote", registerVote},
	{"get_vote_counts", registerGetVoteCounts},
	{"conclude_voting", registerConcludeVoting},
	{"get_ledger_state", registerGetLedgerState},
	{"get_summary", registerGetSummary},
}

// ToolNames returns the names of all ledger tools.
func ToolNames() []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.name)
	}
	return names
}

// Register registers the ledger tools and resources with the mcp-go server.
func Register(s *server.MCPServer, svc *app.VotingService, logger *log.Logger, opts ...RegisterOption) {
	var o registerOpts
	for _, opt := range opts {
		opt(&o)
	}

	registered := 0
	for _, t := range tools {
		if o.enabled != nil && !o.enabled(t.name) {
			continue
		}
		t.register(s, svc, logger)
		registered++
	}
	if logger != nil {
		logger.Printf("Registered %d of %d ledger tools", registered, len(tools))
	}

	registerResources(s, svc, logger)
}
