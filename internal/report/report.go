// Package report renders the ledger as Markdown tables.
package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/unicode/norm"

	"github.com/jaakkos/dao-ledger/internal/app"
	"github.com/jaakkos/dao-ledger/internal/domain"
)

const leaderMark = "*"

// LedgerReport formats one snapshot of the ledger.
type LedgerReport struct {
	Snapshot domain.Snapshot
	Summary  app.Summary

	printer *message.Printer
}

// NewLedgerReport captures the current ledger from svc.
func NewLedgerReport(svc *app.VotingService) *LedgerReport {
	return &LedgerReport{
		Snapshot: svc.Snapshot(),
		Summary:  svc.Summary(),
		printer:  message.NewPrinter(language.English),
	}
}

func markdownTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)

	// Configure for Markdown table formatting
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoWrapText(false)
	return table
}

// clean normalizes user-supplied text so equal strings render identically.
func clean(s string) string {
	return app.Truncate(norm.NFC.String(s), 60)
}

// PrintTallyTable writes one row per proposal in id order, marking the leader.
func (r *LedgerReport) PrintTallyTable(w io.Writer) {
	descriptions := make(map[uint64]string, len(r.Snapshot.Proposals))
	for _, e := range r.Snapshot.Proposals {
		descriptions[e.ID] = e.Proposal.Description
	}

	table := markdownTable(w)
	table.SetHeader([]string{"Proposal", "Description", "Votes", "Leader"})
	for _, t := range r.Snapshot.VoteCounts {
		mark := ""
		if r.Summary.Leader != nil && r.Summary.Leader.ProposalID == t.ProposalID {
			mark = leaderMark
		}
		table.Append([]string{
			fmt.Sprint(t.ProposalID),
			clean(descriptions[t.ProposalID]),
			r.printer.Sprintf("%d", t.Votes),
			mark,
		})
	}
	table.Render()
}

// PrintVoterTable writes one row per voter with the proposals they voted on.
func (r *LedgerReport) PrintVoterTable(w io.Writer) {
	history := make(map[domain.ActorID][]uint64, len(r.Snapshot.VotesCast))
	for _, e := range r.Snapshot.VotesCast {
		history[e.Voter] = e.ProposalIDs
	}

	table := markdownTable(w)
	table.SetHeader([]string{"Voter", "Name", "Eligible", "Voted on"})
	for _, e := range r.Snapshot.Voters {
		table.Append([]string{
			shortActor(e.ID),
			clean(e.Voter.Name),
			fmt.Sprint(e.Voter.Eligible),
			joinIDs(history[e.ID]),
		})
	}
	table.Render()
}

// PrintSummary writes a one-paragraph overview.
func (r *LedgerReport) PrintSummary(w io.Writer) {
	p := r.printer
	fmt.Fprintln(w, p.Sprintf("Revision %d: %d voters, %d proposals, %d votes cast.",
		r.Summary.Revision, r.Summary.Voters, r.Summary.Proposals, r.Summary.TotalVotes))
	if r.Summary.Leader == nil {
		fmt.Fprintln(w, "No proposals registered.")
		return
	}
	fmt.Fprintln(w, p.Sprintf("Leading: proposal %d with %d votes.",
		r.Summary.Leader.ProposalID, r.Summary.Leader.Votes))
}

// Print writes the summary followed by both tables.
func (r *LedgerReport) Print(w io.Writer) {
	r.PrintSummary(w)
	fmt.Fprintln(w)
	r.PrintTallyTable(w)
	fmt.Fprintln(w)
	r.PrintVoterTable(w)
}

func shortActor(id domain.ActorID) string {
	s := id.String()
	return s[:10] + "..." + s[len(s)-4:]
}

func joinIDs(ids []uint64) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprint(id)
	}
	return out
}
