package ledger

// InstructionsText returns the instruction string the MCP server sends during initialization.
func InstructionsText() string {
	return `You are connected to a DAO voting ledger.

## Identifiers

- Voters are 32-byte actor IDs written as 64 hex digits, with or without a 0x prefix.
- Proposals are unsigned integers chosen by the caller. Pass IDs above 2^53 as decimal strings.

## Workflow

1. register_proposal proposal_id=1 description='Budget'
2. register_voter voter='0x...' name='Alice'
3. vote voter='0x...' proposal_id=1
4. get_vote_counts / conclude_voting to read results

## Rules

- Each voter counts at most once per proposal ID, for as long as the voter stays registered.
- Re-registering a proposal resets its tally but does not let earlier voters vote again.
- remove_voter deletes the voter and their history; tallies are kept.
- A vote that is not counted is not an error: the outcome is one of
  unknown_voter, ineligible, already_voted or unknown_proposal.
- conclude_voting picks the highest tally; ties go to the lowest proposal ID.

## Resources

- dao-ledger://state    full ledger snapshot
- dao-ledger://summary  totals and leader
`
}
