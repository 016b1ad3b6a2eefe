package domain

import "fmt"

// VoteOutcome says what a vote call did. Only VoteAccepted changes state;
// every other outcome is a no-op and never an error.
type VoteOutcome int

const (
	VoteAccepted VoteOutcome = iota + 1
	VoteUnknownVoter
	VoteIneligible
	VoteAlreadyVoted
	VoteUnknownProposal
)

var voteOutcomeNames = map[VoteOutcome]string{
	VoteAccepted:        "accepted",
	VoteUnknownVoter:    "unknown_voter",
	VoteIneligible:      "ineligible",
	VoteAlreadyVoted:    "already_voted",
	VoteUnknownProposal: "unknown_proposal",
}

func (o VoteOutcome) String() string {
	if name, ok := voteOutcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("VoteOutcome(%d)", int(o))
}

// Accepted reports whether the vote was counted.
func (o VoteOutcome) Accepted() bool { return o == VoteAccepted }

// MarshalText implements encoding.TextMarshaler.
func (o VoteOutcome) MarshalText() ([]byte, error) {
	if _, ok := voteOutcomeNames[o]; !ok {
		return nil, fmt.Errorf("unknown vote outcome %d", int(o))
	}
	return []byte(o.String()), nil
}

// ParseVoteOutcome is the inverse of String.
func ParseVoteOutcome(s string) (VoteOutcome, error) {
	for o, name := range voteOutcomeNames {
		if name == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown vote outcome %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *VoteOutcome) UnmarshalText(b []byte) error {
	v, err := ParseVoteOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
