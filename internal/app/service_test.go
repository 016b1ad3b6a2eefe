package app

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/jaakkos/dao-ledger/internal/domain"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func voterID(b byte) domain.ActorID {
	var id domain.ActorID
	id[0] = b
	return id
}

var _ = Describe("VotingService", func() {

	var (
		ctx       context.Context
		store     *Store
		svc       *VotingService
		publisher *recordingPublisher
		v1        = voterID(1)
		v2        = voterID(2)
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = NewStore(nil, nil, nil)
		store.Initialize()
		svc = NewVotingService(store, nil)
		publisher = &recordingPublisher{}
		svc.SetPublisher(publisher)
	})

	Describe("#RegisterVoter", func() {
		It("registers an eligible voter", func() {
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			info, ok := svc.VoterInfo(v1)
			Expect(ok).To(BeTrue())
			Expect(info).To(Equal(domain.Voter{Name: "N", Eligible: true}))
		})

		It("overwrites the name and restores eligibility on re-registration", func() {
			Expect(svc.RegisterVoter(ctx, v1, "old")).To(Succeed())
			Expect(store.Run(func(state *domain.LedgerState) error {
				state.Voters[v1] = domain.Voter{Name: "old", Eligible: false}
				return nil
			})).To(Succeed())

			Expect(svc.RegisterVoter(ctx, v1, "new")).To(Succeed())
			info, _ := svc.VoterInfo(v1)
			Expect(info).To(Equal(domain.Voter{Name: "new", Eligible: true}))
		})

		It("publishes a voter_registered event", func() {
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			Expect(publisher.types()).To(Equal([]EventType{EventVoterRegistered}))
			Expect(publisher.events[0].Voter).To(Equal(v1.String()))
			Expect(publisher.events[0].ID).NotTo(BeEmpty())
		})
	})

	Describe("#RegisterProposal", func() {
		It("creates the proposal with a zero tally", func() {
			Expect(svc.RegisterProposal(ctx, 1, "Budget")).To(Succeed())
			Expect(svc.Proposals()).To(Equal([]domain.Proposal{{ID: 1, Description: "Budget"}}))
			Expect(svc.VoteCounts()).To(Equal(map[uint64]uint64{1: 0}))
		})

		It("resets the tally but not voter histories on re-registration", func() {
			Expect(svc.RegisterProposal(ctx, 1, "Budget")).To(Succeed())
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAccepted))

			Expect(svc.RegisterProposal(ctx, 1, "Budget v2")).To(Succeed())
			Expect(svc.VoteCounts()[1]).To(BeZero())
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAlreadyVoted))
			Expect(svc.VoteCounts()[1]).To(BeZero())
		})
	})

	Describe("#Vote", func() {
		BeforeEach(func() {
			Expect(svc.RegisterProposal(ctx, 1, "Budget")).To(Succeed())
			Expect(svc.RegisterProposal(ctx, 2, "Policy")).To(Succeed())
		})

		It("counts a vote from an eligible voter once", func() {
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAccepted))
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAlreadyVoted))
			Expect(svc.VoteCounts()[1]).To(Equal(uint64(1)))
		})

		It("ignores unregistered voters without creating state", func() {
			before := svc.Snapshot()
			Expect(svc.Vote(ctx, v2, 1)).To(Equal(domain.VoteUnknownVoter))
			Expect(svc.Snapshot()).To(Equal(before))
			_, ok := svc.VoterInfo(v2)
			Expect(ok).To(BeFalse())
			Expect(store.Revision()).To(Equal(uint64(2)))
		})

		It("ignores ineligible voters", func() {
			Expect(store.Run(func(state *domain.LedgerState) error {
				state.Voters[v2] = domain.Voter{Name: "barred", Eligible: false}
				return nil
			})).To(Succeed())
			Expect(svc.Vote(ctx, v2, 1)).To(Equal(domain.VoteIneligible))
			Expect(svc.VoteCounts()[1]).To(BeZero())
		})

		It("reports unknown proposals as a no-op", func() {
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			Expect(svc.Vote(ctx, v1, 99)).To(Equal(domain.VoteUnknownProposal))
			Expect(svc.VoteCounts()).NotTo(HaveKey(uint64(99)))
		})

		It("panics when a registered proposal has lost its tally", func() {
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			Expect(store.Run(func(state *domain.LedgerState) error {
				delete(state.VoteCounts, 2)
				return nil
			})).To(Succeed())

			Expect(func() { _, _ = svc.Vote(ctx, v1, 2) }).To(Panic())
			_, ok := svc.VoterInfo(v1)
			Expect(ok).To(BeTrue())
			Expect(svc.Snapshot().VotesCast).To(BeEmpty())
		})

		It("publishes only accepted votes", func() {
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			_, _ = svc.Vote(ctx, v1, 1)
			_, _ = svc.Vote(ctx, v1, 1)
			_, _ = svc.Vote(ctx, v2, 1)

			types := publisher.types()
			Expect(types).To(HaveLen(4))
			Expect(types[3]).To(Equal(EventVoteCast))
			Expect(publisher.events[3].Votes).To(Equal(uint64(1)))
		})

		It("stamps events with the revision that committed them", func() {
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAccepted))
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAlreadyVoted))

			revs := make([]uint64, 0, len(publisher.events))
			for _, ev := range publisher.events {
				revs = append(revs, ev.Revision)
			}
			Expect(revs).To(Equal([]uint64{1, 2, 3, 4}))
			counts, rev := svc.VoteCountsAt()
			Expect(rev).To(Equal(uint64(4)))
			Expect(counts).To(Equal(map[uint64]uint64{1: 1, 2: 0}))
		})

		It("keeps the vote when publishing fails", func() {
			publisher.err = errors.New("broker down")
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAccepted))
			Expect(svc.VoteCounts()[1]).To(Equal(uint64(1)))
		})
	})

	Describe("#RemoveVoter", func() {
		It("removes the voter and history but keeps tallies", func() {
			Expect(svc.RegisterProposal(ctx, 1, "Budget")).To(Succeed())
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAccepted))

			Expect(svc.RemoveVoter(ctx, v1)).To(Succeed())
			_, ok := svc.VoterInfo(v1)
			Expect(ok).To(BeFalse())
			Expect(svc.VoteCounts()[1]).To(Equal(uint64(1)))
			Expect(svc.Snapshot().VotesCast).To(BeEmpty())
		})

		It("lets a removed and re-registered voter vote again", func() {
			Expect(svc.RegisterProposal(ctx, 1, "Budget")).To(Succeed())
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAccepted))
			Expect(svc.RemoveVoter(ctx, v1)).To(Succeed())
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())

			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAccepted))
			Expect(svc.VoteCounts()[1]).To(Equal(uint64(2)))
		})

		It("is a silent no-op for unknown voters", func() {
			Expect(svc.RemoveVoter(ctx, v2)).To(Succeed())
			Expect(store.Revision()).To(BeZero())
			Expect(publisher.types()).To(BeEmpty())
		})
	})

	Describe("#VoterHistory", func() {
		It("returns the record and votes in one read", func() {
			Expect(svc.RegisterProposal(ctx, 1, "Budget")).To(Succeed())
			Expect(svc.RegisterProposal(ctx, 2, "Policy")).To(Succeed())
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			Expect(svc.Vote(ctx, v1, 2)).To(Equal(domain.VoteAccepted))
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAccepted))

			info, votedOn, ok := svc.VoterHistory(v1)
			Expect(ok).To(BeTrue())
			Expect(info.Name).To(Equal("N"))
			Expect(votedOn).To(Equal([]uint64{2, 1}))

			votedOn[0] = 99
			_, again, _ := svc.VoterHistory(v1)
			Expect(again).To(Equal([]uint64{2, 1}))
		})

		It("gives an empty history to a voter who has not voted", func() {
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			_, votedOn, ok := svc.VoterHistory(v1)
			Expect(ok).To(BeTrue())
			Expect(votedOn).NotTo(BeNil())
			Expect(votedOn).To(BeEmpty())
		})

		It("reports removed voters as absent", func() {
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			Expect(svc.RemoveVoter(ctx, v1)).To(Succeed())
			_, votedOn, ok := svc.VoterHistory(v1)
			Expect(ok).To(BeFalse())
			Expect(votedOn).To(BeNil())
		})
	})

	Describe("#ConcludeVoting", func() {
		It("returns absent when there are no proposals", func() {
			_, ok := svc.ConcludeVoting()
			Expect(ok).To(BeFalse())
		})

		It("breaks ties by lowest proposal id", func() {
			Expect(svc.RegisterProposal(ctx, 2, "Policy")).To(Succeed())
			Expect(svc.RegisterProposal(ctx, 1, "Budget")).To(Succeed())
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			Expect(svc.Vote(ctx, v1, 2)).To(Equal(domain.VoteAccepted))
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAccepted))

			leader, ok := svc.ConcludeVoting()
			Expect(ok).To(BeTrue())
			Expect(leader).To(Equal(domain.Tally{ProposalID: 1, Votes: 1}))
		})
	})

	Describe("scenarios", func() {
		It("tallies the budget/policy ballot", func() {
			Expect(svc.RegisterProposal(ctx, 1, "Budget")).To(Succeed())
			Expect(svc.RegisterProposal(ctx, 2, "Policy")).To(Succeed())
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAccepted))
			Expect(svc.Vote(ctx, v1, 2)).To(Equal(domain.VoteAccepted))
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAlreadyVoted))

			Expect(svc.VoteCounts()).To(Equal(map[uint64]uint64{1: 1, 2: 1}))
			info, _ := svc.VoterInfo(v1)
			Expect(info.Name).To(Equal("N"))
			leader, ok := svc.ConcludeVoting()
			Expect(ok).To(BeTrue())
			Expect(leader).To(Equal(domain.Tally{ProposalID: 1, Votes: 1}))
		})

		It("leaves an empty ledger untouched by early votes", func() {
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteUnknownVoter))
			Expect(svc.Snapshot()).To(Equal(domain.NewLedgerState().Snapshot()))
			_, ok := svc.ConcludeVoting()
			Expect(ok).To(BeFalse())
		})

		It("summarizes the ledger", func() {
			Expect(svc.RegisterProposal(ctx, 1, "Budget")).To(Succeed())
			Expect(svc.RegisterVoter(ctx, v1, "N")).To(Succeed())
			Expect(svc.Vote(ctx, v1, 1)).To(Equal(domain.VoteAccepted))

			sum := svc.Summary()
			Expect(sum.Voters).To(Equal(1))
			Expect(sum.Proposals).To(Equal(1))
			Expect(sum.TotalVotes).To(Equal(uint64(1)))
			Expect(sum.Revision).To(Equal(uint64(3)))
			Expect(sum.Leader).To(Equal(&domain.Tally{ProposalID: 1, Votes: 1}))
		})
	})
})
