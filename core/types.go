package core

import "time"

// Principal identifies a party interacting with the procurement system:
// the contracting authority, a supplier, or the system itself.
type Principal string

// PrincipalSystem is the engine's own identity. It is granted reveal access
// on every sealed value so the evaluation step can request decryption.
const PrincipalSystem Principal = "system"

// TenderStatus is the lifecycle state of a tender.
type TenderStatus string

const (
	TenderOpen      TenderStatus = "open"
	TenderClosed    TenderStatus = "closed"
	TenderEvaluated TenderStatus = "evaluated"
	TenderAwarded   TenderStatus = "awarded"
	TenderCancelled TenderStatus = "cancelled"
)

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. The machine is monotonic: Open→{Closed,Cancelled}, Closed→Evaluated,
// Evaluated→Awarded. Awarded and Cancelled are terminal.
func (s TenderStatus) CanTransition(next TenderStatus) bool {
	switch s {
	case TenderOpen:
		return next == TenderClosed || next == TenderCancelled
	case TenderClosed:
		return next == TenderEvaluated
	case TenderEvaluated:
		return next == TenderAwarded
	default:
		return false
	}
}

// Supplier is a registered bidder. Records are never deleted; qualification
// is flipped by the authority and reputation moves only through explicit
// qualification and post-award bumps.
type Supplier struct {
	Principal       Principal `json:"principal"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	IsRegistered    bool      `json:"is_registered"`
	IsQualified     bool      `json:"is_qualified"`
	RegisteredAt    time.Time `json:"registered_at"`
	ReputationScore int       `json:"reputation_score"` // always within [0,100]
}

// Tender is the authoritative lifecycle record for one procurement round.
// Budget and deadline are immutable after creation. Bidders preserves
// submission order and contains no duplicates.
type Tender struct {
	ID                    string       `json:"id"`
	Title                 string       `json:"title"`
	Description           string       `json:"description"`
	Budget                int64        `json:"budget"`
	Deadline              time.Time    `json:"deadline"`
	Status                TenderStatus `json:"status"`
	Winner                Principal    `json:"winner,omitempty"`
	WinningBid            int64        `json:"winning_bid,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
	Bidders               []Principal  `json:"bidders"`
	RequiresQualification bool         `json:"requires_qualification"`
}

// AcceptingBids reports whether the tender can take a new bid at the given
// time: the status must still be Open and the deadline must not have passed.
// An expired deadline does not auto-close the tender; closing is an explicit
// authority action.
func (t *Tender) AcceptingBids(now time.Time) bool {
	return t.Status == TenderOpen && now.Before(t.Deadline)
}

// HasBidder reports whether p already appears in the bidder list.
func (t *Tender) HasBidder(p Principal) bool {
	for _, b := range t.Bidders {
		if b == p {
			return true
		}
	}
	return false
}

// Bid is the per-(tender, bidder) record. The amount and the qualification
// snapshot are stored only as sealed handles; Proposal is the lone public
// payload. A bid is written exactly once and never mutated.
type Bid struct {
	TenderID string    `json:"tender_id"`
	Bidder   Principal `json:"bidder"`
	// SealedAmount and SealedScore reference opaque values held by the
	// sealing capability. The score is the bidder's reputation at
	// submission time, not a live pointer.
	SealedAmount string    `json:"sealed_amount"`
	SealedScore  string    `json:"sealed_score"`
	Proposal     string    `json:"proposal"`
	Submitted    bool      `json:"submitted"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// BidKey is the unique key for a bid.
func BidKey(tenderID string, bidder Principal) string {
	return tenderID + "/" + string(bidder)
}
