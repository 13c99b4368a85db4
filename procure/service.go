// Package procure implements the sealed-bid procurement engine: supplier
// registry, tender lifecycle, bid submission over sealed values, and the
// batched reveal/award protocol.
package procure

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudx-io/sealedtender/core"
	"github.com/cloudx-io/sealedtender/sealapi"
)

// Service owns every state transition. Mutating operations are serialized by
// an internal lock, so a transition either applies all of its writes or none
// (precondition checks run before the first write).
type Service struct {
	mu        sync.Mutex
	store     Store
	sealer    sealapi.Sealer
	events    *Publisher
	authority core.Principal
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEvents injects the event publisher.
func WithEvents(p *Publisher) Option {
	return func(s *Service) { s.events = p }
}

// NewService wires the engine to a store and a sealing capability. authority
// is the one principal allowed to run tender lifecycle transitions.
func NewService(store Store, sealer sealapi.Sealer, authority core.Principal, opts ...Option) *Service {
	s := &Service{
		store:     store,
		sealer:    sealer,
		authority: authority,
		now:       time.Now,
		events:    NewPublisher("procure"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// requireAuthority is the precondition shared by all authority-gated
// transitions.
func (s *Service) requireAuthority(caller core.Principal) error {
	if caller != s.authority {
		return fmt.Errorf("operation requires the contracting authority: %w", core.ErrUnauthorized)
	}
	return nil
}

// RegisterSupplier creates a supplier record for the caller. Registration is
// first-come: a second attempt by the same principal fails.
func (s *Service) RegisterSupplier(ctx context.Context, caller core.Principal, name, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("supplier name is required: %w", core.ErrValidation)
	}
	existing, err := s.store.GetSupplier(ctx, caller)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("supplier %s already registered: %w", caller, core.ErrDuplicate)
	}

	sup := core.Supplier{
		Principal:       caller,
		Name:            name,
		Category:        category,
		IsRegistered:    true,
		RegisteredAt:    s.now().UTC(),
		ReputationScore: 0,
	}
	if err := s.store.CreateSupplier(ctx, sup); err != nil {
		return err
	}

	s.events.Publish(ctx, EventSupplierRegistered, map[string]any{
		"principal": string(caller),
		"name":      name,
		"category":  category,
	})
	return nil
}

// QualifySupplier marks a supplier as qualified and sets its reputation
// score. Authority only; the score must fit the [0,100] reputation range.
func (s *Service) QualifySupplier(ctx context.Context, caller, supplier core.Principal, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthority(caller); err != nil {
		return err
	}
	if score < 0 || score > 100 {
		return fmt.Errorf("qualification score %d outside [0,100]: %w", score, core.ErrValidation)
	}
	sup, err := s.store.GetSupplier(ctx, supplier)
	if err != nil {
		return err
	}
	if sup == nil {
		return fmt.Errorf("supplier %s: %w", supplier, core.ErrNotFound)
	}

	sup.IsQualified = true
	sup.ReputationScore = score
	if err := s.store.UpdateSupplier(ctx, *sup); err != nil {
		return err
	}

	s.events.Publish(ctx, EventSupplierQualified, map[string]any{
		"principal": string(supplier),
		"score":     score,
	})
	return nil
}

// TenderInput carries the immutable creation parameters of a tender.
type TenderInput struct {
	Title                 string
	Description           string
	Budget                int64
	Deadline              time.Time
	RequiresQualification bool
}

// CreateTender opens a new tender. Authority only. Budget and deadline are
// fixed for the tender's lifetime.
func (s *Service) CreateTender(ctx context.Context, caller core.Principal, in TenderInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthority(caller); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Title) == "" {
		return "", fmt.Errorf("tender title is required: %w", core.ErrValidation)
	}
	if in.Budget <= 0 {
		return "", fmt.Errorf("tender budget must be positive: %w", core.ErrValidation)
	}
	now := s.now()
	if !in.Deadline.After(now) {
		return "", fmt.Errorf("tender deadline must be in the future: %w", core.ErrValidation)
	}

	tender := core.Tender{
		ID:                    uuid.NewString(),
		Title:                 in.Title,
		Description:           in.Description,
		Budget:                in.Budget,
		Deadline:              in.Deadline,
		Status:                core.TenderOpen,
		CreatedAt:             now.UTC(),
		Bidders:               []core.Principal{},
		RequiresQualification: in.RequiresQualification,
	}
	if err := s.store.CreateTender(ctx, tender); err != nil {
		return "", err
	}

	s.events.Publish(ctx, EventTenderCreated, map[string]any{
		"tender_id": tender.ID,
		"title":     tender.Title,
		"budget":    tender.Budget,
		"deadline":  tender.Deadline,
	})
	return tender.ID, nil
}

// SubmitBid places a sealed bid on an open tender. The amount and a snapshot
// of the caller's current reputation are sealed before storage; reveal access
// on both handles goes to the system, the bidder, and the authority. The
// emitted event carries only public fields.
func (s *Service) SubmitBid(ctx context.Context, caller core.Principal, tenderID string, amount int64, proposal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount <= 0 {
		return fmt.Errorf("bid amount must be positive: %w", core.ErrValidation)
	}
	if strings.TrimSpace(proposal) == "" {
		return fmt.Errorf("bid proposal is required: %w", core.ErrValidation)
	}

	sup, err := s.store.GetSupplier(ctx, caller)
	if err != nil {
		return err
	}
	if sup == nil || !sup.IsRegistered {
		return fmt.Errorf("caller %s is not a registered supplier: %w", caller, core.ErrUnauthorized)
	}

	tender, err := s.store.GetTender(ctx, tenderID)
	if err != nil {
		return err
	}
	if tender == nil {
		return fmt.Errorf("tender %s: %w", tenderID, core.ErrNotFound)
	}
	now := s.now()
	if !tender.AcceptingBids(now) {
		return fmt.Errorf("tender %s is not accepting bids: %w", tenderID, core.ErrInvalidState)
	}
	if tender.RequiresQualification && !sup.IsQualified {
		return fmt.Errorf("tender %s requires a qualified supplier: %w", tenderID, core.ErrUnauthorized)
	}
	if tender.HasBidder(caller) {
		return fmt.Errorf("supplier %s already bid on tender %s: %w", caller, tenderID, core.ErrDuplicate)
	}

	// Preconditions hold; seal the amount and the reputation snapshot.
	// Later reputation changes never touch the stored snapshot.
	amountHandle, err := s.sealer.Seal(ctx, amount)
	if err != nil {
		return fmt.Errorf("seal bid amount: %w", err)
	}
	scoreHandle, err := s.sealer.Seal(ctx, int64(sup.ReputationScore))
	if err != nil {
		return fmt.Errorf("seal qualification snapshot: %w", err)
	}
	for _, h := range []sealapi.Handle{amountHandle, scoreHandle} {
		for _, p := range []core.Principal{core.PrincipalSystem, caller, s.authority} {
			if err := s.sealer.Grant(ctx, h, p); err != nil {
				return fmt.Errorf("grant reveal access: %w", err)
			}
		}
	}

	bid := core.Bid{
		TenderID:     tenderID,
		Bidder:       caller,
		SealedAmount: string(amountHandle),
		SealedScore:  string(scoreHandle),
		Proposal:     proposal,
		Submitted:    true,
		SubmittedAt:  now.UTC(),
	}
	if err := s.store.CreateBid(ctx, bid); err != nil {
		return err
	}
	tender.Bidders = append(tender.Bidders, caller)
	if err := s.store.UpdateTender(ctx, *tender); err != nil {
		return err
	}

	s.events.Publish(ctx, EventBidSubmitted, map[string]any{
		"tender_id": tenderID,
		"bidder":    string(caller),
		"timestamp": bid.SubmittedAt,
	})
	return nil
}

// CloseTender moves an open tender to Closed. Authority only. Closing is
// always explicit; deadline expiry alone never closes a tender.
func (s *Service) CloseTender(ctx context.Context, caller core.Principal, tenderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tender, err := s.transitionPreflight(ctx, caller, tenderID, core.TenderClosed)
	if err != nil {
		return err
	}
	tender.Status = core.TenderClosed
	if err := s.store.UpdateTender(ctx, *tender); err != nil {
		return err
	}

	s.events.Publish(ctx, EventTenderClosed, map[string]any{
		"tender_id": tenderID,
		"bidders":   len(tender.Bidders),
	})
	return nil
}

// CancelTender terminates an open tender. Authority only; no transitions are
// possible afterwards.
func (s *Service) CancelTender(ctx context.Context, caller core.Principal, tenderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tender, err := s.transitionPreflight(ctx, caller, tenderID, core.TenderCancelled)
	if err != nil {
		return err
	}
	tender.Status = core.TenderCancelled
	if err := s.store.UpdateTender(ctx, *tender); err != nil {
		return err
	}

	s.events.Publish(ctx, EventTenderCancelled, map[string]any{
		"tender_id": tenderID,
	})
	return nil
}

// transitionPreflight runs the shared guards for an authority transition:
// caller role, tender existence, and lifecycle legality.
func (s *Service) transitionPreflight(ctx context.Context, caller core.Principal, tenderID string, next core.TenderStatus) (*core.Tender, error) {
	if err := s.requireAuthority(caller); err != nil {
		return nil, err
	}
	tender, err := s.store.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if tender == nil {
		return nil, fmt.Errorf("tender %s: %w", tenderID, core.ErrNotFound)
	}
	if !tender.Status.CanTransition(next) {
		return nil, fmt.Errorf("tender %s cannot move %s→%s: %w", tenderID, tender.Status, next, core.ErrInvalidState)
	}
	return tender, nil
}

// BidInfo is the public view of a bid: no sealed handles, no amounts.
type BidInfo struct {
	TenderID    string         `json:"tender_id"`
	Bidder      core.Principal `json:"bidder"`
	Proposal    string         `json:"proposal"`
	Submitted   bool           `json:"submitted"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

// GetTender returns the tender record.
func (s *Service) GetTender(ctx context.Context, tenderID string) (*core.Tender, error) {
	tender, err := s.store.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if tender == nil {
		return nil, fmt.Errorf("tender %s: %w", tenderID, core.ErrNotFound)
	}
	return tender, nil
}

// GetSupplier returns the supplier record.
func (s *Service) GetSupplier(ctx context.Context, p core.Principal) (*core.Supplier, error) {
	sup, err := s.store.GetSupplier(ctx, p)
	if err != nil {
		return nil, err
	}
	if sup == nil {
		return nil, fmt.Errorf("supplier %s: %w", p, core.ErrNotFound)
	}
	return sup, nil
}

// GetBid returns the public metadata of one bid.
func (s *Service) GetBid(ctx context.Context, tenderID string, bidder core.Principal) (*BidInfo, error) {
	bid, err := s.store.GetBid(ctx, tenderID, bidder)
	if err != nil {
		return nil, err
	}
	if bid == nil {
		return nil, fmt.Errorf("bid %s: %w", core.BidKey(tenderID, bidder), core.ErrNotFound)
	}
	return &BidInfo{
		TenderID:    bid.TenderID,
		Bidder:      bid.Bidder,
		Proposal:    bid.Proposal,
		Submitted:   bid.Submitted,
		SubmittedAt: bid.SubmittedAt,
	}, nil
}

// ListBidders returns the tender's bidder list in submission order.
func (s *Service) ListBidders(ctx context.Context, tenderID string) ([]core.Principal, error) {
	tender, err := s.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	return tender.Bidders, nil
}
