package procure

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudx-io/sealedtender/core"
	"github.com/cloudx-io/sealedtender/sealapi"
)

// awardReputationBump is added to the winner's live reputation on award,
// capped at 100. The stored bid snapshot is never touched.
const awardReputationBump = 5

// EvaluateTender starts evaluation of a closed tender. It builds one flat
// handle sequence over the bidders in submission order — index 2i is bidder
// i's sealed amount, 2i+1 the sealed qualification snapshot — and submits a
// single batched reveal tagged with the tender id. The tender moves to
// Evaluated immediately; the decrypted values arrive later at OnRevealed.
//
// Each outstanding reveal is correlated to its tender through the returned
// request id, so evaluations of different tenders can be in flight at the
// same time without cross-applying results.
func (s *Service) EvaluateTender(ctx context.Context, caller core.Principal, tenderID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tender, err := s.transitionPreflight(ctx, caller, tenderID, core.TenderEvaluated)
	if err != nil {
		return "", err
	}
	if len(tender.Bidders) == 0 {
		return "", fmt.Errorf("tender %s has no bids to evaluate: %w", tenderID, core.ErrInvalidState)
	}

	handles := make([]sealapi.Handle, 0, 2*len(tender.Bidders))
	for _, bidder := range tender.Bidders {
		bid, err := s.store.GetBid(ctx, tenderID, bidder)
		if err != nil {
			return "", err
		}
		if bid == nil {
			return "", fmt.Errorf("bid %s: %w", core.BidKey(tenderID, bidder), core.ErrNotFound)
		}
		handles = append(handles, sealapi.Handle(bid.SealedAmount), sealapi.Handle(bid.SealedScore))
	}

	requestID, err := s.sealer.RequestReveal(ctx, core.PrincipalSystem, handles, tenderID)
	if err != nil {
		return "", fmt.Errorf("request batched reveal: %w", err)
	}

	if err := s.store.PutPendingReveal(ctx, requestID, tenderID); err != nil {
		return "", err
	}
	tender.Status = core.TenderEvaluated
	if err := s.store.UpdateTender(ctx, *tender); err != nil {
		return "", err
	}

	log.Printf("INFO: Tender %s evaluating: reveal request %s over %d bidders", tenderID, requestID, len(tender.Bidders))
	return requestID, nil
}

// OnRevealed applies a completed batched reveal. It implements
// sealapi.RevealSink.
//
// The callback is matched to its tender through the pending-reveal table
// keyed by request id — never through a "currently evaluating" pointer. Any
// mismatch (unknown request id, tag/tender disagreement, tender no longer
// Evaluated, wrong or odd value count) is a protocol violation that mutates
// nothing; the pending entry survives so the authority can abandon it and
// re-evaluate. A successful award consumes the entry, which makes a replayed
// callback an unmatched one.
func (s *Service) OnRevealed(ctx context.Context, res sealapi.RevealResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenderID, ok, err := s.store.GetPendingReveal(ctx, res.RequestID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("reveal request %s matches no pending evaluation: %w", res.RequestID, core.ErrProtocol)
	}
	if res.Tag != tenderID {
		return fmt.Errorf("reveal request %s tagged %q but pending for tender %s: %w", res.RequestID, res.Tag, tenderID, core.ErrProtocol)
	}

	tender, err := s.store.GetTender(ctx, tenderID)
	if err != nil {
		return err
	}
	if tender == nil {
		return fmt.Errorf("tender %s: %w", tenderID, core.ErrNotFound)
	}
	if tender.Status != core.TenderEvaluated {
		return fmt.Errorf("tender %s is %s, not awaiting reveal: %w", tenderID, tender.Status, core.ErrProtocol)
	}
	if len(res.Values) != 2*len(tender.Bidders) {
		return fmt.Errorf("reveal for tender %s carries %d values, want %d: %w", tenderID, len(res.Values), 2*len(tender.Bidders), core.ErrProtocol)
	}

	sel, err := core.SelectWinner(res.Values)
	if err != nil {
		return err
	}
	winner := tender.Bidders[sel.Index]

	tender.Winner = winner
	tender.WinningBid = sel.Amount
	tender.Status = core.TenderAwarded
	if err := s.store.UpdateTender(ctx, *tender); err != nil {
		return err
	}

	sup, err := s.store.GetSupplier(ctx, winner)
	if err != nil {
		return err
	}
	if sup == nil {
		return fmt.Errorf("winner %s: %w", winner, core.ErrNotFound)
	}
	sup.ReputationScore = core.BumpReputation(sup.ReputationScore, awardReputationBump)
	if err := s.store.UpdateSupplier(ctx, *sup); err != nil {
		return err
	}

	if err := s.store.DeletePendingReveal(ctx, res.RequestID); err != nil {
		return err
	}

	log.Printf("INFO: Tender %s awarded to %s at %d (request %s)", tenderID, winner, sel.Amount, res.RequestID)
	s.events.Publish(ctx, EventTenderAwarded, map[string]any{
		"tender_id":   tenderID,
		"winner":      string(winner),
		"winning_bid": sel.Amount,
	})
	return nil
}

// AbandonReveal gives the authority a recovery path for a tender stuck in
// Evaluated because its reveal callback never arrived or was rejected. The
// pending request is dropped and the tender returns to Closed, from where a
// fresh EvaluateTender issues a new reveal. A late callback for the dropped
// request is then unmatched and rejected. This is the only path backwards in
// the lifecycle and it is an explicit administrative action.
func (s *Service) AbandonReveal(ctx context.Context, caller core.Principal, tenderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAuthority(caller); err != nil {
		return err
	}
	tender, err := s.store.GetTender(ctx, tenderID)
	if err != nil {
		return err
	}
	if tender == nil {
		return fmt.Errorf("tender %s: %w", tenderID, core.ErrNotFound)
	}
	if tender.Status != core.TenderEvaluated {
		return fmt.Errorf("tender %s is %s, no evaluation to abandon: %w", tenderID, tender.Status, core.ErrInvalidState)
	}

	if err := s.store.DeletePendingRevealByTender(ctx, tenderID); err != nil {
		return err
	}
	tender.Status = core.TenderClosed
	if err := s.store.UpdateTender(ctx, *tender); err != nil {
		return err
	}

	log.Printf("WARNING: Tender %s evaluation abandoned by authority; back to closed", tenderID)
	return nil
}
