package procure

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudx-io/sealedtender/core"
)

// MemoryStore is the process-wide in-memory Store. Initialized once and
// shared; every method is individually atomic under the lock.
type MemoryStore struct {
	mu        sync.RWMutex
	suppliers map[core.Principal]core.Supplier
	tenders   map[string]core.Tender
	bids      map[string]core.Bid
	pending   map[string]string // requestID -> tenderID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		suppliers: map[core.Principal]core.Supplier{},
		tenders:   map[string]core.Tender{},
		bids:      map[string]core.Bid{},
		pending:   map[string]string{},
	}
}

func (s *MemoryStore) CreateSupplier(ctx context.Context, sup core.Supplier) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.suppliers[sup.Principal]; ok {
		return fmt.Errorf("supplier %s: %w", sup.Principal, core.ErrDuplicate)
	}
	s.suppliers[sup.Principal] = sup
	return nil
}

func (s *MemoryStore) GetSupplier(ctx context.Context, p core.Principal) (*core.Supplier, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	sup, ok := s.suppliers[p]
	if !ok {
		return nil, nil
	}
	out := sup
	return &out, nil
}

func (s *MemoryStore) UpdateSupplier(ctx context.Context, sup core.Supplier) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.suppliers[sup.Principal]; !ok {
		return fmt.Errorf("supplier %s: %w", sup.Principal, core.ErrNotFound)
	}
	s.suppliers[sup.Principal] = sup
	return nil
}

func (s *MemoryStore) CreateTender(ctx context.Context, t core.Tender) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenders[t.ID]; ok {
		return fmt.Errorf("tender %s: %w", t.ID, core.ErrDuplicate)
	}
	s.tenders[t.ID] = cloneTender(t)
	return nil
}

func (s *MemoryStore) GetTender(ctx context.Context, tenderID string) (*core.Tender, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenders[tenderID]
	if !ok {
		return nil, nil
	}
	out := cloneTender(t)
	return &out, nil
}

func (s *MemoryStore) UpdateTender(ctx context.Context, t core.Tender) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenders[t.ID]; !ok {
		return fmt.Errorf("tender %s: %w", t.ID, core.ErrNotFound)
	}
	s.tenders[t.ID] = cloneTender(t)
	return nil
}

func (s *MemoryStore) CreateBid(ctx context.Context, b core.Bid) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	key := core.BidKey(b.TenderID, b.Bidder)
	if _, ok := s.bids[key]; ok {
		return fmt.Errorf("bid %s: %w", key, core.ErrDuplicate)
	}
	s.bids[key] = b
	return nil
}

func (s *MemoryStore) GetBid(ctx context.Context, tenderID string, bidder core.Principal) (*core.Bid, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bids[core.BidKey(tenderID, bidder)]
	if !ok {
		return nil, nil
	}
	out := b
	return &out, nil
}

func (s *MemoryStore) PutPendingReveal(ctx context.Context, requestID, tenderID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[requestID]; ok {
		return fmt.Errorf("pending reveal %s: %w", requestID, core.ErrDuplicate)
	}
	s.pending[requestID] = tenderID
	return nil
}

func (s *MemoryStore) GetPendingReveal(ctx context.Context, requestID string) (string, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	tenderID, ok := s.pending[requestID]
	return tenderID, ok, nil
}

func (s *MemoryStore) DeletePendingReveal(ctx context.Context, requestID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, requestID)
	return nil
}

func (s *MemoryStore) DeletePendingRevealByTender(ctx context.Context, tenderID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for requestID, tid := range s.pending {
		if tid == tenderID {
			delete(s.pending, requestID)
		}
	}
	return nil
}

// cloneTender deep-copies the bidder list so callers never alias stored state.
func cloneTender(t core.Tender) core.Tender {
	out := t
	out.Bidders = append([]core.Principal(nil), t.Bidders...)
	return out
}
