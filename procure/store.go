package procure

import (
	"context"

	"github.com/cloudx-io/sealedtender/core"
)

// Store is dumb CRUD over the shared procurement state. All lifecycle rules
// live in the Service; the store only enforces key uniqueness. Get methods
// return (nil, nil) for an absent record.
type Store interface {
	CreateSupplier(ctx context.Context, s core.Supplier) error
	GetSupplier(ctx context.Context, p core.Principal) (*core.Supplier, error)
	UpdateSupplier(ctx context.Context, s core.Supplier) error

	CreateTender(ctx context.Context, t core.Tender) error
	GetTender(ctx context.Context, tenderID string) (*core.Tender, error)
	UpdateTender(ctx context.Context, t core.Tender) error

	CreateBid(ctx context.Context, b core.Bid) error
	GetBid(ctx context.Context, tenderID string, bidder core.Principal) (*core.Bid, error)

	// Pending reveals correlate an outstanding reveal request id to the
	// tender that issued it. One entry per request; at most one per tender.
	PutPendingReveal(ctx context.Context, requestID, tenderID string) error
	GetPendingReveal(ctx context.Context, requestID string) (tenderID string, ok bool, err error)
	DeletePendingReveal(ctx context.Context, requestID string) error
	DeletePendingRevealByTender(ctx context.Context, tenderID string) error
}
