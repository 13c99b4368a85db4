// Package sealapi defines the interface between the procurement engine and
// the sealing capability that holds opaque bid values. The engine never sees
// plaintext amounts; it works with handles and receives decrypted values only
// through the asynchronous batched reveal callback.
package sealapi

import (
	"context"

	"github.com/cloudx-io/sealedtender/core"
)

// Handle references one sealed value held by the capability. Handles are
// opaque to the engine; only the capability can map them back to ciphertext.
type Handle string

// Sealer is the opaque-value capability consumed by the engine. The
// implementation is treated as a trusted oracle with asynchronous, possibly
// out-of-order reveal delivery.
type Sealer interface {
	// Seal encrypts a plaintext scalar and returns an opaque handle.
	Seal(ctx context.Context, value int64) (Handle, error)

	// Grant appends a principal to the handle's reveal allow-list. Granting
	// an already-granted principal is a no-op; the only failure mode is an
	// unknown handle. Grants are never revoked.
	Grant(ctx context.Context, h Handle, p core.Principal) error

	// RequestReveal submits one batched decryption request for an ordered
	// sequence of handles and returns immediately with a request id. The
	// requester must hold a grant on every handle in the batch. The
	// decrypted values arrive later at the registered RevealSink, in the
	// same order and count as the submitted handles, carrying the request
	// id and the caller's correlation tag.
	RequestReveal(ctx context.Context, requester core.Principal, handles []Handle, tag string) (string, error)
}

// RevealResult is the payload of a completed batched reveal.
type RevealResult struct {
	RequestID string  `json:"request_id" cbor:"1,keyasint"`
	Tag       string  `json:"tag" cbor:"2,keyasint"`
	Values    []int64 `json:"values" cbor:"3,keyasint"`
}

// RevealSink receives completed reveals. Implementations must tolerate
// duplicate and unmatched deliveries; both are rejected without state change.
type RevealSink interface {
	OnRevealed(ctx context.Context, res RevealResult) error
}
