// Package sealbox is the in-process opaque-value provider. It stands in for
// an external homomorphic-encryption backend: values are sealed with
// AES-256-GCM, every handle carries an append-only reveal allow-list, and
// batched reveals are delivered asynchronously as ES256-signed envelopes.
package sealbox

import (
	"context"
	"crypto/cipher"
	"crypto/ecdsa"
	"fmt"
	"log"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/cloudx-io/sealedtender/core"
	"github.com/cloudx-io/sealedtender/sealapi"
)

// Deliverer receives the signed reveal envelopes the box produces. In
// production this is the wire back to the engine's callback endpoint; tests
// usually plug in a verifying sink directly.
type Deliverer interface {
	Deliver(ctx context.Context, envelope []byte) error
}

// sealedPayload is the CBOR plaintext stored inside each ciphertext.
type sealedPayload struct {
	Value int64 `cbor:"1,keyasint"`
}

type entry struct {
	nonce      []byte
	ciphertext []byte
	grants     []core.Principal
}

// Box implements sealapi.Sealer. All state is process-local; keys are
// generated at construction and never leave the box.
type Box struct {
	mu      sync.Mutex
	aead    cipher.AEAD
	signKey *ecdsa.PrivateKey
	entries map[sealapi.Handle]*entry

	deliverer   Deliverer
	syncDeliver bool
}

// Option configures a Box.
type Option func(*Box)

// WithSynchronousDelivery makes RequestReveal deliver the envelope before
// returning instead of on a background goroutine. Used by tests that need a
// deterministic ordering.
func WithSynchronousDelivery() Option {
	return func(b *Box) { b.syncDeliver = true }
}

// New creates a Box with fresh sealing and signing keys.
func New(deliverer Deliverer, opts ...Option) (*Box, error) {
	sealingKey, err := GenerateSealingKey()
	if err != nil {
		return nil, err
	}
	aead, err := newAEAD(sealingKey)
	if err != nil {
		return nil, err
	}
	signKey, err := GenerateSigningKey()
	if err != nil {
		return nil, err
	}
	return &Box{
		aead:      aead,
		signKey:   signKey,
		entries:   make(map[sealapi.Handle]*entry),
		deliverer: deliverer,
	}, nil
}

// VerificationKey returns the public half of the envelope signing key.
func (b *Box) VerificationKey() *ecdsa.PublicKey {
	return &b.signKey.PublicKey
}

// Seal encrypts a plaintext scalar and returns a handle for it. A fresh
// handle starts with an empty allow-list, so it cannot be revealed until
// someone is granted access.
func (b *Box) Seal(ctx context.Context, value int64) (sealapi.Handle, error) {
	_ = ctx
	plaintext, err := cbor.Marshal(sealedPayload{Value: value})
	if err != nil {
		return "", fmt.Errorf("marshal sealed payload: %w", err)
	}
	nonce, ciphertext, err := sealBytes(b.aead, plaintext)
	if err != nil {
		return "", err
	}

	h := sealapi.Handle(uuid.NewString())
	b.mu.Lock()
	b.entries[h] = &entry{nonce: nonce, ciphertext: ciphertext}
	b.mu.Unlock()
	return h, nil
}

// Grant appends a principal to the handle's allow-list. Granting twice has no
// additional effect; the only failure is an unknown handle.
func (b *Box) Grant(ctx context.Context, h sealapi.Handle, p core.Principal) error {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[h]
	if !ok {
		return fmt.Errorf("handle %s: %w", h, core.ErrNotFound)
	}
	for _, g := range e.grants {
		if g == p {
			return nil
		}
	}
	e.grants = append(e.grants, p)
	return nil
}

// RequestReveal submits one batched decryption request. It validates that the
// requester holds a grant on every handle, then returns immediately; the
// decrypted values are delivered later as a signed envelope carrying the
// request id and the caller's tag, in the submitted handle order.
func (b *Box) RequestReveal(ctx context.Context, requester core.Principal, handles []sealapi.Handle, tag string) (string, error) {
	if len(handles) == 0 {
		return "", fmt.Errorf("empty reveal batch: %w", core.ErrValidation)
	}

	b.mu.Lock()
	values := make([]int64, 0, len(handles))
	for _, h := range handles {
		e, ok := b.entries[h]
		if !ok {
			b.mu.Unlock()
			return "", fmt.Errorf("handle %s: %w", h, core.ErrNotFound)
		}
		if !granted(e, requester) {
			b.mu.Unlock()
			return "", fmt.Errorf("principal %s has no grant on handle %s: %w", requester, h, core.ErrUnauthorized)
		}
		plaintext, err := openBytes(b.aead, e.nonce, e.ciphertext)
		if err != nil {
			b.mu.Unlock()
			return "", err
		}
		var payload sealedPayload
		if err := cbor.Unmarshal(plaintext, &payload); err != nil {
			b.mu.Unlock()
			return "", fmt.Errorf("unmarshal sealed payload: %w", err)
		}
		values = append(values, payload.Value)
	}
	b.mu.Unlock()

	requestID := uuid.NewString()
	res := sealapi.RevealResult{RequestID: requestID, Tag: tag, Values: values}

	if b.syncDeliver {
		b.dispatch(ctx, res)
	} else {
		go b.dispatch(context.WithoutCancel(ctx), res)
	}
	return requestID, nil
}

func (b *Box) dispatch(ctx context.Context, res sealapi.RevealResult) {
	envelope, err := sealapi.EncodeRevealEnvelope(res, b.signKey)
	if err != nil {
		log.Printf("ERROR: Failed to encode reveal envelope for request %s: %v", res.RequestID, err)
		return
	}
	if err := b.deliverer.Deliver(ctx, envelope); err != nil {
		log.Printf("ERROR: Reveal delivery failed for request %s: %v", res.RequestID, err)
		return
	}
	log.Printf("INFO: Delivered reveal for request %s (%d values)", res.RequestID, len(res.Values))
}

func granted(e *entry, p core.Principal) bool {
	for _, g := range e.grants {
		if g == p {
			return true
		}
	}
	return false
}
