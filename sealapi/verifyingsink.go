package sealapi

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/cloudx-io/sealedtender/core"
)

// VerifyingSink unwraps signed reveal envelopes and forwards the verified
// result to the next sink. A bad signature or malformed envelope is a
// protocol violation and never reaches the engine.
type VerifyingSink struct {
	Key  *ecdsa.PublicKey
	Next RevealSink
}

// Deliver verifies the envelope and forwards the embedded result.
func (s *VerifyingSink) Deliver(ctx context.Context, envelope []byte) error {
	res, err := VerifyRevealEnvelope(envelope, s.Key)
	if err != nil {
		return fmt.Errorf("reveal envelope rejected: %v: %w", err, core.ErrProtocol)
	}
	return s.Next.OnRevealed(ctx, res)
}
