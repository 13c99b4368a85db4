package sealbox

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/sealedtender/core"
	"github.com/cloudx-io/sealedtender/sealapi"
)

// captureDeliverer records envelopes instead of shipping them anywhere.
type captureDeliverer struct {
	envelopes [][]byte
}

func (c *captureDeliverer) Deliver(_ context.Context, envelope []byte) error {
	c.envelopes = append(c.envelopes, envelope)
	return nil
}

func newTestBox(t *testing.T) (*Box, *captureDeliverer) {
	t.Helper()
	capture := &captureDeliverer{}
	box, err := New(capture, WithSynchronousDelivery())
	assert.NoError(t, err)
	return box, capture
}

func TestBox_SealGrantReveal(t *testing.T) {
	ctx := context.Background()
	box, capture := newTestBox(t)

	h1, err := box.Seal(ctx, 200)
	assert.NoError(t, err)
	h2, err := box.Seal(ctx, 150)
	assert.NoError(t, err)

	assert.NoError(t, box.Grant(ctx, h1, core.PrincipalSystem))
	assert.NoError(t, box.Grant(ctx, h2, core.PrincipalSystem))

	requestID, err := box.RequestReveal(ctx, core.PrincipalSystem, []sealapi.Handle{h1, h2}, "tender-1")
	assert.NoError(t, err)
	check.NotEqual(t, "", requestID)

	assert.Equal(t, 1, len(capture.envelopes))
	res, err := sealapi.VerifyRevealEnvelope(capture.envelopes[0], box.VerificationKey())
	assert.NoError(t, err)

	check.Equal(t, requestID, res.RequestID)
	check.Equal(t, "tender-1", res.Tag)
	check.Equal(t, []int64{200, 150}, res.Values)
}

func TestBox_RevealDeniedWithoutGrant(t *testing.T) {
	ctx := context.Background()
	box, capture := newTestBox(t)

	h, err := box.Seal(ctx, 42)
	assert.NoError(t, err)

	// fresh handle has an empty allow-list, so nobody can reveal it
	_, err = box.RequestReveal(ctx, core.PrincipalSystem, []sealapi.Handle{h}, "t")
	check.True(t, errors.Is(err, core.ErrUnauthorized))
	check.Equal(t, 0, len(capture.envelopes))

	// a grant to one principal does not open the handle to others
	assert.NoError(t, box.Grant(ctx, h, "supplier-a"))
	_, err = box.RequestReveal(ctx, core.PrincipalSystem, []sealapi.Handle{h}, "t")
	check.True(t, errors.Is(err, core.ErrUnauthorized))
}

func TestBox_RevealRequiresGrantOnEveryHandle(t *testing.T) {
	ctx := context.Background()
	box, capture := newTestBox(t)

	h1, _ := box.Seal(ctx, 1)
	h2, _ := box.Seal(ctx, 2)
	assert.NoError(t, box.Grant(ctx, h1, core.PrincipalSystem))

	_, err := box.RequestReveal(ctx, core.PrincipalSystem, []sealapi.Handle{h1, h2}, "t")
	check.True(t, errors.Is(err, core.ErrUnauthorized))
	check.Equal(t, 0, len(capture.envelopes))
}

func TestBox_GrantIdempotent(t *testing.T) {
	ctx := context.Background()
	box, _ := newTestBox(t)

	h, err := box.Seal(ctx, 7)
	assert.NoError(t, err)

	assert.NoError(t, box.Grant(ctx, h, "supplier-a"))
	assert.NoError(t, box.Grant(ctx, h, "supplier-a"))

	_, err = box.RequestReveal(ctx, "supplier-a", []sealapi.Handle{h}, "t")
	check.NoError(t, err)
}

func TestBox_UnknownHandle(t *testing.T) {
	ctx := context.Background()
	box, _ := newTestBox(t)

	err := box.Grant(ctx, "no-such-handle", core.PrincipalSystem)
	check.True(t, errors.Is(err, core.ErrNotFound))

	_, err = box.RequestReveal(ctx, core.PrincipalSystem, []sealapi.Handle{"no-such-handle"}, "t")
	check.True(t, errors.Is(err, core.ErrNotFound))
}

func TestBox_EmptyBatchRejected(t *testing.T) {
	ctx := context.Background()
	box, _ := newTestBox(t)

	_, err := box.RequestReveal(ctx, core.PrincipalSystem, nil, "t")
	check.True(t, errors.Is(err, core.ErrValidation))
}

func TestBox_RequestIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	box, _ := newTestBox(t)

	h, _ := box.Seal(ctx, 1)
	assert.NoError(t, box.Grant(ctx, h, core.PrincipalSystem))

	id1, err := box.RequestReveal(ctx, core.PrincipalSystem, []sealapi.Handle{h}, "t")
	assert.NoError(t, err)
	id2, err := box.RequestReveal(ctx, core.PrincipalSystem, []sealapi.Handle{h}, "t")
	assert.NoError(t, err)

	check.NotEqual(t, id1, id2)
}
