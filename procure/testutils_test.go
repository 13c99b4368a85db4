package procure

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cloudx-io/sealedtender/core"
	"github.com/cloudx-io/sealedtender/sealapi"
)

const testAuthority = core.Principal("authority")

// fakeSealer is a deterministic, scripted stand-in for the sealing
// capability: it remembers every sealed value and records reveal requests
// without delivering anything. Tests craft the callback themselves, which
// decouples state-machine tests from crypto and async delivery.
type fakeSealer struct {
	values   map[sealapi.Handle]int64
	grants   map[sealapi.Handle][]core.Principal
	requests []fakeRevealRequest
	sealErr  error
}

type fakeRevealRequest struct {
	id      string
	tag     string
	handles []sealapi.Handle
}

func newFakeSealer() *fakeSealer {
	return &fakeSealer{
		values: map[sealapi.Handle]int64{},
		grants: map[sealapi.Handle][]core.Principal{},
	}
}

func (f *fakeSealer) Seal(_ context.Context, value int64) (sealapi.Handle, error) {
	if f.sealErr != nil {
		return "", f.sealErr
	}
	h := sealapi.Handle(fmt.Sprintf("h-%d", len(f.values)+1))
	f.values[h] = value
	return h, nil
}

func (f *fakeSealer) Grant(_ context.Context, h sealapi.Handle, p core.Principal) error {
	if _, ok := f.values[h]; !ok {
		return fmt.Errorf("handle %s: %w", h, core.ErrNotFound)
	}
	for _, g := range f.grants[h] {
		if g == p {
			return nil
		}
	}
	f.grants[h] = append(f.grants[h], p)
	return nil
}

func (f *fakeSealer) RequestReveal(_ context.Context, _ core.Principal, handles []sealapi.Handle, tag string) (string, error) {
	req := fakeRevealRequest{
		id:      fmt.Sprintf("req-%d", len(f.requests)+1),
		tag:     tag,
		handles: append([]sealapi.Handle(nil), handles...),
	}
	f.requests = append(f.requests, req)
	return req.id, nil
}

// lastRequest returns the most recent reveal request.
func (f *fakeSealer) lastRequest(t *testing.T) fakeRevealRequest {
	t.Helper()
	if len(f.requests) == 0 {
		t.Fatal("no reveal request recorded")
	}
	return f.requests[len(f.requests)-1]
}

// result builds the callback the real capability would send for a request:
// the sealed plaintexts in handle order.
func (f *fakeSealer) result(req fakeRevealRequest) sealapi.RevealResult {
	values := make([]int64, 0, len(req.handles))
	for _, h := range req.handles {
		values = append(values, f.values[h])
	}
	return sealapi.RevealResult{RequestID: req.id, Tag: req.tag, Values: values}
}

// testClock is a mutable fixed time source.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, *fakeSealer, *testClock, *[]Event) {
	t.Helper()
	sealer := newFakeSealer()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	var published []Event
	events := NewPublisher("procure-test")
	events.Subscribe(func(e Event) { published = append(published, e) })

	svc := NewService(NewMemoryStore(), sealer, testAuthority,
		WithClock(clock.Now),
		WithEvents(events),
	)
	return svc, sealer, clock, &published
}

// openTender registers the given suppliers, creates a tender, and submits one
// bid per (supplier, amount) pair. Returns the tender id.
func openTender(t *testing.T, svc *Service, clock *testClock, bidders []core.Principal, amounts []int64) string {
	t.Helper()
	ctx := context.Background()

	tenderID, err := svc.CreateTender(ctx, testAuthority, TenderInput{
		Title:    "road resurfacing",
		Budget:   1000,
		Deadline: clock.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create tender: %v", err)
	}
	for i, bidder := range bidders {
		if _, err := svc.GetSupplier(ctx, bidder); err != nil {
			if err := svc.RegisterSupplier(ctx, bidder, string(bidder), "construction"); err != nil {
				t.Fatalf("register %s: %v", bidder, err)
			}
		}
		if err := svc.SubmitBid(ctx, bidder, tenderID, amounts[i], "proposal"); err != nil {
			t.Fatalf("submit bid %s: %v", bidder, err)
		}
	}
	return tenderID
}
