package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sz-labs/randombark/internal/config"
	"github.com/sz-labs/randombark/internal/domain"
	"github.com/sz-labs/randombark/internal/fetchstate"
	"github.com/sz-labs/randombark/pkg/dogapi"
	"github.com/sz-labs/randombark/pkg/publishers"
)

// fakeFetcher returns queued results in call order.
type fakeFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
}

type fetchResult struct {
	dog domain.DogPayload
	err error
}

func (f *fakeFetcher) Fetch(context.Context) (domain.DogPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[f.calls%len(f.results)]
	f.calls++
	return r.dog, r.err
}

var errStoreClosed = errors.New("store closed")

// fakeStore tracks seen URLs in memory and fails once closed.
type fakeStore struct {
	mu     sync.Mutex
	seen   map[string]bool
	closed bool
}

func (f *fakeStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeStore) SeenImage(u string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, errStoreClosed
	}
	return f.seen[u], nil
}

func (f *fakeStore) MarkImage(u string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errStoreClosed
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	f.seen[u] = true
	return nil
}

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []publishers.Event
	err    error
}

func (c *capturePublisher) ID() string   { return "capture" }
func (c *capturePublisher) Type() string { return "test" }
func (c *capturePublisher) Publish(_ context.Context, evt publishers.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return c.err
}

func (c *capturePublisher) snapshot() []publishers.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]publishers.Event(nil), c.events...)
}

// stalledPublisher blocks until its context ends and records why.
type stalledPublisher struct {
	mu   sync.Mutex
	errs []error
}

func (p *stalledPublisher) ID() string   { return "stalled" }
func (p *stalledPublisher) Type() string { return "test" }
func (p *stalledPublisher) Publish(ctx context.Context, _ publishers.Event) error {
	<-ctx.Done()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, ctx.Err())
	return ctx.Err()
}

var pug = domain.DogPayload{Breed: "pug", ImageURL: "https://images.dog.ceo/breeds/pug/n02110958_1975.jpg"}

func TestAttachFetchesImmediately(t *testing.T) {
	fetcher := &fakeFetcher{results: []fetchResult{{dog: pug}}}
	pub := &capturePublisher{}
	store := &fakeStore{}
	screen := NewScreenWith(Deps{
		Fetcher: fetcher,
		Store:   store,
		Fanout:  publishers.NewFanout([]publishers.Publisher{pub}),
	})

	if !screen.State().IsLoading() {
		t.Fatalf("detached screen should report Loading")
	}
	if err := screen.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	screen.Wait()

	dog, ok := screen.State().Value()
	if !ok || dog != pug {
		t.Fatalf("unexpected state %v", screen.State())
	}
	if err := screen.Attach(context.Background()); !errors.Is(err, ErrAlreadyAttached) {
		t.Fatalf("expected ErrAlreadyAttached, got %v", err)
	}

	if err := screen.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].Status != publishers.StatusSuccess || pub.events[0].SeenBefore {
		t.Fatalf("unexpected events %+v", pub.events)
	}
	if store.closed {
		t.Fatalf("store should stay open after detach")
	}
	if err := screen.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !store.closed {
		t.Fatalf("expected store closed by Close")
	}
}

func TestReattachReusesOpenStore(t *testing.T) {
	pub := &capturePublisher{}
	store := &fakeStore{}
	screen := NewScreenWith(Deps{
		Fetcher: &fakeFetcher{results: []fetchResult{{dog: pug}}},
		Store:   store,
		Fanout:  publishers.NewFanout([]publishers.Publisher{pub}),
	})

	for i := 0; i < 2; i++ {
		if err := screen.Attach(context.Background()); err != nil {
			t.Fatalf("Attach #%d: %v", i+1, err)
		}
		screen.Wait()
		if err := screen.Detach(); err != nil {
			t.Fatalf("Detach #%d: %v", i+1, err)
		}
	}

	events := pub.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].SeenBefore || !events[1].SeenBefore {
		t.Fatalf("expected only the second event flagged as seen, got %+v", events)
	}
	if store.closed {
		t.Fatalf("store should stay open across attachments")
	}

	if err := screen.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := screen.Attach(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
	if err := screen.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestCloseDetachesAttachedScreen(t *testing.T) {
	pub := &capturePublisher{}
	store := &fakeStore{}
	screen := NewScreenWith(Deps{
		Fetcher: &fakeFetcher{results: []fetchResult{{dog: pug}}},
		Store:   store,
		Fanout:  publishers.NewFanout([]publishers.Publisher{pub}),
	})
	if err := screen.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	screen.Wait()

	if err := screen.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(pub.snapshot()) != 1 {
		t.Fatalf("expected the queued result flushed before close")
	}
	if !store.closed {
		t.Fatalf("expected store closed")
	}
	if err := screen.Detach(); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("expected ErrNotAttached after Close, got %v", err)
	}
}

func TestStalledPublisherDoesNotBlockDetach(t *testing.T) {
	pub := &stalledPublisher{}
	screen := NewScreenWith(Deps{
		Fetcher:        &fakeFetcher{results: []fetchResult{{dog: pug}}},
		Fanout:         publishers.NewFanout([]publishers.Publisher{pub}),
		PublishTimeout: 20 * time.Millisecond,
	})
	if err := screen.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	screen.Wait()

	detached := make(chan error, 1)
	go func() { detached <- screen.Detach() }()
	select {
	case err := <-detached:
		if err != nil {
			t.Fatalf("Detach: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Detach blocked on a stalled publisher")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.errs) != 1 || !errors.Is(pub.errs[0], context.DeadlineExceeded) {
		t.Fatalf("expected one publish cut off by the deadline, got %v", pub.errs)
	}
}

func TestRepeatImageIsFlagged(t *testing.T) {
	pub := &capturePublisher{}
	screen := NewScreenWith(Deps{
		Fetcher: &fakeFetcher{results: []fetchResult{{dog: pug}}},
		Store:   &fakeStore{},
		Fanout:  publishers.NewFanout([]publishers.Publisher{pub}),
	})
	if err := screen.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	screen.Wait()
	if _, err := screen.BeginFetch(); err != nil {
		t.Fatalf("BeginFetch: %v", err)
	}
	screen.Wait()
	if err := screen.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}

	if len(pub.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.events))
	}
	if pub.events[0].SeenBefore || !pub.events[1].SeenBefore {
		t.Fatalf("expected only the second fetch to be a repeat: %+v", pub.events)
	}
}

func TestFailureEventCarriesKind(t *testing.T) {
	pub := &capturePublisher{}
	screen := NewScreenWith(Deps{
		Fetcher: &fakeFetcher{results: []fetchResult{{err: &dogapi.DecodeError{Err: dogapi.ErrMissingMessage}}}},
		Fanout:  publishers.NewFanout([]publishers.Publisher{pub}),
	})
	if err := screen.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	screen.Wait()

	if screen.State().Status() != fetchstate.StatusError {
		t.Fatalf("expected Error state, got %v", screen.State())
	}
	if err := screen.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].ErrorKind != dogapi.KindDecode {
		t.Fatalf("unexpected events %+v", pub.events)
	}
}

func TestPublishFailureDoesNotAffectState(t *testing.T) {
	pub := &capturePublisher{err: errors.New("sink down")}
	screen := NewScreenWith(Deps{
		Fetcher: &fakeFetcher{results: []fetchResult{{dog: pug}}},
		Fanout:  publishers.NewFanout([]publishers.Publisher{pub}),
	})
	if err := screen.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	screen.Wait()
	if err := screen.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected the event to be attempted once, got %d", len(pub.events))
	}
}

func TestDetachedScreenRejectsOperations(t *testing.T) {
	screen := NewScreenWith(Deps{Fetcher: &fakeFetcher{results: []fetchResult{{dog: pug}}}})
	if _, err := screen.BeginFetch(); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("BeginFetch before attach: %v", err)
	}
	if _, _, err := screen.Subscribe(); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("Subscribe before attach: %v", err)
	}
	if err := screen.Detach(); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("Detach before attach: %v", err)
	}
}

func TestNewScreenAgainstDogAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != dogapi.RandomImagePath {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "down for maintenance", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := &config.Config{
		DogAPIBaseURL: srv.URL,
		UserAgent:     "randombark-test",
		StorageType:   "bbolt",
		BBoltPath:     t.TempDir() + "/seen.db",
		SinkBuffer:    4,
	}
	screen, err := NewScreen(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewScreen: %v", err)
	}
	if err := screen.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	screen.Wait()

	var te *dogapi.TransportError
	if !errors.As(screen.State().Err(), &te) || te.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected TransportError(500), got %v", screen.State().Err())
	}
	if err := screen.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}

	// bbolt stays open until Close, so a second attachment still works.
	if err := screen.Attach(context.Background()); err != nil {
		t.Fatalf("re-Attach: %v", err)
	}
	screen.Wait()
	if err := screen.Detach(); err != nil {
		t.Fatalf("second Detach: %v", err)
	}
	if err := screen.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewScreenRejectsBadPublishersFile(t *testing.T) {
	cfg := &config.Config{
		DogAPIBaseURL:  "https://dog.ceo",
		StorageType:    "none",
		PublishersFile: t.TempDir() + "/missing.yaml",
	}
	if _, err := NewScreen(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for missing publishers file")
	}
}
