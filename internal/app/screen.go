package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sz-labs/randombark/internal/config"
	"github.com/sz-labs/randombark/internal/domain"
	"github.com/sz-labs/randombark/internal/fetchstate"
	"github.com/sz-labs/randombark/internal/logger"
	"github.com/sz-labs/randombark/internal/metrics"
	"github.com/sz-labs/randombark/internal/storage"
	"github.com/sz-labs/randombark/pkg/dogapi"
	"github.com/sz-labs/randombark/pkg/httpclient"
	"github.com/sz-labs/randombark/pkg/publishers"
)

// DogState is the state published for the random dog screen.
type DogState = fetchstate.State[domain.DogPayload]

var (
	ErrNotAttached     = errors.New("screen is not attached")
	ErrAlreadyAttached = errors.New("screen is already attached")
	ErrClosed          = errors.New("screen is closed")
)

const (
	defaultSinkBuffer     = 64
	defaultPublishTimeout = 10 * time.Second
)

// Deps are the collaborators a Screen drives. Nil Store and Fanout disable
// seen-image tracking and downstream publishing.
type Deps struct {
	Fetcher        dogapi.Fetcher
	Store          storage.Store
	Fanout         *publishers.Fanout
	SinkBuffer     int
	PublishTimeout time.Duration
	Log            logger.Logger
}

// Screen owns the current-state cell of one attached view. The cell exists
// from Attach to Detach; renderers only read it and trigger fetches. The
// store and publishers live until Close, so a screen may be attached again.
type Screen struct {
	deps Deps
	log  logger.Logger

	mu        sync.RWMutex
	closed    bool
	machine   *fetchstate.Machine[domain.DogPayload]
	unobserve func()
	sink      chan DogState
	sinkDone  chan struct{}
}

// NewScreen builds a Screen and its collaborators from config.
func NewScreen(ctx context.Context, cfg *config.Config, log logger.Logger) (*Screen, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	client := dogapi.NewClient(httpclient.NewRestyClient(httpclient.Options{Log: log}), cfg.DogAPIBaseURL, dogapi.WithUserAgent(cfg.UserAgent))
	log.InfoObj("dog api client configured", "dog_api", map[string]any{
		"endpoint":   client.Endpoint(),
		"user_agent": cfg.UserAgent,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		ImageTTL:        cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"image_ttl_seconds":        int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return NewScreenWith(Deps{
		Fetcher:        client,
		Store:          store,
		Fanout:         fanout,
		SinkBuffer:     cfg.SinkBuffer,
		PublishTimeout: cfg.SinkTimeout,
		Log:            log,
	}), nil
}

// buildFanout loads the optional publishers file. An empty path yields an empty fanout.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if path == "" {
		log.InfoObj("no publishers file configured; results stay local", "publishers_file", path)
		return publishers.NewFanout(nil), nil
	}

	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultBuilders(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, p := range enabled {
		summaries = append(summaries, map[string]string{"id": p.ID, "type": p.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

// NewScreenWith builds a Screen over explicit collaborators.
func NewScreenWith(deps Deps) *Screen {
	deps.Log = logger.Ensure(deps.Log)
	if deps.Store == nil {
		deps.Store, _ = storage.NewStore(storage.TypeNone, "", storage.Options{})
	}
	if deps.Fanout == nil {
		deps.Fanout = publishers.NewFanout(nil)
	}
	if deps.SinkBuffer <= 0 {
		deps.SinkBuffer = defaultSinkBuffer
	}
	if deps.PublishTimeout <= 0 {
		deps.PublishTimeout = defaultPublishTimeout
	}
	return &Screen{deps: deps, log: deps.Log}
}

// Attach creates the state cell (initially Loading), starts the result sink
// and begins the first fetch.
func (s *Screen) Attach(ctx context.Context) error {
	if s == nil || s.deps.Fetcher == nil {
		return fmt.Errorf("screen is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.machine != nil {
		s.mu.Unlock()
		return ErrAlreadyAttached
	}
	machine := fetchstate.NewMachine(s.deps.Fetcher.Fetch,
		fetchstate.WithLogger[domain.DogPayload](s.log),
		fetchstate.WithBaseContext[domain.DogPayload](ctx),
		fetchstate.WithHooks[domain.DogPayload](fetchstate.Hooks{
			Started: func(string) { metrics.RecordFetchStarted() },
			Finished: func(_ string, status fetchstate.Status, err error, elapsed time.Duration) {
				metrics.RecordFetchFinished(status.String(), dogapi.Kind(err), elapsed)
			},
		}),
	)
	sink := make(chan DogState, s.deps.SinkBuffer)
	done := make(chan struct{})

	s.machine = machine
	s.sink = sink
	s.sinkDone = done
	s.unobserve = machine.Observe(func(st DogState) { s.enqueue(sink, st) })
	s.mu.Unlock()

	go s.runSink(context.WithoutCancel(ctx), sink, done)

	s.log.InfoObj("screen attached", "screen_state", map[string]any{
		"publishers_count": s.deps.Fanout.Size(),
		"sink_buffer":      s.deps.SinkBuffer,
	})
	machine.BeginFetch()
	return nil
}

// Detach stops observing the cell and flushes queued results to the sinks.
// In-flight fetches are not cancelled; their results are simply no longer
// observed. The store and publishers stay open for a later Attach.
func (s *Screen) Detach() error {
	s.mu.Lock()
	if s.machine == nil {
		s.mu.Unlock()
		return ErrNotAttached
	}
	stop := s.detachLocked()
	s.mu.Unlock()

	stop()
	s.log.InfoObj("screen detached", "screen_state", map[string]any{"publishers_count": s.deps.Fanout.Size()})
	return nil
}

// Close detaches if needed, then releases the store and publishers. Attach
// fails with ErrClosed afterwards. Close is idempotent.
func (s *Screen) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stop := func() {}
	if s.machine != nil {
		stop = s.detachLocked()
	}
	s.mu.Unlock()

	stop()

	var errs []error
	if err := s.deps.Fanout.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publishers: %w", err))
	}
	if err := s.deps.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	s.log.InfoObj("screen closed", "screen_state", map[string]any{"errors": len(errs)})
	return errors.Join(errs...)
}

// detachLocked clears the attachment and returns the func that stops
// observation and drains the sink. Callers hold s.mu and run it after unlocking.
func (s *Screen) detachLocked() func() {
	unobserve, sink, done := s.unobserve, s.sink, s.sinkDone
	s.machine, s.unobserve, s.sink, s.sinkDone = nil, nil, nil, nil
	return func() {
		unobserve()
		close(sink)
		<-done
	}
}

// BeginFetch starts a new attempt and returns its ID.
func (s *Screen) BeginFetch() (string, error) {
	m := s.current()
	if m == nil {
		return "", ErrNotAttached
	}
	return m.BeginFetch(), nil
}

// State returns the latest state. A detached screen reports Loading.
func (s *Screen) State() DogState {
	m := s.current()
	if m == nil {
		return fetchstate.Loading[domain.DogPayload]()
	}
	return m.State()
}

// Subscribe returns a latest-value channel of states.
func (s *Screen) Subscribe() (<-chan DogState, func(), error) {
	m := s.current()
	if m == nil {
		return nil, nil, ErrNotAttached
	}
	ch, cancel := m.Subscribe()
	return ch, cancel, nil
}

// Wait blocks until in-flight fetches have resolved.
func (s *Screen) Wait() {
	if m := s.current(); m != nil {
		m.Wait()
	}
}

func (s *Screen) current() *fetchstate.Machine[domain.DogPayload] {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.machine
}
