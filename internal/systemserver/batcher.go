package systemserver

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

// State is the per-process lifecycle stage. /health reports 200 only in
// StateReady.
type State int32

const (
	StateCold State = iota
	StateWarming
	StateReady
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCold:
		return "cold"
	case StateWarming:
		return "warming"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// GenerateMetadata is the observability contract attached to every
// completed request: batch_size, queue_wait_ms, generate_ms, model_warm.
type GenerateMetadata struct {
	BatchSize   int
	QueueWaitMs int64
	GenerateMs  int64
	ModelWarm   bool
}

// batchOutcome is delivered back to the request that submitted a prompt.
type batchOutcome struct {
	response *arena.TextToMusicResponse
	metadata GenerateMetadata
	err      error
}

// pendingRequest is internal to the System Server: a queued prompt
// awaiting assembly into a batch.
type pendingRequest struct {
	ctx         context.Context
	prompt      arena.DetailedTextToMusicPrompt
	enqueueTime time.Time
	resultCh    chan batchOutcome
}

func (r *pendingRequest) cancelled() bool {
	return r.ctx.Err() != nil
}

// Config holds the batcher's tunables. Zero values are replaced with
// defaults by NewServer.
type Config struct {
	MaxBatchSize    int
	MaxDelay        time.Duration
	QueueCapacity   int
	GPUTotalGB      float64
	GPUMemGBPerItem float64
}

const (
	defaultMaxBatchSize  = 8
	defaultMaxDelay      = 2 * time.Second
	defaultQueueCapacity = 64
)

func (c Config) withDefaults() Config {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = defaultMaxBatchSize
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = defaultQueueCapacity
	}
	return c
}

// Server is one System Server process: a single model behind a FIFO
// batching queue. The batcher loop is the sole owner of both the queue
// and the model invocation, the same single-goroutine-owns-shared-state
// shape as a pub/sub hub's run loop — everything else communicates with
// it over channels.
type Server struct {
	model  BatchModel
	config Config

	incoming chan *pendingRequest
	shutdown chan struct{}
	done     chan struct{}

	state     atomic.Int32
	warmed    atomic.Bool
	prepareErr error
}

// NewServer constructs a Server and starts its batcher loop in the
// background. Call Shutdown to drain and stop.
func NewServer(model BatchModel, config Config) *Server {
	config = config.withDefaults()
	s := &Server{
		model:    model,
		config:   config,
		incoming: make(chan *pendingRequest, config.QueueCapacity),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.state.Store(int32(StateCold))
	go s.batcherLoop()
	return s
}

func (s *Server) State() State {
	return State(s.state.Load())
}

// Warm synchronously runs Prepare if the server is still Cold, used by
// the /health?warm=1 deterministic warm-up path. It is safe to call
// concurrently; only the first caller actually blocks on Prepare.
func (s *Server) Warm(ctx context.Context) error {
	if s.State() != StateCold {
		return s.prepareErr
	}
	// Signal the batcher loop via a zero-prompt marker would complicate
	// ordering, so warm-up outside of the batcher loop takes the same
	// path: run prepare here directly. The batcher loop's own lazy
	// prepare is guarded by state, so whichever runs first wins and the
	// other observes StateReady/StateWarming and skips.
	if !s.state.CompareAndSwap(int32(StateCold), int32(StateWarming)) {
		return s.prepareErr
	}
	err := s.model.Prepare(ctx)
	if err != nil {
		s.prepareErr = err
		s.state.Store(int32(StateCold))
		return err
	}
	s.warmed.Store(true)
	s.state.Store(int32(StateReady))
	return nil
}

// Enqueue submits a prompt for generation. Returns arena.NewInternalError
// wrapped 503-equivalent busy error (via the caller checking queue
// capacity) when the queue is full.
func (s *Server) Enqueue(ctx context.Context, prompt arena.DetailedTextToMusicPrompt) (*arena.TextToMusicResponse, GenerateMetadata, error) {
	if s.State() == StateStopped || s.State() == StateDraining {
		return nil, GenerateMetadata{}, arena.NewInternalError("system server is shutting down")
	}

	req := &pendingRequest{
		ctx:         ctx,
		prompt:      prompt,
		enqueueTime: time.Now(),
		resultCh:    make(chan batchOutcome, 1),
	}

	select {
	case s.incoming <- req:
	default:
		return nil, GenerateMetadata{}, &BusyError{RetryAfter: s.config.MaxDelay}
	}

	select {
	case outcome := <-req.resultCh:
		return outcome.response, outcome.metadata, outcome.err
	case <-ctx.Done():
		return nil, GenerateMetadata{}, arena.NewBatchTimeoutError("request deadline expired while queued")
	}
}

// BusyError signals the queue is at capacity.
type BusyError struct {
	RetryAfter time.Duration
}

func (e *BusyError) Error() string { return "system server busy" }

// Shutdown transitions through DRAINING to STOPPED, releasing the model.
// Any requests still queued receive a failure.
func (s *Server) Shutdown(ctx context.Context) error {
	s.state.Store(int32(StateDraining))
	close(s.shutdown)
	<-s.done
	s.state.Store(int32(StateStopped))
	return s.model.Release(ctx)
}

func (s *Server) batcherLoop() {
	defer close(s.done)

	for {
		var first *pendingRequest
		select {
		case req := <-s.incoming:
			first = req
		case <-s.shutdown:
			s.drainRemaining()
			return
		}

		if first.cancelled() {
			continue
		}

		if s.State() == StateCold {
			s.state.Store(int32(StateWarming))
			if err := s.model.Prepare(context.Background()); err != nil {
				s.prepareErr = err
				s.state.Store(int32(StateCold))
				first.resultCh <- batchOutcome{err: arena.NewInternalError("model failed to warm: " + err.Error())}
				continue
			}
			s.warmed.Store(true)
			s.state.Store(int32(StateReady))
		}

		batch := s.assembleBatch(first)
		s.dispatchBatch(batch)
	}
}

func (s *Server) assembleBatch(first *pendingRequest) []*pendingRequest {
	effectiveMax := EffectiveMaxBatchSize(s.config.MaxBatchSize, s.config.GPUTotalGB, s.config.GPUMemGBPerItem)
	batch := []*pendingRequest{first}

	timer := time.NewTimer(s.config.MaxDelay)
	defer timer.Stop()

	for len(batch) < effectiveMax {
		select {
		case req := <-s.incoming:
			if req.cancelled() {
				continue
			}
			batch = append(batch, req)
		case <-timer.C:
			return dropCancelled(batch)
		case <-s.shutdown:
			return dropCancelled(batch)
		}
	}
	return dropCancelled(batch)
}

func dropCancelled(batch []*pendingRequest) []*pendingRequest {
	out := make([]*pendingRequest, 0, len(batch))
	for _, r := range batch {
		if !r.cancelled() {
			out = append(out, r)
		}
	}
	return out
}

// dispatchBatch groups the batch into per-seed sub-batches (preserving
// insertion order), invokes the model once per sub-batch, and fans
// results back. A whole sub-batch failure fails every request in it
// identically; per-item failures are isolated.
func (s *Server) dispatchBatch(batch []*pendingRequest) {
	if len(batch) == 0 {
		return
	}

	groups := groupBySeed(batch)
	for _, group := range groups {
		s.dispatchSubBatch(group)
	}
}

func groupBySeed(batch []*pendingRequest) [][]*pendingRequest {
	index := make(map[uint32]int)
	var groups [][]*pendingRequest
	for _, r := range batch {
		seed := r.prompt.Seed
		if i, ok := index[seed]; ok {
			groups[i] = append(groups[i], r)
			continue
		}
		index[seed] = len(groups)
		groups = append(groups, []*pendingRequest{r})
	}
	// Stable order: sort groups by the enqueue position of their first
	// member so FIFO order of the first request in the batch is honored.
	sort.SliceStable(groups, func(i, j int) bool {
		return batchPosition(batch, groups[i][0]) < batchPosition(batch, groups[j][0])
	})
	return groups
}

func batchPosition(batch []*pendingRequest, target *pendingRequest) int {
	for i, r := range batch {
		if r == target {
			return i
		}
	}
	return len(batch)
}

func (s *Server) dispatchSubBatch(group []*pendingRequest) {
	start := time.Now()
	prompts := make([]arena.DetailedTextToMusicPrompt, len(group))
	for i, r := range group {
		prompts[i] = r.prompt
	}

	results, err := s.model.GenerateBatch(context.Background(), prompts)
	generateMs := time.Since(start).Milliseconds()

	if err != nil {
		for _, r := range group {
			r.resultCh <- batchOutcome{err: arena.NewInternalError("generate_batch failed: " + err.Error())}
		}
		return
	}

	for i, r := range group {
		queueWaitMs := start.Sub(r.enqueueTime).Milliseconds()
		if i >= len(results) || results[i].Err != nil {
			errMsg := "generate_batch returned no result for this item"
			if i < len(results) {
				errMsg = results[i].Err.Error()
			}
			r.resultCh <- batchOutcome{err: arena.NewInternalError(errMsg)}
			continue
		}
		resp := results[i].Response
		r.resultCh <- batchOutcome{
			response: resp,
			metadata: GenerateMetadata{
				BatchSize:   len(group),
				QueueWaitMs: queueWaitMs,
				GenerateMs:  generateMs,
				ModelWarm:   s.warmed.Load(),
			},
		}
	}
}

func (s *Server) drainRemaining() {
	for {
		select {
		case req := <-s.incoming:
			req.resultCh <- batchOutcome{err: arena.NewInternalError("system server is shutting down")}
		default:
			return
		}
	}
}
