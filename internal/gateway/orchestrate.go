package gateway

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gclef-cmu/music-arena/internal/arena"
	"github.com/gclef-cmu/music-arena/internal/sampler"
)

// promptOverrides carries the optional duration/instrumental hints a
// client may supply alongside free text, applied after routing.
type promptOverrides struct {
	duration     *float64
	instrumental *bool
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

type timingRecorder struct {
	events []arena.TimingEvent
}

func (t *timingRecorder) mark(stage string) {
	t.events = append(t.events, arena.TimingEvent{Stage: stage, Timestamp: nowUnix()})
}

// candidates computes the set of systems that can serve prompt: a local
// predicate from registry metadata rules out lyrics-incapable systems
// without a network call; everything else is resolved with a live
// /prompt_support probe.
func (s *Server) candidates(ctx context.Context, prompt arena.DetailedTextToMusicPrompt) []arena.SystemKey {
	keys := s.registry.All()
	supports := make(map[arena.SystemKey]arena.PromptSupport, len(keys))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, key := range keys {
		meta, _ := s.registry.Lookup(key)
		if !prompt.Instrumental && !meta.SupportsLyrics {
			supports[key] = arena.UnsupportedLyrics
			continue
		}

		key := key
		wg.Add(1)
		go func() {
			defer wg.Done()
			client, ok := s.clients[key]
			if !ok {
				mu.Lock()
				supports[key] = arena.Unsupported
				mu.Unlock()
				return
			}
			support, err := client.PromptSupport(ctx, prompt)
			if err != nil {
				support = arena.Unsupported
			}
			mu.Lock()
			supports[key] = support
			mu.Unlock()
		}()
	}
	wg.Wait()

	return sampler.Candidates(keys, prompt, func(k arena.SystemKey, _ arena.DetailedTextToMusicPrompt) arena.PromptSupport {
		return supports[k]
	})
}

// generateSide calls one system's Generator Client and stamps the
// gateway-side timing fields the remote can't know about.
func (s *Server) generateSide(ctx context.Context, key arena.SystemKey, prompt arena.DetailedTextToMusicPrompt) (*arena.TextToMusicResponse, arena.ResponseMetadata, error) {
	client, ok := s.clients[key]
	if !ok {
		return nil, arena.ResponseMetadata{}, arena.NewUnreachableError("no client configured for " + key.String())
	}
	started := nowUnix()
	resp, meta, err := client.Generate(ctx, prompt)
	if err != nil {
		return nil, arena.ResponseMetadata{}, err
	}
	meta.GatewayStartedAtUnix = started
	meta.GatewayCompletedAtUnix = nowUnix()
	return resp, meta, nil
}

// dispatchPair runs both sides' generate calls concurrently via
// errgroup. Each side's error is captured independently so one failing
// side never cancels the other's in-flight call.
func (s *Server) dispatchPair(ctx context.Context, a, b arena.SystemKey, prompt arena.DetailedTextToMusicPrompt) (
	respA *arena.TextToMusicResponse, metaA arena.ResponseMetadata, errA error,
	respB *arena.TextToMusicResponse, metaB arena.ResponseMetadata, errB error,
) {
	var g errgroup.Group
	g.Go(func() error {
		respA, metaA, errA = s.generateSide(ctx, a, prompt)
		return nil
	})
	g.Go(func() error {
		respB, metaB, errB = s.generateSide(ctx, b, prompt)
		return nil
	})
	_ = g.Wait()
	return
}

// resampleSide picks a replacement for the failing side from candidates
// not already tried, weighted by the directional matchup weight against
// the surviving side (falling back to a uniform draw when the weight
// table has no signal, the same fallback sampler.Sample uses).
// replacementIsA reports whether the replacement takes the "A" slot.
func (s *Server) resampleSide(candidates []arena.SystemKey, survivor arena.SystemKey, replacementIsA bool, excluded map[arena.SystemKey]bool) (arena.SystemKey, bool) {
	var pool []arena.SystemKey
	for _, c := range candidates {
		if !excluded[c] {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return arena.SystemKey{}, false
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].Less(pool[j]) })

	weights := make([]float64, len(pool))
	var total float64
	for i, c := range pool {
		var w float64
		if replacementIsA {
			w = s.weights[sampler.Pair{A: c, B: survivor}]
		} else {
			w = s.weights[sampler.Pair{A: survivor, B: c}]
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		for i := range weights {
			weights[i] = 1
		}
		total = float64(len(weights))
	}

	draw := s.drawRand() * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if draw < cumulative {
			return pool[i], true
		}
	}
	return pool[len(pool)-1], true
}

// generateBattle is the orchestration core shared by /generate_battle and
// /health_check: parse → (moderate/route unless already detailed) →
// sample → dispatch → resample-on-single-failure → upload → persist.
func (s *Server) generateBattle(ctx context.Context, session arena.Session, user arena.User, text string, detailed *arena.DetailedTextToMusicPrompt, overrides promptOverrides, prebakedChecksum *string) (*arena.BattleRecord, []byte, []byte, error) {
	timings := &timingRecorder{}
	timings.mark("parse")

	var prompt arena.DetailedTextToMusicPrompt
	if detailed != nil {
		prompt = *detailed
	} else {
		routed, err := s.pipeline.Process(ctx, text)
		if err != nil {
			return nil, nil, nil, err
		}
		prompt = routed
		if overrides.duration != nil {
			prompt.Duration = *overrides.duration
		}
		if overrides.instrumental != nil {
			prompt.Instrumental = *overrides.instrumental
		}
		if err := prompt.Validate(); err != nil {
			return nil, nil, nil, arena.NewValidationError(err.Error())
		}
	}
	timings.mark("route")

	candidateSet := s.candidates(ctx, prompt)
	a, b, err := s.sample(candidateSet)
	if err != nil {
		return nil, nil, nil, err
	}
	timings.mark("sample_pair")

	respA, metaA, errA, respB, metaB, errB := s.dispatchPair(ctx, a, b, prompt)
	timings.mark("generate")

	excluded := map[arena.SystemKey]bool{a: true, b: true}
	switch {
	case errA == nil && errB == nil:
		// both sides succeeded, proceed as sampled.
	case errA != nil && errB != nil:
		return nil, nil, nil, arena.NewGenerateFailedError("both")
	case errA != nil:
		replacement, ok := s.resampleSide(candidateSet, b, true, excluded)
		if !ok {
			return nil, nil, nil, arena.NewGenerateFailedError("a")
		}
		a = replacement
		if respA, metaA, errA = s.generateSide(ctx, a, prompt); errA != nil {
			return nil, nil, nil, arena.NewGenerateFailedError("a")
		}
	case errB != nil:
		replacement, ok := s.resampleSide(candidateSet, a, false, excluded)
		if !ok {
			return nil, nil, nil, arena.NewGenerateFailedError("b")
		}
		b = replacement
		if respB, metaB, errB = s.generateSide(ctx, b, prompt); errB != nil {
			return nil, nil, nil, arena.NewGenerateFailedError("b")
		}
	}
	timings.mark("generate_resolved")

	record := arena.NewBattleRecord()
	record.GatewayGitHash = s.gatewayGitHash
	record.Session = session
	record.User = user
	record.PromptText = text
	record.PromptDetailed = prompt
	record.PromptPrebaked = prebakedChecksum
	record.ASystemKey = a
	record.BSystemKey = b
	record.AMetadata = metaA
	record.BMetadata = metaB

	ext := "wav"
	aKey := contentKeyFor(record.UUID, "a", respA.AudioBytes, ext)
	bKey := contentKeyFor(record.UUID, "b", respB.AudioBytes, ext)

	aURI, err := s.blobs.Put(ctx, aKey, respA.AudioBytes, "audio/wav")
	if err != nil {
		return nil, nil, nil, err
	}
	bURI, err := s.blobs.Put(ctx, bKey, respB.AudioBytes, "audio/wav")
	if err != nil {
		return nil, nil, nil, err
	}
	record.AAudioURI = aURI
	record.BAudioURI = bURI
	timings.mark("upload_audio")

	timings.mark("upload_metadata")
	record.Timings = timings.events
	if err := s.persist(ctx, &record); err != nil {
		return nil, nil, nil, err
	}

	return &record, respA.AudioBytes, respB.AudioBytes, nil
}
