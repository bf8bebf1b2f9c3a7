package systemserver

import (
	"context"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

// BatchItemResult is one prompt's outcome from a batched model call. A
// nil Err with a nil Response should not happen; the model must set one
// or the other per item so per-item failures can be isolated from a
// whole-batch failure.
type BatchItemResult struct {
	Response *arena.TextToMusicResponse
	Err      error
}

// BatchModel is the capability set a concrete generator must implement.
// This replaces the source's class hierarchy
// (TextToMusicSystem -> TextToMusicLocalSystem -> TextToMusicGPUBatchedSystem)
// with a single interface; concrete systems are registered by name and
// satisfy it directly, with no virtual-method dispatch required.
type BatchModel interface {
	// PromptSupport reports whether this model can serve prompt at all.
	PromptSupport(prompt arena.DetailedTextToMusicPrompt) arena.PromptSupport

	// Prepare loads the model. It is called lazily by the batcher loop on
	// the first request, or by Server.Warm from the /health?warm=1
	// handler, whichever comes first. If it fails, the server returns to
	// cold and the next trigger calls it again.
	Prepare(ctx context.Context) error

	// Release frees the model on graceful shutdown.
	Release(ctx context.Context) error

	// GenerateBatch invokes the model on a set of prompts that all share
	// one seed. The returned slice must be the same length as prompts
	// and in the same order. A non-nil error means the whole sub-batch
	// failed identically; per-item failures are reported via individual
	// BatchItemResult.Err values instead.
	GenerateBatch(ctx context.Context, prompts []arena.DetailedTextToMusicPrompt) ([]BatchItemResult, error)
}

// EffectiveMaxBatchSize applies a GPU memory ceiling: the effective
// limit is min(maxBatchSize, floor(gpuTotalGB/gpuMemGBPerItem)).
// A zero or negative gpuMemGBPerItem means no GPU ceiling is configured.
func EffectiveMaxBatchSize(maxBatchSize int, gpuTotalGB, gpuMemGBPerItem float64) int {
	if gpuMemGBPerItem <= 0 {
		return maxBatchSize
	}
	byMemory := int(gpuTotalGB / gpuMemGBPerItem)
	if byMemory < maxBatchSize {
		return byMemory
	}
	return maxBatchSize
}
