// Synthetic telemetry payload generation
package payload

import (
	"math/rand"
	"time"
)

// Generator produces synthetic telemetry payloads from an explicit random
// source. A Generator is not safe for concurrent use; callers invoke it
// from the engine loop only.
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator creates a Generator backed by rnd. A nil rnd falls back to
// a time-seeded source; tests pass a fixed seed for determinism.
func NewGenerator(rnd *rand.Rand) *Generator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{rnd: rnd}
}

// Generate returns size bytes of uniformly distributed content. The
// buffer is freshly allocated per call and owned by the caller.
func (g *Generator) Generate(size int) []byte {
	buf := make([]byte, size)
	g.rnd.Read(buf)
	return buf
}

// SampleSignal returns one uniformly distributed sample in [0, 1). The
// sample is a diagnostic value attached to attempt records; it never
// influences payload content, scheduling, or transport behavior.
func (g *Generator) SampleSignal() float64 {
	return g.rnd.Float64()
}
