package pipeline

import (
	"sync/atomic"
)

// Profiler aggregates counters across scans of one pipeline.
type Profiler struct {
	DecodeTimeNs    atomic.Int64
	ImagesProcessed atomic.Int64
	ImagesFailed    atomic.Int64
	CodesFound      atomic.Int64
}

// Record adds one scan.
func (p *Profiler) Record(decodeNs int64, codes int, failed bool) {
	p.DecodeTimeNs.Add(decodeNs)
	p.ImagesProcessed.Add(1)
	p.CodesFound.Add(int64(codes))
	if failed {
		p.ImagesFailed.Add(1)
	}
}

// Snapshot returns cumulative metrics in milliseconds for readability.
func (p *Profiler) Snapshot() map[string]any {
	imgs := p.ImagesProcessed.Load()
	dec := p.DecodeTimeNs.Load()
	out := map[string]any{
		"images":          imgs,
		"failed":          p.ImagesFailed.Load(),
		"codes":           p.CodesFound.Load(),
		"decode_ms_total": dec / 1_000_000,
	}
	if imgs > 0 {
		out["decode_ms_per_image"] = float64(dec) / 1_000_000.0 / float64(imgs)
	}
	return out
}
