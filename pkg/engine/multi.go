package engine

import (
	"context"
	"sync"

	"cropcrawler/pkg/logger"
)

// Multi queries several engines and merges their results. Engines are
// queried independently; a backend that cannot be reached is skipped with
// a logged degradation rather than aborting the whole search.
type Multi struct {
	engines []Engine
	logger  logger.Logger
}

// NewMulti combines the given engines. Order matters: interleaving starts
// from the first engine.
func NewMulti(log logger.Logger, engines ...Engine) *Multi {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Multi{engines: engines, logger: log}
}

func (m *Multi) Name() string {
	name := "multi"
	for _, e := range m.engines {
		name += "+" + e.Name()
	}
	return name
}

// Search queries all engines concurrently, interleaves their result lists
// in engine order and deduplicates by source URL. The same URL returned by
// two engines yields exactly one candidate.
func (m *Multi) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	perEngine := limit
	if limit > 0 && len(m.engines) > 1 {
		perEngine = limit / len(m.engines)
		if perEngine == 0 {
			perEngine = 1
		}
	}

	results := make([][]Candidate, len(m.engines))
	var wg sync.WaitGroup
	for i, e := range m.engines {
		wg.Add(1)
		go func(i int, e Engine) {
			defer wg.Done()
			candidates, err := e.Search(ctx, query, perEngine)
			if err != nil {
				m.logger.WarnWithFields("engine unavailable, skipping", map[string]interface{}{
					"engine": e.Name(),
					"error":  err.Error(),
				})
				return
			}
			results[i] = candidates
		}(i, e)
	}
	wg.Wait()

	merged := interleave(results)
	deduped := dedupeByURL(merged)
	if limit > 0 && len(deduped) > limit {
		deduped = deduped[:limit]
	}

	// All engines failing is a "no candidates" outcome, not an error
	return deduped, nil
}

// interleave alternates candidates across engine result lists to mix
// sources: a[0], b[0], a[1], b[1], ...
func interleave(lists [][]Candidate) []Candidate {
	total := 0
	longest := 0
	for _, l := range lists {
		total += len(l)
		if len(l) > longest {
			longest = len(l)
		}
	}

	merged := make([]Candidate, 0, total)
	for i := 0; i < longest; i++ {
		for _, l := range lists {
			if i < len(l) {
				merged = append(merged, l[i])
			}
		}
	}
	return merged
}

// dedupeByURL keeps the first candidate for each source URL
func dedupeByURL(candidates []Candidate) []Candidate {
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0:0]
	for _, c := range candidates {
		if seen[c.SourceURL] {
			continue
		}
		seen[c.SourceURL] = true
		out = append(out, c)
	}
	return out
}
