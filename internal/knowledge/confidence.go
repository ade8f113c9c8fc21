package knowledge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Confidence adjustment policy. Rules accumulate a signed adjustment per
// entry; rule order is fixed so reason strings come out deterministic.
const (
	heavyUsageBonus    = 0.10 // usage_count > 10
	moderateUsageBonus = 0.05 // usage_count > 5

	stalePenalty     = 0.10 // > 90 days since last use
	veryStalePenalty = 0.20 // > 180 days since last use

	slowStalePenalty     = 0.02 // truth/architecture, > 90 days
	slowVeryStalePenalty = 0.05 // truth/architecture, > 180 days

	missingCitationPenalty = 0.15 // scaled by missing/total

	// Adjustments smaller than this are treated as saturation at a bound
	// and skipped rather than reported.
	minEffectiveDelta = 0.001
)

// ConfidenceAdjustment describes one applied (or would-be, on dry run)
// confidence change.
type ConfidenceAdjustment struct {
	EntryID       string   `json:"entry_id"`
	Title         string   `json:"title"`
	OldConfidence float64  `json:"old_confidence"`
	NewConfidence float64  `json:"new_confidence"`
	Reasons       []string `json:"reasons"`
}

// RecalcReport summarizes a maintenance run. Skipped and errored entries are
// counted but do not appear in Adjustments.
type RecalcReport struct {
	Adjustments []ConfidenceAdjustment `json:"adjustments"`
	Scanned     int                    `json:"scanned"`
	Applied     int                    `json:"applied"`
	Skipped     int                    `json:"skipped"`
	Errored     int                    `json:"errored"`
	DryRun      bool                   `json:"dry_run"`
}

// RecalcOptions configures a maintenance run.
type RecalcOptions struct {
	// DryRun computes and reports adjustments without persisting them.
	DryRun bool
	// Namespace restricts the run; empty means all active entries.
	Namespace string
	// Workers bounds the per-entry worker pool (default 4). File I/O during
	// citation validation dominates cost, so a small pool is enough.
	Workers int
	// CWD resolves relative citation paths (default: process working dir).
	CWD string
	// Now overrides the staleness reference clock, for tests.
	Now time.Time
}

// entryAdjustment computes the signed confidence adjustment for one entry.
// The staleness rules re-apply on every run: nothing in stored state records
// that a decay was already taken, so two runs inside the same staleness
// bucket penalize twice. That matches the original policy; see DESIGN.md.
func entryAdjustment(e *KnowledgeEntry, now time.Time, cwd string, cache *HashCache) (float64, []string) {
	var adjustment float64
	var reasons []string

	// Usage growth
	if e.UsageCount > 10 {
		adjustment += heavyUsageBonus
		reasons = append(reasons, fmt.Sprintf("usage count %d: +%.2f", e.UsageCount, heavyUsageBonus))
	} else if e.UsageCount > 5 {
		adjustment += moderateUsageBonus
		reasons = append(reasons, fmt.Sprintf("usage count %d: +%.2f", e.UsageCount, moderateUsageBonus))
	}

	// Staleness decay from last use, falling back to creation time
	reference := e.CreatedAt
	if e.LastUsedAt != nil {
		reference = *e.LastUsedAt
	}
	daysSince := int(now.Sub(reference).Hours() / 24)
	if slowDecayCategory(e.Category) {
		if daysSince > 180 {
			adjustment -= slowVeryStalePenalty
			reasons = append(reasons, fmt.Sprintf("unused %d days (%s, slow decay): -%.2f", daysSince, e.Category, slowVeryStalePenalty))
		} else if daysSince > 90 {
			adjustment -= slowStalePenalty
			reasons = append(reasons, fmt.Sprintf("unused %d days (%s, slow decay): -%.2f", daysSince, e.Category, slowStalePenalty))
		}
	} else {
		if daysSince > 180 {
			adjustment -= veryStalePenalty
			reasons = append(reasons, fmt.Sprintf("unused %d days: -%.2f", daysSince, veryStalePenalty))
		} else if daysSince > 90 {
			adjustment -= stalePenalty
			reasons = append(reasons, fmt.Sprintf("unused %d days: -%.2f", daysSince, stalePenalty))
		}
	}

	// Citation penalty: only missing files count against confidence; changed
	// files still exist and are informational only.
	if len(e.Citations) > 0 {
		ev := validateEntryCitations(e, cwd, cache)
		if ev.Missing > 0 {
			penalty := float64(ev.Missing) / float64(ev.Total) * missingCitationPenalty
			adjustment -= penalty
			reasons = append(reasons, fmt.Sprintf("%d/%d citations missing: -%.3f", ev.Missing, ev.Total, penalty))
		}
	}

	return adjustment, reasons
}

// Recalculate recomputes confidence for every active entry from usage
// recency/frequency and citation health. Per-entry work runs on a bounded
// worker pool sharing one citation hash cache; an error on one entry never
// aborts the batch.
func (s *Store) Recalculate(ctx context.Context, opts RecalcOptions) (*RecalcReport, error) {
	entries, err := s.ActiveEntries(ctx, opts.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	cwd := opts.CWD
	if cwd == "" {
		cwd = "."
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	report := &RecalcReport{Scanned: len(entries), DryRun: opts.DryRun}
	cache := NewHashCache()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, e := range entries {
		e := e
		g.Go(func() error {
			adjustment, reasons := entryAdjustment(e, now, cwd, cache)
			newConfidence := clampConfidence(e.Confidence + adjustment)

			// No-op or saturated at a bound: counted, not reported.
			if adjustment == 0 || abs(newConfidence-e.Confidence) < minEffectiveDelta {
				mu.Lock()
				report.Skipped++
				mu.Unlock()
				return nil
			}

			if !opts.DryRun {
				if err := s.SetConfidence(gctx, e.ID, newConfidence); err != nil {
					mu.Lock()
					report.Errored++
					mu.Unlock()
					return nil // per-entry failure never aborts the batch
				}
			}

			mu.Lock()
			report.Applied++
			report.Adjustments = append(report.Adjustments, ConfidenceAdjustment{
				EntryID:       e.ID,
				Title:         e.Title,
				OldConfidence: e.Confidence,
				NewConfidence: newConfidence,
				Reasons:       reasons,
			})
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	// Workers finish in arbitrary order; sort for a deterministic report.
	sort.Slice(report.Adjustments, func(i, j int) bool {
		return report.Adjustments[i].EntryID < report.Adjustments[j].EntryID
	})

	return report, nil
}

// ValidateCitations runs the citation integrity validator over all active
// entries and returns the aggregate report. Used by the standalone validate
// command; the maintenance engine shares the same per-entry validator.
func (s *Store) ValidateCitations(ctx context.Context, namespace, cwd string) (*ValidationReport, error) {
	entries, err := s.ActiveEntries(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	if cwd == "" {
		cwd = "."
	}
	report := ValidateEntries(entries, cwd)
	return &report, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
