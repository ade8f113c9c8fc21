package acceptance

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/stratakb/strata/internal/knowledge"
)

// TestContext holds state between steps
type TestContext struct {
	store     *knowledge.Store
	dataDir   string
	workDir   string // cited files live here
	results   []knowledge.SearchResult
	report    *knowledge.RecalcReport
	checks    *knowledge.ValidationReport
	searchErr error
}

func (tc *TestContext) reset() error {
	dataDir, err := os.MkdirTemp("", "strata-acceptance-*")
	if err != nil {
		return err
	}
	workDir, err := os.MkdirTemp("", "strata-cited-*")
	if err != nil {
		return err
	}
	os.Setenv("STRATA_DATA_DIR", dataDir)

	store, err := knowledge.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	tc.store = store
	tc.dataDir = dataDir
	tc.workDir = workDir
	tc.results = nil
	tc.report = nil
	tc.checks = nil
	tc.searchErr = nil
	return nil
}

func (tc *TestContext) teardown() {
	if tc.store != nil {
		tc.store.Close()
	}
	os.RemoveAll(tc.dataDir)
	os.RemoveAll(tc.workDir)
}

func (tc *TestContext) entryByTitle(title string) (*knowledge.KnowledgeEntry, error) {
	entries, err := tc.store.List(context.Background(), 0, "")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Title == title {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no entry titled %q", title)
}

// =============================================================================
// Given steps
// =============================================================================

func (tc *TestContext) theFollowingEntriesExist(table *godog.Table) error {
	if len(table.Rows) < 2 {
		return fmt.Errorf("expected a header row and at least one entry")
	}
	header := table.Rows[0].Cells

	ctx := context.Background()
	for _, row := range table.Rows[1:] {
		e := &knowledge.KnowledgeEntry{}
		for i, cell := range row.Cells {
			switch header[i].Value {
			case "title":
				e.Title = cell.Value
			case "content":
				e.Content = cell.Value
			case "category":
				e.Category = cell.Value
			case "namespace":
				e.Namespace = cell.Value
			case "branch":
				e.Branch = cell.Value
			case "author":
				e.Author = cell.Value
			case "tags":
				for _, t := range strings.Split(cell.Value, ",") {
					if s := strings.TrimSpace(t); s != "" {
						e.Tags = append(e.Tags, s)
					}
				}
			}
		}
		if _, err := tc.store.Create(ctx, e); err != nil {
			return fmt.Errorf("failed to create %q: %w", e.Title, err)
		}
	}
	return nil
}

func (tc *TestContext) anEntryCreatedDaysAgoWithConfidence(title string, days int, confidence float64) error {
	created := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	_, err := tc.store.Create(context.Background(), &knowledge.KnowledgeEntry{
		Title:      title,
		Content:    "body of " + title,
		Confidence: confidence,
		CreatedAt:  created,
		UpdatedAt:  created,
	})
	return err
}

func (tc *TestContext) aFileContaining(name, content string) error {
	return os.WriteFile(filepath.Join(tc.workDir, name), []byte(content+"\n"), 0644)
}

func (tc *TestContext) anEntryCiting(title, citation string) error {
	file := citation
	if idx := strings.LastIndex(citation, ":"); idx > 0 {
		file = citation[:idx]
	}
	hash, err := knowledge.HashFile(filepath.Join(tc.workDir, file))
	if err != nil {
		return fmt.Errorf("failed to hash cited file: %w", err)
	}
	_, err = tc.store.Create(context.Background(), &knowledge.KnowledgeEntry{
		Title:     title,
		Content:   "body of " + title,
		Citations: []knowledge.Citation{{Path: citation, FileHash: hash}},
	})
	return err
}

func (tc *TestContext) theFileChangesTo(name, content string) error {
	return os.WriteFile(filepath.Join(tc.workDir, name), []byte(content+"\n"), 0644)
}

func (tc *TestContext) theFileIsDeleted(name string) error {
	return os.Remove(filepath.Join(tc.workDir, name))
}

// =============================================================================
// When steps
// =============================================================================

func (tc *TestContext) iSearchFor(query string) error {
	return tc.iSearchForLimitedTo(query, 10)
}

func (tc *TestContext) iSearchForLimitedTo(query string, limit int) error {
	results, err := tc.store.SearchText(context.Background(), query, knowledge.FilterSpec{}, limit)
	tc.results = results
	tc.searchErr = err
	return nil
}

func (tc *TestContext) iSearchForInNamespace(query, namespace string) error {
	results, err := tc.store.SearchText(context.Background(), query,
		knowledge.FilterSpec{Namespace: namespace}, 10)
	tc.results = results
	tc.searchErr = err
	return nil
}

func (tc *TestContext) iSearchForWithCategory(query, category string) error {
	results, err := tc.store.SearchText(context.Background(), query,
		knowledge.FilterSpec{Category: category}, 10)
	tc.results = results
	tc.searchErr = err
	return nil
}

func (tc *TestContext) iSearchForWithMinimumScore(query string, minScore float64) error {
	results, err := tc.store.SearchText(context.Background(), query,
		knowledge.FilterSpec{MinScore: &minScore}, 10)
	tc.results = results
	tc.searchErr = err
	return nil
}

func (tc *TestContext) confidenceMaintenanceRunsAsOfDaysFromNow(days int) error {
	report, err := tc.store.Recalculate(context.Background(), knowledge.RecalcOptions{
		Now: time.Now().Add(time.Duration(days) * 24 * time.Hour),
		CWD: tc.workDir,
	})
	if err != nil {
		return err
	}
	tc.report = report
	return nil
}

func (tc *TestContext) confidenceMaintenanceRuns() error {
	return tc.confidenceMaintenanceRunsAsOfDaysFromNow(0)
}

func (tc *TestContext) aDryRunOfConfidenceMaintenanceRunsAsOfDaysFromNow(days int) error {
	report, err := tc.store.Recalculate(context.Background(), knowledge.RecalcOptions{
		DryRun: true,
		Now:    time.Now().Add(time.Duration(days) * 24 * time.Hour),
		CWD:    tc.workDir,
	})
	if err != nil {
		return err
	}
	tc.report = report
	return nil
}

func (tc *TestContext) citationValidationRuns() error {
	checks, err := tc.store.ValidateCitations(context.Background(), "", tc.workDir)
	if err != nil {
		return err
	}
	tc.checks = checks
	return nil
}

// =============================================================================
// Then steps
// =============================================================================

func (tc *TestContext) theSearchSucceeds() error {
	if tc.searchErr != nil {
		return fmt.Errorf("search failed: %w", tc.searchErr)
	}
	return nil
}

func (tc *TestContext) exactlyResultsAreReturned(count int) error {
	if tc.searchErr != nil {
		return fmt.Errorf("search failed: %w", tc.searchErr)
	}
	if len(tc.results) != count {
		titles := make([]string, len(tc.results))
		for i, r := range tc.results {
			titles[i] = r.Entry.Title
		}
		return fmt.Errorf("expected %d results, got %d: %v", count, len(tc.results), titles)
	}
	return nil
}

func (tc *TestContext) theTopResultIsTitled(title string) error {
	if len(tc.results) == 0 {
		return fmt.Errorf("no results")
	}
	if tc.results[0].Entry.Title != title {
		return fmt.Errorf("top result is %q, expected %q", tc.results[0].Entry.Title, title)
	}
	return nil
}

func (tc *TestContext) everyResultIsInNamespace(namespace string) error {
	for _, r := range tc.results {
		if r.Entry.Namespace != namespace {
			return fmt.Errorf("result %q is in namespace %q", r.Entry.Title, r.Entry.Namespace)
		}
	}
	return nil
}

func (tc *TestContext) everyResultHasCategory(category string) error {
	for _, r := range tc.results {
		if r.Entry.Category != category {
			return fmt.Errorf("result %q has category %q", r.Entry.Title, r.Entry.Category)
		}
	}
	return nil
}

func (tc *TestContext) resultsAreRankedByDescendingScore() error {
	for i := 1; i < len(tc.results); i++ {
		if tc.results[i].Score > tc.results[i-1].Score {
			return fmt.Errorf("result %d scores %f after %f", i, tc.results[i].Score, tc.results[i-1].Score)
		}
	}
	return nil
}

func (tc *TestContext) everyResultScoresAtLeast(minScore float64) error {
	for _, r := range tc.results {
		if r.Score < minScore {
			return fmt.Errorf("result %q scored %f, below %f", r.Entry.Title, r.Score, minScore)
		}
	}
	return nil
}

func (tc *TestContext) theConfidenceOfIs(title string, confidence float64) error {
	e, err := tc.entryByTitle(title)
	if err != nil {
		return err
	}
	if math.Abs(e.Confidence-confidence) > 1e-9 {
		return fmt.Errorf("confidence of %q is %.3f, expected %.3f", title, e.Confidence, confidence)
	}
	return nil
}

func (tc *TestContext) theMaintenanceReportShowsAdjusted(count int) error {
	if tc.report == nil {
		return fmt.Errorf("no maintenance run recorded")
	}
	if tc.report.Applied != count {
		return fmt.Errorf("report shows %d adjusted, expected %d", tc.report.Applied, count)
	}
	return nil
}

func (tc *TestContext) theCitationStatusOfIs(title, status string) error {
	if tc.checks == nil {
		return fmt.Errorf("no validation run recorded")
	}
	for _, ev := range tc.checks.Entries {
		if ev.Title != title {
			continue
		}
		if len(ev.Checks) == 0 {
			return fmt.Errorf("entry %q has no citation checks", title)
		}
		got := string(ev.Checks[0].Status)
		if got != status {
			return fmt.Errorf("citation status of %q is %q, expected %q", title, got, status)
		}
		return nil
	}
	return fmt.Errorf("entry %q not in validation report", title)
}

// InitializeScenario wires steps into the godog suite
func InitializeScenario(sc *godog.ScenarioContext) {
	tc := &TestContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset()
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		tc.teardown()
		return ctx, nil
	})

	sc.Step(`^the following entries exist:$`, tc.theFollowingEntriesExist)
	sc.Step(`^an entry "([^"]*)" created (\d+) days ago with confidence ([\d.]+)$`, tc.anEntryCreatedDaysAgoWithConfidence)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, tc.aFileContaining)
	sc.Step(`^an entry "([^"]*)" citing "([^"]*)"$`, tc.anEntryCiting)
	sc.Step(`^the file "([^"]*)" changes to "([^"]*)"$`, tc.theFileChangesTo)
	sc.Step(`^the file "([^"]*)" is deleted$`, tc.theFileIsDeleted)

	sc.Step(`^I search for "([^"]*)"$`, tc.iSearchFor)
	sc.Step(`^I search for "([^"]*)" limited to (\d+) results$`, tc.iSearchForLimitedTo)
	sc.Step(`^I search for "([^"]*)" in namespace "([^"]*)"$`, tc.iSearchForInNamespace)
	sc.Step(`^I search for "([^"]*)" with category "([^"]*)"$`, tc.iSearchForWithCategory)
	sc.Step(`^I search for "([^"]*)" with minimum score ([\d.]+)$`, tc.iSearchForWithMinimumScore)
	sc.Step(`^confidence maintenance runs$`, tc.confidenceMaintenanceRuns)
	sc.Step(`^confidence maintenance runs as of (\d+) days from now$`, tc.confidenceMaintenanceRunsAsOfDaysFromNow)
	sc.Step(`^a dry run of confidence maintenance runs as of (\d+) days from now$`, tc.aDryRunOfConfidenceMaintenanceRunsAsOfDaysFromNow)
	sc.Step(`^citation validation runs$`, tc.citationValidationRuns)

	sc.Step(`^the search succeeds$`, tc.theSearchSucceeds)
	sc.Step(`^exactly (\d+) results? (?:is|are) returned$`, tc.exactlyResultsAreReturned)
	sc.Step(`^the top result is titled "([^"]*)"$`, tc.theTopResultIsTitled)
	sc.Step(`^every result is in namespace "([^"]*)"$`, tc.everyResultIsInNamespace)
	sc.Step(`^every result has category "([^"]*)"$`, tc.everyResultHasCategory)
	sc.Step(`^results are ranked by descending score$`, tc.resultsAreRankedByDescendingScore)
	sc.Step(`^every result scores at least ([\d.]+)$`, tc.everyResultScoresAtLeast)
	sc.Step(`^the confidence of "([^"]*)" is ([\d.]+)$`, tc.theConfidenceOfIs)
	sc.Step(`^the maintenance report shows (\d+) adjusted$`, tc.theMaintenanceReportShowsAdjusted)
	sc.Step(`^the citation status of "([^"]*)" is "([^"]*)"$`, tc.theCitationStatusOfIs)
}
