package rolemine

import (
	"context"

	"github.com/spcon-go/rolemine/pkg/models"
)

// SelectorResolver maps an unresolved 4-byte selector to a human name.
// Returns ok=false when the selector cannot be resolved, in which case
// the selector's hex string is used as the function identifier
// (spec §4.1).
type SelectorResolver func(selector string) (name string, ok bool)

// HistorySource is the upstream contract to the crawler (spec §4.6):
// something that can produce a flat sequence of call records. The
// callers at the edge (cmd/rolemine, internal/api) wrap crawler or
// workspace output with NewStaticHistorySource; the engine itself never
// imports the crawler package.
type HistorySource interface {
	Load(ctx context.Context) ([]models.CallRecord, error)
}

// RWSummarySource is the upstream contract to the static analyzer.
type RWSummarySource interface {
	Load(ctx context.Context, functions []string) (models.RWSummary, error)
}

// PolicyConsumer is the downstream contract to whatever consumes mined
// roles and policies (the symbolic-execution fuzzer, out of scope here).
type PolicyConsumer interface {
	Accept(ctx context.Context, roles []models.Role, policies []models.SecurityPolicy) error
}

// staticHistorySource adapts an already-decoded slice of records to
// HistorySource, for callers who parsed the document themselves.
type staticHistorySource struct {
	records []models.CallRecord
}

// NewStaticHistorySource wraps a pre-loaded record slice as a HistorySource.
func NewStaticHistorySource(records []models.CallRecord) HistorySource {
	return staticHistorySource{records: records}
}

func (s staticHistorySource) Load(ctx context.Context) ([]models.CallRecord, error) {
	return s.records, nil
}

// staticRWSummarySource adapts an already-decoded RWSummary.
type staticRWSummarySource struct {
	summary models.RWSummary
}

// NewStaticRWSummarySource wraps a pre-loaded RWSummary as a RWSummarySource.
func NewStaticRWSummarySource(summary models.RWSummary) RWSummarySource {
	return staticRWSummarySource{summary: summary}
}

func (s staticRWSummarySource) Load(ctx context.Context, functions []string) (models.RWSummary, error) {
	return s.summary, nil
}
