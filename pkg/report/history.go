package report

import (
	"context"

	"github.com/cgast/idemverify/pkg/verify"
)

// Archive keeps reports for later comparison.
type Archive interface {
	SaveReport(r verify.Report) error
}

// HistorySink stores the full report, regardless of the selected outcomes.
type HistorySink struct {
	Store Archive
}

func (s *HistorySink) Name() string { return "history" }

func (s *HistorySink) Publish(_ context.Context, b Batch) error {
	return s.Store.SaveReport(b.Report)
}
