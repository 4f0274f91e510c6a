package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cgast/idemverify/pkg/verify"
)

// ReportSummary is the listing form of a stored report.
type ReportSummary struct {
	ID        string
	Name      string
	Outcome   verify.Outcome
	Passed    int
	Failed    int
	StartedAt time.Time
}

// SaveReport stores r under its id. Reports without an id are rejected.
func (s *BoltStore) SaveReport(r verify.Report) error {
	if r.ID == "" {
		return errors.New("save report: report has no id")
	}
	if err := s.Put(BucketReports, r.ID, r); err != nil {
		return fmt.Errorf("save report %s: %w", r.ID, err)
	}
	return nil
}

// Report loads a report by id or by a unique id prefix.
func (s *BoltStore) Report(id string) (verify.Report, error) {
	var r verify.Report
	err := s.Get(BucketReports, id, &r)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return verify.Report{}, err
	}

	var matches []string
	if err := s.ForEach(BucketReports, func(key string, _ []byte) error {
		if strings.HasPrefix(key, id) {
			matches = append(matches, key)
		}
		return nil
	}); err != nil {
		return verify.Report{}, err
	}
	switch len(matches) {
	case 0:
		return verify.Report{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
	case 1:
		if err := s.Get(BucketReports, matches[0], &r); err != nil {
			return verify.Report{}, err
		}
		return r, nil
	default:
		return verify.Report{}, fmt.Errorf("report prefix %q is ambiguous (%d matches)", id, len(matches))
	}
}

// Reports lists stored reports, newest first.
func (s *BoltStore) Reports() ([]ReportSummary, error) {
	var out []ReportSummary
	err := s.ForEach(BucketReports, func(key string, data []byte) error {
		var r verify.Report
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("unmarshal report %s: %w", key, err)
		}
		passed, failed := r.Counts()
		out = append(out, ReportSummary{
			ID:        r.ID,
			Name:      r.Name,
			Outcome:   r.Outcome,
			Passed:    passed,
			Failed:    failed,
			StartedAt: r.StartedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// Prune keeps the newest keep reports and deletes the rest. It returns the
// number deleted.
func (s *BoltStore) Prune(keep int) (int, error) {
	all, err := s.Reports()
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(all) <= keep {
		return 0, nil
	}
	for _, r := range all[keep:] {
		if err := s.Delete(BucketReports, r.ID); err != nil {
			return 0, fmt.Errorf("prune report %s: %w", r.ID, err)
		}
	}
	return len(all) - keep, nil
}
