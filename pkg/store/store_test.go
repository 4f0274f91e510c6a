package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cgast/idemverify/pkg/resource"
	"github.com/cgast/idemverify/pkg/verify"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idemverify.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put(BucketFacts, "k", map[string]any{"a": "b"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var got map[string]any
	if err := s.Get(BucketFacts, "k", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got["a"] != "b" {
		t.Errorf("got %v, want a=b", got)
	}

	if err := s.Delete(BucketFacts, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Get(BucketFacts, "k", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(BucketFacts, "k"); err != nil {
		t.Errorf("deleting an absent key: %v", err)
	}
}

func TestUnknownBucket(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put("nope", "k", 1); err == nil {
		t.Error("expected error for unknown bucket")
	}
	var v any
	if err := s.Get("nope", "k", &v); err == nil {
		t.Error("expected error for unknown bucket")
	}
}

func TestFacts(t *testing.T) {
	s := newTestStore(t)
	ref := resource.NewRef(resource.KindMount, "/data", map[string]string{"device": "/dev/sdb1"})

	if err := s.PutFacts(ref, resource.Attributes{"mounted": true, "fstype": "xfs", "mode": 420}); err != nil {
		t.Fatalf("PutFacts: %v", err)
	}

	attrs, ok, err := s.Facts(context.Background(), ref)
	if err != nil || !ok {
		t.Fatalf("Facts: ok=%v err=%v", ok, err)
	}
	if attrs["fstype"] != "xfs" {
		t.Errorf("fstype = %v, want xfs", attrs["fstype"])
	}
	if attrs["mounted"] != true {
		t.Errorf("mounted = %v, want true", attrs["mounted"])
	}
	if n, ok := resource.AsInt(attrs["mode"]); !ok || n != 420 {
		t.Errorf("mode = %v, want 420", attrs["mode"])
	}

	// A different device is a different resource.
	other := resource.NewRef(resource.KindMount, "/data", map[string]string{"device": "/dev/sdc1"})
	if _, ok, err := s.Facts(context.Background(), other); ok || err != nil {
		t.Errorf("expected no facts for other device, ok=%v err=%v", ok, err)
	}

	list, err := s.ListFacts()
	if err != nil {
		t.Fatalf("ListFacts: %v", err)
	}
	if len(list) != 1 || !list[0].Ref.Equal(ref) {
		t.Fatalf("ListFacts = %+v", list)
	}
	if list[0].RecordedAt.IsZero() {
		t.Error("expected RecordedAt to be set")
	}

	n, err := s.ClearFacts()
	if err != nil || n != 1 {
		t.Fatalf("ClearFacts = %d, %v", n, err)
	}
	if list, _ := s.ListFacts(); len(list) != 0 {
		t.Errorf("expected no facts after clear, got %d", len(list))
	}
}

func testReport(t *testing.T, id string, started time.Time, action string) verify.Report {
	t.Helper()
	ref := resource.NewRef(resource.KindFile, "/etc/foo", nil)
	actual := resource.State{"action": resource.String(action), "backup": resource.Int(5)}
	r, err := verify.Aggregate(verify.Match(actual, verify.Expect(ref).With("action", "create").With("backup", 5)))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	r.ID = id
	r.Name = "web"
	r.StartedAt = started
	return r
}

func TestReports(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, r := range []verify.Report{
		testReport(t, "aaa111", base, "delete"),
		testReport(t, "bbb222", base.Add(time.Hour), "create"),
		testReport(t, "bbb333", base.Add(2*time.Hour), "create"),
	} {
		if err := s.SaveReport(r); err != nil {
			t.Fatalf("SaveReport %d: %v", i, err)
		}
	}

	list, err := s.Reports()
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if len(list) != 3 || list[0].ID != "bbb333" || list[2].ID != "aaa111" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if list[2].Outcome != verify.Fail || list[2].Failed != 1 || list[2].Passed != 1 {
		t.Errorf("summary of aaa111 = %+v", list[2])
	}

	got, err := s.Report("aaa")
	if err != nil {
		t.Fatalf("Report by prefix: %v", err)
	}
	if len(got.Failures) != 1 || got.Failures[0].Actual != resource.String("delete") {
		t.Errorf("round-tripped failures = %+v", got.Failures)
	}
	if !got.Failures[0].Ref.Equal(resource.NewRef(resource.KindFile, "/etc/foo", nil)) {
		t.Errorf("ref = %v", got.Failures[0].Ref)
	}

	if _, err := s.Report("bbb"); err == nil {
		t.Error("expected ambiguous prefix error")
	}
	if _, err := s.Report("zzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	pruned, err := s.Prune(1)
	if err != nil || pruned != 2 {
		t.Fatalf("Prune = %d, %v", pruned, err)
	}
	list, _ = s.Reports()
	if len(list) != 1 || list[0].ID != "bbb333" {
		t.Errorf("after prune: %+v", list)
	}
}

func TestSaveReportRequiresID(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveReport(verify.Report{}); err == nil {
		t.Error("expected error for report without id")
	}
}
