package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cgast/idemverify/pkg/resource"
)

// FactRecord is what a convergence run recorded about one resource.
type FactRecord struct {
	Ref        resource.Ref        `json:"ref"`
	Attributes resource.Attributes `json:"attributes"`
	RecordedAt time.Time           `json:"recorded_at"`
}

// PutFacts records the attributes of ref, replacing earlier facts.
func (s *BoltStore) PutFacts(ref resource.Ref, attrs resource.Attributes) error {
	rec := FactRecord{Ref: ref, Attributes: attrs, RecordedAt: time.Now().UTC()}
	if err := s.Put(BucketFacts, ref.Key(), rec); err != nil {
		return fmt.Errorf("put facts %s: %w", ref.Key(), err)
	}
	return nil
}

// Facts returns the recorded attributes of ref. Numbers come back as
// float64, which normalization treats like the integers they were.
func (s *BoltStore) Facts(_ context.Context, ref resource.Ref) (resource.Attributes, bool, error) {
	var rec FactRecord
	err := s.Get(BucketFacts, ref.Key(), &rec)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if rec.Attributes == nil {
		rec.Attributes = resource.Attributes{}
	}
	return rec.Attributes, true, nil
}

// ListFacts returns every fact record ordered by ref key.
func (s *BoltStore) ListFacts() ([]FactRecord, error) {
	var out []FactRecord
	err := s.ForEach(BucketFacts, func(key string, data []byte) error {
		var rec FactRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("unmarshal facts %s: %w", key, err)
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// ClearFacts removes every recorded fact, returning how many were removed.
func (s *BoltStore) ClearFacts() (int, error) {
	var keys []string
	if err := s.ForEach(BucketFacts, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	}); err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := s.Delete(BucketFacts, k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}
