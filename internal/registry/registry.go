// Package registry keeps durable records of service instances, model
// artifacts and the host snapshot in the key/value store.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kennethnrk/fasttext-services/internal/store"
)

const (
	instancePrefix = "instance:"
	artifactPrefix = "artifact:"
	hostKey        = "host"
)

var (
	ErrEmptyID  = errors.New("registry: id cannot be empty")
	ErrNotFound = errors.New("registry: record not found")
)

func putRecord(s *store.Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.Put(key, b)
}

// getRecord returns (false, nil) when key is absent.
func getRecord(s *store.Store, key string, v any) (bool, error) {
	raw, ok := s.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

func listRecords[T any](s *store.Store, prefix string) ([]T, error) {
	keys := s.Keys(prefix)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		var v T
		found, err := getRecord(s, k, &v)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, v)
		}
	}
	return out, nil
}
