package registry

import (
	"fmt"
	"time"

	"github.com/kennethnrk/fasttext-services/internal/common/constants"
	"github.com/kennethnrk/fasttext-services/internal/store"
)

// RegisterInstance stores info under its ID, stamping registration time.
func RegisterInstance(s *store.Store, info store.InstanceInfo) error {
	if info.ID == "" {
		return ErrEmptyID
	}
	now := time.Now().UTC()
	if info.RegisteredAt.IsZero() {
		info.RegisteredAt = now
	}
	info.UpdatedAt = now
	if info.Status == "" {
		info.Status = constants.InstanceStatusUnloaded
	}
	return putRecord(s, instancePrefix+info.ID, info)
}

// UpdateInstanceStatus records a lifecycle transition. errMsg is kept only
// for the failed status.
func UpdateInstanceStatus(s *store.Store, id string, status constants.InstanceStatus, errMsg string) error {
	info, found, err := GetInstanceByID(s, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("instance %q: %w", id, ErrNotFound)
	}

	now := time.Now().UTC()
	info.Status = status
	info.UpdatedAt = now
	info.ErrorMessage = ""
	switch status {
	case constants.InstanceStatusReady:
		info.ReadyAt = now
	case constants.InstanceStatusFailed:
		info.ErrorMessage = errMsg
	}
	return putRecord(s, instancePrefix+id, info)
}

// MarkInstanceLoaded links the instance to the artifact it was loaded from.
func MarkInstanceLoaded(s *store.Store, id, artifactID string, took time.Duration) error {
	info, found, err := GetInstanceByID(s, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("instance %q: %w", id, ErrNotFound)
	}
	info.ArtifactID = artifactID
	info.LoadSeconds = took.Seconds()
	info.UpdatedAt = time.Now().UTC()
	return putRecord(s, instancePrefix+id, info)
}

// GetInstanceByID returns (zero, false, nil) when no record exists.
func GetInstanceByID(s *store.Store, id string) (store.InstanceInfo, bool, error) {
	if id == "" {
		return store.InstanceInfo{}, false, ErrEmptyID
	}
	var info store.InstanceInfo
	found, err := getRecord(s, instancePrefix+id, &info)
	if err != nil || !found {
		return store.InstanceInfo{}, false, err
	}
	return info, true, nil
}

func ListInstances(s *store.Store) ([]store.InstanceInfo, error) {
	return listRecords[store.InstanceInfo](s, instancePrefix)
}

func DeRegisterInstance(s *store.Store, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	return s.Delete(instancePrefix + id)
}
