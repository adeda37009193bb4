package registry

import "github.com/kennethnrk/fasttext-services/internal/store"

// UpdateHostInfo replaces the host snapshot, keeping the first StartedAt.
func UpdateHostInfo(s *store.Store, info store.HostInfo) error {
	if existing, found, err := GetHostInfo(s); err != nil {
		return err
	} else if found && info.StartedAt.IsZero() {
		info.StartedAt = existing.StartedAt
	}
	return putRecord(s, hostKey, info)
}

func GetHostInfo(s *store.Store) (store.HostInfo, bool, error) {
	var info store.HostInfo
	found, err := getRecord(s, hostKey, &info)
	if err != nil || !found {
		return store.HostInfo{}, false, err
	}
	return info, true, nil
}
