package registry

import (
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kennethnrk/fasttext-services/internal/store"
)

// ArtifactID is the stable identifier of the model file at path.
func ArtifactID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)).String()
}

// RecordArtifact stores info, deriving its ID from the path when unset.
func RecordArtifact(s *store.Store, info store.ArtifactInfo) (store.ArtifactInfo, error) {
	if info.Path == "" {
		return store.ArtifactInfo{}, ErrEmptyID
	}
	if info.ID == "" {
		info.ID = ArtifactID(info.Path)
	}
	return info, putRecord(s, artifactPrefix+info.ID, info)
}

func GetArtifactByID(s *store.Store, id string) (store.ArtifactInfo, bool, error) {
	if id == "" {
		return store.ArtifactInfo{}, false, ErrEmptyID
	}
	var info store.ArtifactInfo
	found, err := getRecord(s, artifactPrefix+id, &info)
	if err != nil || !found {
		return store.ArtifactInfo{}, false, err
	}
	return info, true, nil
}

func ListArtifacts(s *store.Store) ([]store.ArtifactInfo, error) {
	return listRecords[store.ArtifactInfo](s, artifactPrefix)
}
