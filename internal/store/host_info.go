package store

import (
	"time"

	"github.com/kennethnrk/fasttext-services/internal/common/constants"
)

type MemoryInfo struct {
	Total uint64 `json:"total"`
	Free  uint64 `json:"free"`
	Used  uint64 `json:"used"`
}

type StorageInfo struct {
	Path  string `json:"path"`
	Total uint64 `json:"total"`
	Free  uint64 `json:"free"`
	Used  uint64 `json:"used"`
}

type HostMetadata struct {
	OS       string `json:"os"`
	Platform string `json:"platform"`
	Hostname string `json:"hostname"`
	CPUs     int    `json:"cpus"`
}

// HostInfo is the latest resource snapshot of the hosting process's machine.
type HostInfo struct {
	Metadata   HostMetadata         `json:"metadata"`
	Memory     MemoryInfo           `json:"memory"`
	Storage    StorageInfo          `json:"storage"`
	Status     constants.HostStatus `json:"status"`
	StartedAt  time.Time            `json:"started_at"`
	CapturedAt time.Time            `json:"captured_at"`
}
