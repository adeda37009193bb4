package store

import (
	"time"

	"github.com/kennethnrk/fasttext-services/internal/common/constants"
)

type InstanceInfo struct {
	ID           string                   `json:"id"`
	Name         string                   `json:"name"`
	Kind         constants.ServiceKind    `json:"kind"`
	ModelPath    string                   `json:"model_path"`
	ModelURL     string                   `json:"model_url"`
	Status       constants.InstanceStatus `json:"status"`
	ErrorMessage string                   `json:"error_message,omitempty"`
	ArtifactID   string                   `json:"artifact_id,omitempty"`
	LoadSeconds  float64                  `json:"load_seconds,omitempty"`
	RegisteredAt time.Time                `json:"registered_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
	ReadyAt      time.Time                `json:"ready_at,omitempty"`
}
