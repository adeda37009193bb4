package provision

import (
	"errors"
	"fmt"
)

var (
	ErrBadStatus         = errors.New("unexpected response status")
	ErrChecksumMismatch  = errors.New("checksum mismatch")
	ErrInsufficientSpace = errors.New("insufficient disk space")
	ErrShortDownload     = errors.New("download ended early")
)

// Stage names the provisioning step that failed.
type Stage string

const (
	StageDownload Stage = "download"
	StageVerify   Stage = "verify"
	StageLoad     Stage = "load"
)

// ProvisioningError is returned when a model cannot be fetched or loaded.
type ProvisioningError struct {
	Stage Stage
	Path  string
	URL   string
	Err   error
}

func (e *ProvisioningError) Error() string {
	if e.URL != "" && e.Stage == StageDownload {
		return fmt.Sprintf("provision %s: %s from %s: %v", e.Path, e.Stage, e.URL, e.Err)
	}
	return fmt.Sprintf("provision %s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }
