// Package provision makes model files available on local disk, downloading
// them on first use, and loads them.
package provision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kennethnrk/fasttext-services/internal/fasttext"
	"github.com/kennethnrk/fasttext-services/internal/metrics"
	"github.com/kennethnrk/fasttext-services/internal/registry"
	"github.com/kennethnrk/fasttext-services/internal/store"
)

// ModelReference says where a model lives locally and where to fetch it.
// SHA256, when set, is the expected hex digest of the file.
type ModelReference struct {
	Path   string
	URL    string
	SHA256 string
}

// Artifact is a model file present on disk.
type Artifact struct {
	ID         string
	Path       string
	URL        string
	Size       int64
	SHA256     string
	Downloaded bool
}

type Provisioner struct {
	client    *http.Client
	store     *store.Store
	metrics   *metrics.Metrics
	log       *zap.Logger
	group     singleflight.Group
	freeSpace func(ctx context.Context, dir string) (uint64, error)
}

type Option func(*Provisioner)

func WithHTTPClient(c *http.Client) Option { return func(p *Provisioner) { p.client = c } }

// NewHTTPClient returns a download client. timeout bounds the whole transfer,
// body included, and zero disables it. headerTimeout bounds the wait for the
// response headers only.
func NewHTTPClient(timeout, headerTimeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Timeout: timeout, Transport: tr}
}

// WithStore records every ensured artifact in s.
func WithStore(s *store.Store) Option { return func(p *Provisioner) { p.store = s } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Provisioner) { p.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(p *Provisioner) { p.log = l } }

func New(opts ...Option) *Provisioner {
	p := &Provisioner{
		client:    NewHTTPClient(0, time.Minute),
		log:       zap.NewNop(),
		freeSpace: diskFree,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func diskFree(ctx context.Context, dir string) (uint64, error) {
	u, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return 0, err
	}
	return u.Free, nil
}

// Load ensures the model file exists and decodes it.
func (p *Provisioner) Load(ctx context.Context, ref ModelReference) (*fasttext.Model, Artifact, error) {
	art, err := p.Ensure(ctx, ref)
	if err != nil {
		return nil, Artifact{}, err
	}
	start := time.Now()
	m, err := fasttext.LoadFile(art.Path)
	if err != nil {
		return nil, Artifact{}, &ProvisioningError{Stage: StageLoad, Path: art.Path, Err: err}
	}
	p.log.Info("model loaded",
		zap.String("path", art.Path),
		zap.Int("dim", m.Dimension()),
		zap.Bool("supervised", m.IsSupervised()),
		zap.Duration("took", time.Since(start)),
	)
	return m, art, nil
}

// Ensure downloads ref.URL to ref.Path unless a file is already there.
// Concurrent calls for the same path share one download. The file only
// appears at ref.Path once it is complete and verified.
func (p *Provisioner) Ensure(ctx context.Context, ref ModelReference) (Artifact, error) {
	if ref.Path == "" {
		return Artifact{}, &ProvisioningError{Stage: StageDownload, Err: errors.New("empty model path")}
	}
	key := filepath.Clean(ref.Path)
	v, err, _ := p.group.Do(key, func() (any, error) {
		return p.ensure(ctx, ref)
	})
	if err != nil {
		return Artifact{}, err
	}
	return v.(Artifact), nil
}

func (p *Provisioner) ensure(ctx context.Context, ref ModelReference) (Artifact, error) {
	art := Artifact{ID: registry.ArtifactID(ref.Path), Path: ref.Path, URL: ref.URL}

	fi, err := os.Stat(ref.Path)
	switch {
	case err == nil && fi.IsDir():
		return Artifact{}, &ProvisioningError{Stage: StageVerify, Path: ref.Path, Err: errors.New("path is a directory")}
	case err == nil:
		art.Size = fi.Size()
		if ref.SHA256 != "" {
			sum, err := fileSHA256(ref.Path)
			if err != nil {
				return Artifact{}, &ProvisioningError{Stage: StageVerify, Path: ref.Path, Err: err}
			}
			if !strings.EqualFold(sum, ref.SHA256) {
				return Artifact{}, &ProvisioningError{Stage: StageVerify, Path: ref.Path,
					Err: fmt.Errorf("%w: have %s, want %s", ErrChecksumMismatch, sum, ref.SHA256)}
			}
			art.SHA256 = sum
		}
		p.log.Debug("model file present", zap.String("path", ref.Path), zap.Int64("bytes", art.Size))
	case errors.Is(err, os.ErrNotExist):
		if err := p.download(ctx, ref, &art); err != nil {
			return Artifact{}, err
		}
	default:
		return Artifact{}, &ProvisioningError{Stage: StageVerify, Path: ref.Path, Err: err}
	}

	if p.store != nil {
		if _, err := registry.RecordArtifact(p.store, store.ArtifactInfo{
			ID:         art.ID,
			Path:       art.Path,
			URL:        art.URL,
			Size:       art.Size,
			SHA256:     art.SHA256,
			Downloaded: art.Downloaded,
			FetchedAt:  time.Now().UTC(),
		}); err != nil {
			p.log.Warn("record artifact", zap.String("path", art.Path), zap.Error(err))
		}
	}
	return art, nil
}

func (p *Provisioner) download(ctx context.Context, ref ModelReference, art *Artifact) (err error) {
	fail := func(err error) error {
		return &ProvisioningError{Stage: StageDownload, Path: ref.Path, URL: ref.URL, Err: err}
	}
	if ref.URL == "" {
		return fail(errors.New("no model url configured"))
	}

	dir := filepath.Dir(ref.Path)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fail(fmt.Errorf("create model dir: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return fail(err)
	}
	start := time.Now()
	p.log.Info("downloading model", zap.String("url", ref.URL), zap.String("path", ref.Path))

	resp, err := p.client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(fmt.Errorf("%w: %s", ErrBadStatus, resp.Status))
	}

	if resp.ContentLength > 0 {
		free, err := p.freeSpace(ctx, dir)
		if err != nil {
			p.log.Warn("disk usage unavailable", zap.String("dir", dir), zap.Error(err))
		} else if free < uint64(resp.ContentLength) {
			return fail(fmt.Errorf("%w: need %d bytes, %d free in %s", ErrInsufficientSpace, resp.ContentLength, free, dir))
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(ref.Path)+".*.part")
	if err != nil {
		return fail(fmt.Errorf("create temp file: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	p.metrics.AddDownloadBytes(n)
	if err != nil {
		return fail(fmt.Errorf("write %s: %w", tmp.Name(), err))
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return fail(fmt.Errorf("%w: got %d of %d bytes", ErrShortDownload, n, resp.ContentLength))
	}

	sum := digest(h)
	if ref.SHA256 != "" && !strings.EqualFold(sum, ref.SHA256) {
		err = fmt.Errorf("%w: have %s, want %s", ErrChecksumMismatch, sum, ref.SHA256)
		return &ProvisioningError{Stage: StageVerify, Path: ref.Path, URL: ref.URL, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return fail(err)
	}
	if err = tmp.Close(); err != nil {
		return fail(err)
	}
	if err = os.Rename(tmp.Name(), ref.Path); err != nil {
		return fail(fmt.Errorf("move into place: %w", err))
	}

	art.Size = n
	art.SHA256 = sum
	art.Downloaded = true
	p.log.Info("model downloaded",
		zap.String("path", ref.Path),
		zap.Int64("bytes", n),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return digest(h), nil
}

func digest(h hash.Hash) string { return hex.EncodeToString(h.Sum(nil)) }
