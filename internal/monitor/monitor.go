// Package monitor periodically records the resources of the machine running
// the services and whether the services are serving.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"

	"github.com/kennethnrk/fasttext-services/internal/common/constants"
	"github.com/kennethnrk/fasttext-services/internal/metrics"
	"github.com/kennethnrk/fasttext-services/internal/registry"
	"github.com/kennethnrk/fasttext-services/internal/store"
)

// Probe reads machine resources. The gopsutil-backed probe is used unless a
// test swaps it.
type Probe interface {
	Metadata(ctx context.Context) (store.HostMetadata, error)
	Memory(ctx context.Context) (store.MemoryInfo, error)
	Storage(ctx context.Context, path string) (store.StorageInfo, error)
}

type Monitor struct {
	dataDir string
	ready   func() bool
	probe   Probe
	store   *store.Store
	metrics *metrics.Metrics
	log     *zap.Logger

	startedAt time.Time
	wasReady  atomic.Bool
}

type Option func(*Monitor)

func WithProbe(p Probe) Option { return func(m *Monitor) { m.probe = p } }

// WithStore keeps the latest snapshot in s under the host record.
func WithStore(s *store.Store) Option { return func(m *Monitor) { m.store = s } }

func WithMetrics(mt *metrics.Metrics) Option { return func(m *Monitor) { m.metrics = mt } }

func WithLogger(l *zap.Logger) Option { return func(m *Monitor) { m.log = l } }

// New returns a monitor that measures the disk holding dataDir and asks ready
// whether every service is serving.
func New(dataDir string, ready func() bool, opts ...Option) *Monitor {
	m := &Monitor{
		dataDir:   dataDir,
		ready:     ready,
		probe:     systemProbe{},
		log:       zap.NewNop(),
		startedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Capture takes one snapshot. Probe failures leave the affected section zero
// and are returned joined, after the snapshot has been recorded.
func (m *Monitor) Capture(ctx context.Context) (store.HostInfo, error) {
	info := store.HostInfo{
		Status:     m.status(),
		StartedAt:  m.startedAt,
		CapturedAt: time.Now().UTC(),
	}

	var errs []error
	var err error
	if info.Metadata, err = m.probe.Metadata(ctx); err != nil {
		errs = append(errs, fmt.Errorf("host metadata: %w", err))
	}
	if info.Memory, err = m.probe.Memory(ctx); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	}
	if info.Storage, err = m.probe.Storage(ctx, m.dataDir); err != nil {
		errs = append(errs, fmt.Errorf("storage %s: %w", m.dataDir, err))
	}

	m.metrics.SetHostResources(info.Memory.Free, info.Storage.Free)
	if m.store != nil {
		if err := registry.UpdateHostInfo(m.store, info); err != nil {
			errs = append(errs, fmt.Errorf("record host info: %w", err))
		}
	}
	return info, errors.Join(errs...)
}

// status is Starting until the services first become ready, then Serving
// or Degraded.
func (m *Monitor) status() constants.HostStatus {
	if m.ready == nil {
		return constants.HostStatusUnknown
	}
	if m.ready() {
		m.wasReady.Store(true)
		return constants.HostStatusServing
	}
	if m.wasReady.Load() {
		return constants.HostStatusDegraded
	}
	return constants.HostStatusStarting
}

// Run captures immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.log.Info("host monitor started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		info, err := m.Capture(ctx)
		if err != nil {
			m.log.Warn("host snapshot incomplete", zap.Error(err))
		}
		m.log.Debug("host snapshot",
			zap.String("status", string(info.Status)),
			zap.Uint64("memory_free", info.Memory.Free),
			zap.Uint64("disk_free", info.Storage.Free),
		)

		select {
		case <-ctx.Done():
			m.log.Info("host monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

type systemProbe struct{}

func (systemProbe) Metadata(ctx context.Context) (store.HostMetadata, error) {
	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return store.HostMetadata{}, err
	}
	cpus, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return store.HostMetadata{}, err
	}
	return store.HostMetadata{
		OS:       hi.OS,
		Platform: hi.Platform,
		Hostname: hi.Hostname,
		CPUs:     cpus,
	}, nil
}

func (systemProbe) Memory(ctx context.Context) (store.MemoryInfo, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return store.MemoryInfo{}, err
	}
	return store.MemoryInfo{Total: vm.Total, Free: vm.Available, Used: vm.Used}, nil
}

func (systemProbe) Storage(ctx context.Context, path string) (store.StorageInfo, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return store.StorageInfo{}, err
	}
	return store.StorageInfo{Path: u.Path, Total: u.Total, Free: u.Free, Used: u.Used}, nil
}
