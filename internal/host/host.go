// Package host runs service instances: it loads each instance's model once
// and dispatches Process calls to ready instances by name.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kennethnrk/fasttext-services/internal/common/constants"
	"github.com/kennethnrk/fasttext-services/internal/config"
	"github.com/kennethnrk/fasttext-services/internal/metrics"
	"github.com/kennethnrk/fasttext-services/internal/registry"
	"github.com/kennethnrk/fasttext-services/internal/service"
	"github.com/kennethnrk/fasttext-services/internal/store"
)

var (
	ErrUnknownService = errors.New("unknown service")
	ErrNotReady       = errors.New("service is not ready")
	ErrAlreadyLoaded  = errors.New("service already loaded")
	ErrLoadFailed     = errors.New("service failed to load")
	ErrDuplicateName  = errors.New("service name already registered")
)

// Status is a point-in-time view of one instance.
type Status struct {
	ID        string                   `json:"id"`
	Name      string                   `json:"name"`
	Kind      constants.ServiceKind    `json:"kind"`
	Status    constants.InstanceStatus `json:"status"`
	Error     string                   `json:"error,omitempty"`
	Dimension int                      `json:"dimension,omitempty"`
	ReadyAt   time.Time                `json:"ready_at,omitempty"`
	Model     *store.ArtifactInfo      `json:"model,omitempty"`
}

type instance struct {
	id  string
	svc service.Service
	cfg config.ServiceConfig

	mu      sync.RWMutex
	status  constants.InstanceStatus
	model   service.Model
	loadErr error
	readyAt time.Time
}

type Host struct {
	mu        sync.RWMutex
	instances []*instance
	byName    map[string]*instance

	store   *store.Store
	metrics *metrics.Metrics
	log     *zap.Logger
}

type Option func(*Host)

// WithStore persists instance records and lifecycle transitions in s.
func WithStore(s *store.Store) Option { return func(h *Host) { h.store = s } }

func WithMetrics(m *metrics.Metrics) Option { return func(h *Host) { h.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(h *Host) { h.log = l } }

func New(opts ...Option) *Host {
	h := &Host{byName: map[string]*instance{}, log: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds an unloaded instance of svc under cfg.Name and returns its id.
func (h *Host) Register(svc service.Service, cfg config.ServiceConfig) (string, error) {
	if cfg.Name == "" {
		cfg.Name = string(svc.Kind())
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.byName[cfg.Name]; ok {
		return "", fmt.Errorf("%w: %q", ErrDuplicateName, cfg.Name)
	}

	inst := &instance{
		id:     uuid.NewString(),
		svc:    svc,
		cfg:    cfg,
		status: constants.InstanceStatusUnloaded,
	}
	if h.store != nil {
		if err := registry.RegisterInstance(h.store, store.InstanceInfo{
			ID:        inst.id,
			Name:      cfg.Name,
			Kind:      svc.Kind(),
			ModelPath: cfg.ModelPath,
			ModelURL:  cfg.ModelURL,
			Status:    inst.status,
		}); err != nil {
			return "", fmt.Errorf("register instance %q: %w", cfg.Name, err)
		}
	}
	h.instances = append(h.instances, inst)
	h.byName[cfg.Name] = inst
	h.metrics.SetReady(cfg.Name, false)
	h.log.Info("service registered",
		zap.String("service", cfg.Name),
		zap.String("kind", string(svc.Kind())),
		zap.String("instance_id", inst.id),
	)
	return inst.id, nil
}

// LoadAll loads every unloaded instance concurrently and returns the first
// failure. A failure cancels loads still in flight.
func (h *Host) LoadAll(ctx context.Context) error {
	h.mu.RLock()
	names := make([]string, 0, len(h.instances))
	for _, inst := range h.instances {
		names = append(names, inst.cfg.Name)
	}
	h.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			err := h.Load(gctx, name)
			if errors.Is(err, ErrAlreadyLoaded) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Load moves the named instance from Unloaded through Loading to Ready, or
// to Failed. Instances never leave Ready or Failed.
func (h *Host) Load(ctx context.Context, name string) error {
	inst, err := h.lookup(name)
	if err != nil {
		return err
	}

	inst.mu.Lock()
	switch inst.status {
	case constants.InstanceStatusReady:
		inst.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrAlreadyLoaded, name)
	case constants.InstanceStatusLoading:
		inst.mu.Unlock()
		return fmt.Errorf("%w: %q is loading", ErrNotReady, name)
	case constants.InstanceStatusFailed:
		prev := inst.loadErr
		inst.mu.Unlock()
		return fmt.Errorf("%w: %q: %w", ErrLoadFailed, name, prev)
	}
	inst.status = constants.InstanceStatusLoading
	inst.mu.Unlock()
	h.persistStatus(inst, constants.InstanceStatusLoading, "")

	log := h.log.With(zap.String("service", name), zap.String("instance_id", inst.id))
	log.Info("loading service", zap.String("model_path", inst.cfg.ModelPath))
	start := time.Now()

	model, err := inst.svc.Load(ctx, inst.cfg)
	took := time.Since(start)

	inst.mu.Lock()
	if err != nil {
		inst.status = constants.InstanceStatusFailed
		inst.loadErr = err
		inst.mu.Unlock()
		h.persistStatus(inst, constants.InstanceStatusFailed, err.Error())
		log.Error("service failed to load", zap.Error(err), zap.Duration("took", took))
		return fmt.Errorf("%w: %q: %w", ErrLoadFailed, name, err)
	}
	inst.status = constants.InstanceStatusReady
	inst.model = model
	inst.readyAt = time.Now().UTC()
	inst.mu.Unlock()

	h.persistStatus(inst, constants.InstanceStatusReady, "")
	if h.store != nil {
		if err := registry.MarkInstanceLoaded(h.store, inst.id, model.ArtifactID(), took); err != nil {
			log.Warn("record loaded instance", zap.Error(err))
		}
	}
	h.metrics.ObserveLoad(name, took)
	h.metrics.SetReady(name, true)
	log.Info("service ready", zap.Int("dimension", model.Dimension()), zap.Duration("took", took))
	return nil
}

// Process runs the named service on in with the model it loaded.
func (h *Host) Process(ctx context.Context, name string, in service.Inputs) (service.Outputs, error) {
	start := time.Now()
	rows := 0
	if d := in[constants.DatasetData]; d != nil {
		rows = d.Len()
	}

	out, err := h.process(ctx, name, in)

	outcome := outcomeOf(err)
	h.metrics.ObserveProcess(name, outcome, rows, time.Since(start))
	fields := []zap.Field{
		zap.String("service", name),
		zap.Int("rows", rows),
		zap.String("outcome", outcome),
		zap.Duration("took", time.Since(start)),
	}
	switch {
	case err == nil:
		h.log.Debug("processed", fields...)
	case outcome == metrics.OutcomeInternalError:
		h.log.Error("process failed", append(fields, zap.Error(err))...)
	default:
		h.log.Info("process rejected", append(fields, zap.Error(err))...)
	}
	return out, err
}

func (h *Host) process(ctx context.Context, name string, in service.Inputs) (service.Outputs, error) {
	inst, err := h.lookup(name)
	if err != nil {
		return nil, err
	}
	inst.mu.RLock()
	status, model := inst.status, inst.model
	inst.mu.RUnlock()
	if status != constants.InstanceStatusReady {
		return nil, fmt.Errorf("%w: %q is %s", ErrNotReady, name, status)
	}
	return inst.svc.Process(ctx, model, in)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrUnknownService):
		return metrics.OutcomeUnknown
	case errors.Is(err, ErrNotReady):
		return metrics.OutcomeNotReady
	case service.IsInvalidInput(err):
		return metrics.OutcomeInvalidInput
	default:
		return metrics.OutcomeInternalError
	}
}

// Statuses lists every instance in registration order. With a store, loaded
// instances carry the record of the model file they were loaded from.
func (h *Host) Statuses() []Status {
	artifacts := h.artifacts()
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Status, 0, len(h.instances))
	for _, inst := range h.instances {
		s := inst.snapshot()
		if art, ok := artifacts[inst.artifactID()]; ok {
			s.Model = &art
		}
		out = append(out, s)
	}
	return out
}

func (h *Host) artifacts() map[string]store.ArtifactInfo {
	if h.store == nil {
		return nil
	}
	list, err := registry.ListArtifacts(h.store)
	if err != nil {
		h.log.Warn("list artifacts", zap.Error(err))
		return nil
	}
	out := make(map[string]store.ArtifactInfo, len(list))
	for _, a := range list {
		out[a.ID] = a
	}
	return out
}

// Ready reports whether every registered instance is ready.
func (h *Host) Ready() bool {
	statuses := h.Statuses()
	if len(statuses) == 0 {
		return false
	}
	for _, s := range statuses {
		if s.Status != constants.InstanceStatusReady {
			return false
		}
	}
	return true
}

func (h *Host) lookup(name string) (*instance, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	inst, ok := h.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	return inst, nil
}

func (h *Host) persistStatus(inst *instance, status constants.InstanceStatus, msg string) {
	if h.store == nil {
		return
	}
	if err := registry.UpdateInstanceStatus(h.store, inst.id, status, msg); err != nil {
		h.log.Warn("persist instance status",
			zap.String("service", inst.cfg.Name),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (inst *instance) artifactID() string {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	if inst.model == nil {
		return ""
	}
	return inst.model.ArtifactID()
}

func (inst *instance) snapshot() Status {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	s := Status{
		ID:      inst.id,
		Name:    inst.cfg.Name,
		Kind:    inst.svc.Kind(),
		Status:  inst.status,
		ReadyAt: inst.readyAt,
	}
	if inst.loadErr != nil {
		s.Error = inst.loadErr.Error()
	}
	if inst.model != nil {
		s.Dimension = inst.model.Dimension()
	}
	return s
}
