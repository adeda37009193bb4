package host

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennethnrk/fasttext-services/internal/common/constants"
	"github.com/kennethnrk/fasttext-services/internal/config"
	"github.com/kennethnrk/fasttext-services/internal/dataset"
	"github.com/kennethnrk/fasttext-services/internal/fasttext/fasttexttest"
	"github.com/kennethnrk/fasttext-services/internal/metrics"
	"github.com/kennethnrk/fasttext-services/internal/registry"
	"github.com/kennethnrk/fasttext-services/internal/service"
	"github.com/kennethnrk/fasttext-services/internal/store"
)

type fakeService struct {
	kind    constants.ServiceKind
	loadErr error
	loads   atomic.Int32
	gate    chan struct{}
}

func (f *fakeService) Kind() constants.ServiceKind { return f.kind }

func (f *fakeService) Load(ctx context.Context, _ config.ServiceConfig) (service.Model, error) {
	f.loads.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return service.NewModel(fasttexttest.VectorModel(), "artifact-1"), nil
}

func (f *fakeService) Process(_ context.Context, m service.Model, in service.Inputs) (service.Outputs, error) {
	data, ok := in[constants.DatasetData]
	if !ok {
		return nil, service.ErrMissingDataset
	}
	return service.Outputs{constants.DatasetResults: data}, nil
}

func dataInputs() service.Inputs {
	return service.Inputs{constants.DatasetData: dataset.New([]string{"Text"}, []dataset.Row{{"Text": "hello"}})}
}

func TestLifecycle(t *testing.T) {
	h := New(WithMetrics(metrics.New()))
	svc := &fakeService{kind: constants.ServiceKindVectorizer}
	id, err := h.Register(svc, config.ServiceConfig{Name: "vec"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = h.Process(context.Background(), "vec", dataInputs())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.False(t, h.Ready())

	require.NoError(t, h.LoadAll(context.Background()))
	assert.True(t, h.Ready())

	out, err := h.Process(context.Background(), "vec", dataInputs())
	require.NoError(t, err)
	assert.Equal(t, 1, out[constants.DatasetResults].Len())

	err = h.Load(context.Background(), "vec")
	assert.ErrorIs(t, err, ErrAlreadyLoaded)
	require.NoError(t, h.LoadAll(context.Background()))
	assert.Equal(t, int32(1), svc.loads.Load())

	statuses := h.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, id, statuses[0].ID)
	assert.Equal(t, constants.InstanceStatusReady, statuses[0].Status)
	assert.Equal(t, fasttexttest.VectorDim, statuses[0].Dimension)
	assert.False(t, statuses[0].ReadyAt.IsZero())
}

func TestLoadFailureIsTerminal(t *testing.T) {
	h := New()
	boom := errors.New("download failed")
	svc := &fakeService{kind: constants.ServiceKindLanguageDetection, loadErr: boom}
	_, err := h.Register(svc, config.ServiceConfig{})
	require.NoError(t, err)

	err = h.LoadAll(context.Background())
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, err, boom)

	statuses := h.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, "language_detection", statuses[0].Name)
	assert.Equal(t, constants.InstanceStatusFailed, statuses[0].Status)
	assert.Contains(t, statuses[0].Error, "download failed")

	err = h.Load(context.Background(), "language_detection")
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, int32(1), svc.loads.Load())

	_, err = h.Process(context.Background(), "language_detection", dataInputs())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestLoadAllCancelsOthersOnFailure(t *testing.T) {
	h := New()
	slow := &fakeService{kind: constants.ServiceKindVectorizer, gate: make(chan struct{})}
	bad := &fakeService{kind: constants.ServiceKindLanguageDetection, loadErr: errors.New("bad")}
	_, err := h.Register(slow, config.ServiceConfig{Name: "slow"})
	require.NoError(t, err)
	_, err = h.Register(bad, config.ServiceConfig{Name: "bad"})
	require.NoError(t, err)

	err = h.LoadAll(context.Background())

	require.Error(t, err)
	for _, s := range h.Statuses() {
		assert.Equal(t, constants.InstanceStatusFailed, s.Status, s.Name)
	}
}

func TestProcessWhileLoading(t *testing.T) {
	h := New()
	svc := &fakeService{kind: constants.ServiceKindVectorizer, gate: make(chan struct{})}
	_, err := h.Register(svc, config.ServiceConfig{Name: "vec"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- h.Load(context.Background(), "vec") }()
	require.Eventually(t, func() bool {
		return h.Statuses()[0].Status == constants.InstanceStatusLoading
	}, time.Second, 5*time.Millisecond)

	_, err = h.Process(context.Background(), "vec", dataInputs())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, h.Load(context.Background(), "vec"), ErrNotReady)

	close(svc.gate)
	require.NoError(t, <-done)
	assert.True(t, h.Ready())
}

func TestUnknownServiceAndDuplicates(t *testing.T) {
	h := New()
	_, err := h.Register(&fakeService{kind: constants.ServiceKindVectorizer}, config.ServiceConfig{Name: "vec"})
	require.NoError(t, err)

	_, err = h.Register(&fakeService{kind: constants.ServiceKindVectorizer}, config.ServiceConfig{Name: "vec"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = h.Process(context.Background(), "nope", dataInputs())
	assert.ErrorIs(t, err, ErrUnknownService)
	assert.ErrorIs(t, h.Load(context.Background(), "nope"), ErrUnknownService)
}

func TestReadyWithNoInstances(t *testing.T) {
	assert.False(t, New().Ready())
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, metrics.OutcomeOK, outcomeOf(nil))
	assert.Equal(t, metrics.OutcomeUnknown, outcomeOf(ErrUnknownService))
	assert.Equal(t, metrics.OutcomeNotReady, outcomeOf(ErrNotReady))
	assert.Equal(t, metrics.OutcomeInvalidInput, outcomeOf(&service.MissingFieldError{Dataset: "Data", Field: "Text"}))
	assert.Equal(t, metrics.OutcomeInternalError, outcomeOf(errors.New("x")))
}

func TestPersistsInstanceRecords(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	h := New(WithStore(s))
	id, err := h.Register(&fakeService{kind: constants.ServiceKindVectorizer}, config.ServiceConfig{Name: "vec", ModelPath: "/m/v.bin"})
	require.NoError(t, err)

	rec, found, err := registry.GetInstanceByID(s, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, constants.InstanceStatusUnloaded, rec.Status)
	assert.Equal(t, "/m/v.bin", rec.ModelPath)

	require.NoError(t, h.LoadAll(context.Background()))

	rec, _, err = registry.GetInstanceByID(s, id)
	require.NoError(t, err)
	assert.Equal(t, constants.InstanceStatusReady, rec.Status)
	assert.Equal(t, "artifact-1", rec.ArtifactID)
}

func TestStatusesCarryModelArtifact(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	_, err = registry.RecordArtifact(s, store.ArtifactInfo{ID: "artifact-1", Path: "/m/v.bin", Size: 42, Downloaded: true})
	require.NoError(t, err)
	_, err = registry.RecordArtifact(s, store.ArtifactInfo{Path: "/m/other.bin"})
	require.NoError(t, err)

	h := New(WithStore(s))
	_, err = h.Register(&fakeService{kind: constants.ServiceKindVectorizer}, config.ServiceConfig{Name: "vec"})
	require.NoError(t, err)
	assert.Nil(t, h.Statuses()[0].Model)

	require.NoError(t, h.LoadAll(context.Background()))

	st := h.Statuses()[0]
	require.NotNil(t, st.Model)
	assert.Equal(t, "/m/v.bin", st.Model.Path)
	assert.Equal(t, int64(42), st.Model.Size)
	assert.True(t, st.Model.Downloaded)
}
