package modelstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotspot_service/internal/domain/model"
	"hotspot_service/internal/metrics"
)

func sampleArtifact() *model.LinearModelArtifact {
	return &model.LinearModelArtifact{
		TargetCol:      model.LeadTimeLabel,
		FeatureColumns: []string{"hour", "cat_concert"},
		Scales:         []float64{23, 1},
		Weights:        []float64{0.5, 2},
		Bias:           60,
		Categories:     []string{"concert"},
		Metrics:        model.ModelMetrics{MAE: 1.5, RMSE: 2},
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "m.json")
	require.NoError(t, Save(path, sampleArtifact()))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sampleArtifact(), got)
}

func TestSaveReplacesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.json")
	require.NoError(t, os.WriteFile(path, []byte("{\"target_col\":"), 0o644))

	a := sampleArtifact()
	a.Bias = 75
	require.NoError(t, Save(path, a))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 75.0, got.Bias)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "m.json", entries[0].Name())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestSaveInvalidLeavesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.json")
	require.NoError(t, Save(path, sampleArtifact()))

	bad := sampleArtifact()
	bad.Weights = bad.Weights[:1]
	require.ErrorIs(t, Save(path, bad), model.ErrInvalidArtifact)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sampleArtifact(), got)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, model.ErrModelUnavailable)
}

func TestLoadRejectsBadArtifacts(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{not json"), 0o644))
	_, err := Load(garbage)
	assert.ErrorIs(t, err, model.ErrInvalidArtifact)

	mismatched := filepath.Join(dir, "mismatched.json")
	require.NoError(t, os.WriteFile(mismatched,
		[]byte(`{"target_col":"x","feature_columns":["a","b"],"scales":[1,1],"weights":[1],"bias":0}`), 0o644))
	_, err = Load(mismatched)
	assert.ErrorIs(t, err, model.ErrInvalidArtifact)

	zeroScale := filepath.Join(dir, "zero.json")
	require.NoError(t, os.WriteFile(zeroScale,
		[]byte(`{"target_col":"x","feature_columns":["a"],"scales":[0],"weights":[1],"bias":0}`), 0o644))
	_, err = Load(zeroScale)
	assert.ErrorIs(t, err, model.ErrInvalidArtifact)
}

func TestGetOrLoadCaches(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zerolog.Nop(), metrics.New())
	require.NoError(t, Save(s.Path(model.LeadTimeModel), sampleArtifact()))

	a1, err := s.GetOrLoad(model.LeadTimeModel)
	require.NoError(t, err)
	a2, err := s.GetOrLoad(model.LeadTimeModel)
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.Equal(t, 1, s.LoadCount())
}

func TestGetOrLoadConcurrentLoadsOnce(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zerolog.Nop(), nil)
	require.NoError(t, Save(s.Path(model.AttendanceFactorModel), sampleArtifact()))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.GetOrLoad(model.AttendanceFactorModel)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, s.LoadCount())
}

func TestGetOrLoadMissingIsNotCached(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zerolog.Nop(), nil)

	_, err := s.GetOrLoad(model.LeadTimeModel)
	require.ErrorIs(t, err, model.ErrModelUnavailable)

	require.NoError(t, Save(s.Path(model.LeadTimeModel), sampleArtifact()))
	a, err := s.GetOrLoad(model.LeadTimeModel)
	require.NoError(t, err)
	assert.Equal(t, model.LeadTimeLabel, a.TargetCol)
	assert.Equal(t, 2, s.LoadCount())
}

func TestInvalidate(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zerolog.Nop(), nil)
	require.NoError(t, Save(s.Path(model.LeadTimeModel), sampleArtifact()))

	_, err := s.GetOrLoad(model.LeadTimeModel)
	require.NoError(t, err)
	s.Invalidate()
	_, err = s.GetOrLoad(model.LeadTimeModel)
	require.NoError(t, err)

	assert.Equal(t, 2, s.LoadCount())
}

func TestWatchInvalidatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zerolog.Nop(), nil)
	require.NoError(t, Save(s.Path(model.LeadTimeModel), sampleArtifact()))
	_, err := s.GetOrLoad(model.LeadTimeModel)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	updated := sampleArtifact()
	updated.Bias = 42
	require.Eventually(t, func() bool {
		if err := Save(s.Path(model.LeadTimeModel), updated); err != nil {
			return false
		}
		a, err := s.GetOrLoad(model.LeadTimeModel)
		return err == nil && a.Bias == 42
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
