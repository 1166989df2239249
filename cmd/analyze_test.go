package cmd

import (
	"errors"
	"testing"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/internal/iocache"
	"github.com/huangsam/rosmap/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialStore_Fresh(t *testing.T) {
	store, opts, err := initialStore(&contract.Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, opts)
}

func TestInitialStore_LoadExisting(t *testing.T) {
	rec := schema.NewRepositoryRecord("https://github.com/ros/a")
	rec.Ints[schema.BranchCountField] = 3
	rec.Packages = []schema.PackageRecord{{Name: "roscpp", Dependencies: []string{"std_msgs"}}}

	runs := &iocache.MockRunStore{}
	runs.On("LatestRecords", schema.LocalStage).Return([]schema.RepositoryRecord{rec}, nil)
	mgr := &iocache.MockCacheManager{}
	mgr.On("GetRunStore").Return(runs)

	store, opts, err := initialStore(&contract.Config{LoadExisting: true}, mgr)
	require.NoError(t, err)
	assert.Len(t, opts, 1)
	assert.Equal(t, []schema.RepositoryRecord{rec}, store.Snapshot())
	runs.AssertExpectations(t)
}

func TestInitialStore_LoadExistingErrors(t *testing.T) {
	cfg := &contract.Config{LoadExisting: true}

	_, _, err := initialStore(cfg, nil)
	assert.ErrorContains(t, err, "requires a run store")

	empty := &iocache.MockRunStore{}
	empty.On("LatestRecords", schema.LocalStage).Return(nil, iocache.ErrNoRuns)
	mgr := &iocache.MockCacheManager{}
	mgr.On("GetRunStore").Return(empty)
	_, _, err = initialStore(cfg, mgr)
	assert.ErrorContains(t, err, "no stored local checkpoint")

	broken := &iocache.MockRunStore{}
	broken.On("LatestRecords", schema.LocalStage).Return(nil, errors.New("connection refused"))
	mgr = &iocache.MockCacheManager{}
	mgr.On("GetRunStore").Return(broken)
	_, _, err = initialStore(cfg, mgr)
	assert.ErrorContains(t, err, "connection refused")
}
