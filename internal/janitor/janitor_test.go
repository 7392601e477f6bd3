package janitor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/jradxl/idrived2backend/internal/config"
	"github.com/jradxl/idrived2backend/internal/parser"
)

func testConfig() *config.Config {
	return &config.Config{
		Janitor: config.JanitorConfig{Enabled: true, Schedule: "0 * * * *"},
	}
}

func TestSweepRemovesOnlyStagingEntries(t *testing.T) {
	store := &MockAdapter{}
	store.On("List", mock.Anything).Return([]parser.Entry{
		{Size: 500, Name: "vol1.gpg"},
		{Size: 0, Name: "stage-duplicity-abc123"},
		{Size: 0, Name: "stage-run_1"},
	}, nil)
	store.On("DeleteMany", mock.Anything, []string{"stage-duplicity-abc123", "stage-run_1"}).Return(nil)
	store.On("PurgeTrash", mock.Anything, "stage-duplicity-abc123").Return(nil)
	store.On("PurgeTrash", mock.Anything, "stage-run_1").Return(nil)

	sweeper := NewSweeper(testConfig(), zap.NewNop(), store)
	err := sweeper.Sweep(context.Background())
	assert.NoError(t, err)

	store.AssertExpectations(t)
}

func TestSweepNothingToDo(t *testing.T) {
	store := &MockAdapter{}
	store.On("List", mock.Anything).Return([]parser.Entry{
		{Size: 500, Name: "vol1.gpg"},
	}, nil)

	sweeper := NewSweeper(testConfig(), zap.NewNop(), store)
	err := sweeper.Sweep(context.Background())
	assert.NoError(t, err)

	store.AssertNotCalled(t, "DeleteMany", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "PurgeTrash", mock.Anything, mock.Anything)
}

func TestSweepSurfacesDeleteFailure(t *testing.T) {
	store := &MockAdapter{}
	store.On("List", mock.Anything).Return([]parser.Entry{
		{Size: 0, Name: "stage-x"},
	}, nil)
	store.On("DeleteMany", mock.Anything, []string{"stage-x"}).Return(fmt.Errorf("delete failed"))

	sweeper := NewSweeper(testConfig(), zap.NewNop(), store)
	err := sweeper.Sweep(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "delete failed")
}

func TestSweepToleratesPurgeFailure(t *testing.T) {
	// A failed purge leaves residue in trash; the next sweep retries it.
	store := &MockAdapter{}
	store.On("List", mock.Anything).Return([]parser.Entry{
		{Size: 0, Name: "stage-x"},
	}, nil)
	store.On("DeleteMany", mock.Anything, []string{"stage-x"}).Return(nil)
	store.On("PurgeTrash", mock.Anything, "stage-x").Return(fmt.Errorf("purge failed"))

	sweeper := NewSweeper(testConfig(), zap.NewNop(), store)
	err := sweeper.Sweep(context.Background())
	assert.NoError(t, err)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Janitor.Schedule = "not a schedule"

	sweeper := NewSweeper(cfg, zap.NewNop(), &MockAdapter{})
	err := sweeper.Start()
	assert.Error(t, err)
}

func TestStartAndStop(t *testing.T) {
	sweeper := NewSweeper(testConfig(), zap.NewNop(), &MockAdapter{})
	assert.NoError(t, sweeper.Start())
	assert.NoError(t, sweeper.Stop(context.Background()))
}
