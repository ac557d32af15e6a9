//go:build integration

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/models"
	"github.com/ekaya-inc/herbtrace/pkg/repositories"
	"github.com/ekaya-inc/herbtrace/pkg/testhelpers"
)

var errTransitionWrite = errors.New("transition insert failed")

// failingTransitionRepo reads through to the real repository but refuses writes.
type failingTransitionRepo struct {
	repositories.StatusTransitionRepository
}

func (failingTransitionRepo) Create(context.Context, *models.StatusTransition) error {
	return errTransitionWrite
}

func TestRecordQualityTest_TransitionFailureRollsBack(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	tdb.Truncate(t)
	ctx := tdb.Scoped(t)

	batchRepo := repositories.NewBatchRepository()
	testRepo := repositories.NewQualityTestRepository()
	transitions := repositories.NewStatusTransitionRepository()

	_, _, err := batchRepo.CreateIfAbsent(ctx, &models.ProcessingBatch{BatchID: "ASH-500", Status: models.BatchStatusProcessing})
	require.NoError(t, err)

	quality := NewQualityService(tdb.DB, batchRepo, testRepo, failingTransitionRepo{transitions},
		RetestPolicy{}, nil, nil, zap.NewNop())

	_, err = quality.RecordQualityTest(ctx, "ASH-500", qualityInput("CERT-RB-1", "passed"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errTransitionWrite))

	tests, err := testRepo.ListByBatch(ctx, "ASH-500")
	require.NoError(t, err)
	assert.Empty(t, tests)

	exists, err := testRepo.CertificateExists(ctx, "CERT-RB-1")
	require.NoError(t, err)
	assert.False(t, exists)

	batch, err := batchRepo.GetByBatchID(ctx, "ASH-500")
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusProcessing, batch.Status)
	assert.Nil(t, batch.EndDate)

	history, err := transitions.ListByBatch(ctx, "ASH-500")
	require.NoError(t, err)
	assert.Empty(t, history)

	// The certificate is free again, so a later submission with working repositories succeeds.
	quality = NewQualityService(tdb.DB, batchRepo, testRepo, transitions, RetestPolicy{}, nil, nil, zap.NewNop())
	result, err := quality.RecordQualityTest(ctx, "ASH-500", qualityInput("CERT-RB-1", "passed"))
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, result.Batch.Status)

	history, err = transitions.ListByBatch(ctx, "ASH-500")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.BatchStatusCompleted, history[0].ToStatus)
}
