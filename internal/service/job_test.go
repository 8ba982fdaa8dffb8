package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"capture-service/internal/access"
	"capture-service/internal/domain/asset"
	"capture-service/internal/domain/job"
	"capture-service/internal/engine"
	apperrors "capture-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type jobFixture struct {
	jobs   *fakeJobRepo
	assets *fakeAssetRepo
	engine *fakeEngine
	store  *fakeStore
	svc    *JobService

	owner  uuid.UUID
	caller access.Caller
	video  *asset.Asset
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()

	f := &jobFixture{
		jobs:   newFakeJobRepo(),
		assets: newFakeAssetRepo(),
		engine: newFakeEngine(),
		store:  newFakeStore(),
		owner:  uuid.New(),
	}
	f.caller = access.Caller{ID: f.owner}
	f.svc = NewJobService(f.jobs, f.assets, f.engine, f.store, time.Hour, zap.NewNop())

	f.video = &asset.Asset{
		ID:          uuid.New(),
		OwnerID:     f.owner,
		Variant:     asset.VariantVideo,
		StoragePath: f.owner.String() + "/video/somewhere",
		Status:      asset.StatusReady,
	}
	require.NoError(t, f.assets.Create(context.Background(), f.video))

	return f
}

func (f *jobFixture) createInput() job.CreateJobInput {
	return job.CreateJobInput{
		VideoID:    f.video.ID,
		OwnerID:    f.owner,
		OwnerName:  "Sam Producer",
		Parameters: `{"quality":"high"}`,
	}
}

func TestJobCreateSubmitsAndRecordsRunID(t *testing.T) {
	f := newJobFixture(t)
	f.engine.nextRunID = "run-42"

	j, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	require.NoError(t, err)

	assert.Equal(t, job.StatusSubmitted, j.Status)
	require.NotNil(t, j.RunID)
	assert.Equal(t, "run-42", *j.RunID)

	require.Len(t, f.engine.submitted, 1)
	assert.Equal(t, f.video.StoragePath, f.engine.submitted[0].VideoPath)
	assert.Equal(t, `{"quality":"high"}`, f.engine.submitted[0].Parameters)
}

func TestJobCreateRequiresReadyVideo(t *testing.T) {
	f := newJobFixture(t)
	require.NoError(t, f.assets.TransitionStatus(context.Background(), f.video.ID, asset.StatusReady, asset.StatusUploading))

	_, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)
}

func TestJobCreateRejectsNonVideoAssets(t *testing.T) {
	f := newJobFixture(t)

	bg := &asset.Asset{ID: uuid.New(), OwnerID: f.owner, Variant: asset.VariantBackground, Status: asset.StatusReady}
	require.NoError(t, f.assets.Create(context.Background(), bg))

	input := f.createInput()
	input.VideoID = bg.ID
	_, err := f.svc.Create(context.Background(), input, f.caller)
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)
}

func TestJobCreateSubmitFailureLeavesAuditableRow(t *testing.T) {
	f := newJobFixture(t)
	f.engine.submitErr = errors.New("engine unreachable")

	_, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	require.ErrorIs(t, err, apperrors.ErrExternalService)

	// The row survives, marked failed, with the cause in the notes.
	jobs, err := f.jobs.ListVisibleTo(context.Background(), f.owner, false)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.StatusFailed, jobs[0].Status)
	assert.Contains(t, jobs[0].Notes, "engine unreachable")
	assert.Nil(t, jobs[0].RunID)
}

func TestJobTerminateCancelsEngineRun(t *testing.T) {
	f := newJobFixture(t)

	j, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	require.NoError(t, err)

	got, err := f.svc.Terminate(context.Background(), j.ID, f.caller)
	require.NoError(t, err)
	assert.Equal(t, job.StatusTerminated, got.Status)
	assert.Equal(t, []string{*j.RunID}, f.engine.cancelCalls)
}

func TestJobTerminateSurvivesEngineFailure(t *testing.T) {
	f := newJobFixture(t)
	f.engine.cancelErr = errors.New("engine unreachable")

	j, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	require.NoError(t, err)

	// The engine call is best-effort; the local record is terminated anyway.
	got, err := f.svc.Terminate(context.Background(), j.ID, f.caller)
	require.NoError(t, err)
	assert.Equal(t, job.StatusTerminated, got.Status)

	stored, err := f.jobs.GetByID(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusTerminated, stored.Status)
}

func TestJobTerminateTerminalJobIsRejected(t *testing.T) {
	f := newJobFixture(t)

	j, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	require.NoError(t, err)

	_, err = f.svc.Terminate(context.Background(), j.ID, f.caller)
	require.NoError(t, err)

	_, err = f.svc.Terminate(context.Background(), j.ID, f.caller)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestJobSyncStatusMapsEngineStates(t *testing.T) {
	tests := []struct {
		engineStatus string
		want         job.Status
	}{
		{"OPEN", job.StatusRunning},
		{"RUNNING", job.StatusRunning},
		{"QUEUED", job.StatusPending},
		{"COMPLETED", job.StatusCompleted},
		{"FAILED", job.StatusFailed},
		{"TERMINATED", job.StatusTerminated},
	}

	for _, tt := range tests {
		t.Run(tt.engineStatus, func(t *testing.T) {
			f := newJobFixture(t)
			j, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
			require.NoError(t, err)

			f.engine.states[*j.RunID] = &engine.RunState{Status: tt.engineStatus}

			got, err := f.svc.SyncStatus(context.Background(), j.ID, f.caller)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestJobSyncStatusRecordsResultLocation(t *testing.T) {
	f := newJobFixture(t)

	j, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	require.NoError(t, err)

	f.engine.states[*j.RunID] = &engine.RunState{
		Status:         "COMPLETED",
		ResultLocation: "results/run-1/output.zip",
	}

	got, err := f.svc.SyncStatus(context.Background(), j.ID, f.caller)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	assert.Equal(t, "results/run-1/output.zip", got.ResultPath)
}

func TestJobSyncStatusEngineFailureLeavesStateUntouched(t *testing.T) {
	f := newJobFixture(t)

	j, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	require.NoError(t, err)

	f.engine.statusErr = errors.New("engine unreachable")

	_, err = f.svc.SyncStatus(context.Background(), j.ID, f.caller)
	require.ErrorIs(t, err, apperrors.ErrExternalService)

	stored, err := f.jobs.GetByID(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusSubmitted, stored.Status)
}

func TestJobSyncStatusIsNoOpWithoutRun(t *testing.T) {
	f := newJobFixture(t)
	f.engine.submitErr = errors.New("engine unreachable")

	_, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	require.Error(t, err)

	jobs, err := f.jobs.ListVisibleTo(context.Background(), f.owner, false)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	// Terminal and run-less jobs return unchanged without an engine call.
	got, err := f.svc.SyncStatus(context.Background(), jobs[0].ID, f.caller)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, got.Status)
}

func TestJobSyncCannotResurrectTerminatedJob(t *testing.T) {
	f := newJobFixture(t)

	j, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	require.NoError(t, err)

	_, err = f.svc.Terminate(context.Background(), j.ID, f.caller)
	require.NoError(t, err)

	f.engine.states[*j.RunID] = &engine.RunState{Status: "RUNNING"}

	got, err := f.svc.SyncStatus(context.Background(), j.ID, f.caller)
	require.NoError(t, err)
	assert.Equal(t, job.StatusTerminated, got.Status)
}

func TestJobSyncAllRunningSkipsFailures(t *testing.T) {
	f := newJobFixture(t)

	f.engine.nextRunID = "run-a"
	a, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	require.NoError(t, err)

	f.engine.nextRunID = "run-b"
	b, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	require.NoError(t, err)

	f.engine.states["run-a"] = &engine.RunState{Status: "COMPLETED", ResultLocation: "results/run-a"}
	f.engine.states["run-b"] = &engine.RunState{Status: ""} // unrecognized, logged and skipped

	require.NoError(t, f.svc.SyncAllRunning(context.Background()))

	storedA, err := f.jobs.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, storedA.Status)

	storedB, err := f.jobs.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusSubmitted, storedB.Status)
}

func TestJobNotesAndVisibilityRules(t *testing.T) {
	f := newJobFixture(t)

	j, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	require.NoError(t, err)

	got, err := f.svc.UpdateNotes(context.Background(), j.ID, f.caller, "reviewed")
	require.NoError(t, err)
	assert.Equal(t, "reviewed", got.Notes)

	_, err = f.svc.UpdateNotes(context.Background(), j.ID, access.Caller{ID: uuid.New()}, "nope")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	visible := []uuid.UUID{uuid.New()}
	_, err = f.svc.UpdateVisibility(context.Background(), j.ID, f.caller, job.UpdateVisibilityInput{VisibleTo: &visible})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	public := true
	got, err = f.svc.UpdateVisibility(context.Background(), j.ID, f.caller, job.UpdateVisibilityInput{IsPublic: &public})
	require.NoError(t, err)
	assert.True(t, got.IsPublic)
}

func TestJobDeleteIsAdminOnly(t *testing.T) {
	f := newJobFixture(t)

	j, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	require.NoError(t, err)

	err = f.svc.Delete(context.Background(), j.ID, f.caller)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	f.engine.states[*j.RunID] = &engine.RunState{Status: "COMPLETED", ResultLocation: "results/run-1"}
	_, err = f.svc.SyncStatus(context.Background(), j.ID, f.caller)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), j.ID, access.Caller{ID: uuid.New(), IsAdmin: true}))
	_, err = f.jobs.GetByID(context.Background(), j.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, f.store.deletedPrefixes, "results/run-1")
}

func TestJobResultURL(t *testing.T) {
	f := newJobFixture(t)

	j, err := f.svc.Create(context.Background(), f.createInput(), f.caller)
	require.NoError(t, err)

	_, err = f.svc.ResultURL(context.Background(), j.ID, f.caller)
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)

	f.engine.states[*j.RunID] = &engine.RunState{Status: "COMPLETED", ResultLocation: "results/run-1/output.zip"}
	_, err = f.svc.SyncStatus(context.Background(), j.ID, f.caller)
	require.NoError(t, err)

	url, err := f.svc.ResultURL(context.Background(), j.ID, f.caller)
	require.NoError(t, err)
	assert.Contains(t, url, "results/run-1/output.zip")
	assert.Contains(t, url, "sig=download")
}
