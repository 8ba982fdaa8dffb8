package service

import (
	"context"
	"strings"
	"time"

	"capture-service/internal/access"
	"capture-service/internal/domain/asset"
	"capture-service/internal/domain/job"
	"capture-service/internal/engine"
	"capture-service/internal/repository"
	apperrors "capture-service/pkg/errors"
	"capture-service/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	errJobAccessDenied  = "access denied"
	errJobDeleteAdmin   = "only admins may delete jobs"
	errVideoNotReady    = "video is not ready for processing"
	errJobAlreadyEnded  = "job has already reached a terminal status"
	errJobNoRun         = "job has no engine run"
	errJobResultMissing = "job has no result to download"
	errFailedSubmitJob  = "failed to submit job to execution engine"
	errFailedSyncStatus = "failed to query execution engine for job status"
)

// JobService drives the processing lifecycle against the external execution
// engine: submission, status sync, termination, and cleanup.
type JobService struct {
	jobs   repository.JobRepository
	assets repository.AssetRepository
	engine engine.Client
	store  ObjectStore

	downloadExpiry time.Duration
	logger         *zap.Logger
}

func NewJobService(jobs repository.JobRepository, assets repository.AssetRepository, eng engine.Client, store ObjectStore, downloadExpiry time.Duration, logger *zap.Logger) *JobService {
	return &JobService{
		jobs:           jobs,
		assets:         assets,
		engine:         eng,
		store:          store,
		downloadExpiry: downloadExpiry,
		logger:         logger,
	}
}

// Create persists the job before talking to the engine, so a failed
// submission still leaves an auditable record: the row stays, marked failed,
// with the engine's error in the notes. Submission requires a ready Video
// the caller can see.
func (s *JobService) Create(ctx context.Context, input job.CreateJobInput, caller access.Caller) (*job.Job, error) {
	if err := validator.Notes(input.Notes); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	video, err := s.assets.GetByID(ctx, input.VideoID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(video.OwnerID, video.IsPublic, video.VisibleTo, caller) {
		return nil, apperrors.Forbidden(errJobAccessDenied)
	}
	if video.Variant != asset.VariantVideo || video.Status != asset.StatusReady {
		return nil, apperrors.Precondition(errVideoNotReady)
	}

	j := &job.Job{
		ID:         uuid.New(),
		VideoID:    input.VideoID,
		OwnerID:    input.OwnerID,
		OwnerName:  input.OwnerName,
		Status:     job.StatusSubmitted,
		Parameters: input.Parameters,
		Notes:      input.Notes,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.jobs.Create(ctx, j); err != nil {
		return nil, err
	}

	runID, err := s.engine.Submit(ctx, engine.SubmitRequest{
		VideoPath:  video.StoragePath,
		Parameters: input.Parameters,
	})
	if err != nil {
		s.recordSubmitFailure(ctx, j, err)
		return nil, apperrors.ExternalService(errFailedSubmitJob, err)
	}

	if err := s.jobs.SetRunID(ctx, j.ID, runID); err != nil {
		return nil, err
	}

	j.RunID = &runID
	return j, nil
}

func (s *JobService) Get(ctx context.Context, id uuid.UUID, caller access.Caller) (*job.Job, error) {
	j, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanView(j.OwnerID, j.IsPublic, j.VisibleTo, caller) {
		return nil, apperrors.Forbidden(errJobAccessDenied)
	}
	return j, nil
}

func (s *JobService) List(ctx context.Context, caller access.Caller) ([]*job.Job, error) {
	return s.jobs.ListVisibleTo(ctx, caller.ID, caller.IsAdmin)
}

func (s *JobService) UpdateNotes(ctx context.Context, id uuid.UUID, caller access.Caller, notes string) (*job.Job, error) {
	if err := validator.Notes(notes); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	j, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanModify(j.OwnerID, caller) {
		return nil, apperrors.Forbidden(errJobAccessDenied)
	}

	if err := s.jobs.UpdateNotes(ctx, id, notes); err != nil {
		return nil, err
	}

	j.Notes = notes
	return j, nil
}

// UpdateVisibility follows the same asymmetric rules as assets: is_public is
// owner-writable, the allow-list is admin-only.
func (s *JobService) UpdateVisibility(ctx context.Context, id uuid.UUID, caller access.Caller, input job.UpdateVisibilityInput) (*job.Job, error) {
	if input.IsPublic == nil && input.VisibleTo == nil {
		return nil, apperrors.Validation(errVisibilityNothingSet)
	}
	if input.VisibleTo != nil && !caller.IsAdmin {
		return nil, apperrors.Forbidden(errVisibilityAdminOnly)
	}

	j, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.IsPublic != nil && !access.CanModify(j.OwnerID, caller) {
		return nil, apperrors.Forbidden(errJobAccessDenied)
	}

	if err := s.jobs.UpdateVisibility(ctx, id, input); err != nil {
		return nil, err
	}

	return s.jobs.GetByID(ctx, id)
}

// Terminate cancels the engine run best-effort and forces the local status
// to terminated regardless of whether the engine call succeeded. The engine
// may keep burning cycles; the local record is authoritative for users.
func (s *JobService) Terminate(ctx context.Context, id uuid.UUID, caller access.Caller) (*job.Job, error) {
	j, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanModify(j.OwnerID, caller) {
		return nil, apperrors.Forbidden(errJobAccessDenied)
	}
	if j.Status.Terminal() {
		return nil, apperrors.InvalidState(errJobAlreadyEnded)
	}

	if j.RunID != nil {
		if err := s.engine.Cancel(ctx, *j.RunID); err != nil {
			s.logger.Warn("engine cancel failed, terminating locally anyway",
				zap.String("job_id", j.ID.String()),
				zap.String("run_id", *j.RunID),
				zap.Error(err))
		}
	}

	changed, err := s.jobs.UpdateStatus(ctx, id, job.StatusTerminated, "")
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost the race to another terminal transition; report the winner.
		return nil, apperrors.InvalidState(errJobAlreadyEnded)
	}

	j.Status = job.StatusTerminated
	return j, nil
}

// SyncStatus pulls the engine's view of the run into the local record. A job
// without a run or already terminal is returned unchanged. An engine failure
// surfaces to the caller and leaves local state untouched.
func (s *JobService) SyncStatus(ctx context.Context, id uuid.UUID, caller access.Caller) (*job.Job, error) {
	j, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanView(j.OwnerID, j.IsPublic, j.VisibleTo, caller) {
		return nil, apperrors.Forbidden(errJobAccessDenied)
	}

	if j.RunID == nil || j.Status.Terminal() {
		return j, nil
	}

	if err := s.syncOne(ctx, j); err != nil {
		return nil, err
	}

	return s.jobs.GetByID(ctx, id)
}

// SyncAllRunning sweeps every non-terminal job with a run id. Individual
// failures are logged and skipped so one unreachable run does not stall the
// sweep. Intended to be driven from a ticker.
func (s *JobService) SyncAllRunning(ctx context.Context) error {
	jobs, err := s.jobs.ListNonTerminal(ctx)
	if err != nil {
		return err
	}

	for _, j := range jobs {
		if err := s.syncOne(ctx, j); err != nil {
			s.logger.Warn("job status sweep skipped job",
				zap.String("job_id", j.ID.String()),
				zap.Error(err))
		}
	}

	return nil
}

// Delete is an administrative operation; results in the object store are
// cleared best-effort after the record goes.
func (s *JobService) Delete(ctx context.Context, id uuid.UUID, caller access.Caller) error {
	if !caller.IsAdmin {
		return apperrors.Forbidden(errJobDeleteAdmin)
	}

	j, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.jobs.Delete(ctx, id); err != nil {
		return err
	}

	if j.ResultPath != "" {
		if err := s.store.DeletePrefix(ctx, j.ResultPath); err != nil {
			s.logger.Warn("failed to clean up job results",
				zap.String("job_id", j.ID.String()),
				zap.String("result_path", j.ResultPath),
				zap.Error(err))
		}
	}

	return nil
}

// ResultURL issues a presigned download for the job's result artifact.
func (s *JobService) ResultURL(ctx context.Context, id uuid.UUID, caller access.Caller) (string, error) {
	j, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !access.CanView(j.OwnerID, j.IsPublic, j.VisibleTo, caller) {
		return "", apperrors.Forbidden(errJobAccessDenied)
	}
	if j.Status != job.StatusCompleted || j.ResultPath == "" {
		return "", apperrors.Precondition(errJobResultMissing)
	}

	url, err := s.store.PresignDownload(ctx, j.ResultPath, s.downloadExpiry)
	if err != nil {
		return "", apperrors.ExternalService("failed to sign result download", err)
	}

	return url, nil
}

func (s *JobService) syncOne(ctx context.Context, j *job.Job) error {
	if j.RunID == nil {
		return apperrors.InvalidState(errJobNoRun)
	}

	state, err := s.engine.GetStatus(ctx, *j.RunID)
	if err != nil {
		return apperrors.ExternalService(errFailedSyncStatus, err)
	}

	mapped, ok := mapEngineStatus(state.Status)
	if !ok {
		s.logger.Warn("engine reported unrecognized run status",
			zap.String("job_id", j.ID.String()),
			zap.String("engine_status", state.Status))
		return nil
	}

	if mapped == j.Status {
		return nil
	}

	// The non-terminal predicate in the repository keeps terminal states
	// sticky even if the engine report races a local terminate.
	if _, err := s.jobs.UpdateStatus(ctx, j.ID, mapped, state.ResultLocation); err != nil {
		return err
	}

	return nil
}

func (s *JobService) recordSubmitFailure(ctx context.Context, j *job.Job, submitErr error) {
	if _, err := s.jobs.UpdateStatus(ctx, j.ID, job.StatusFailed, ""); err != nil {
		s.logger.Error("failed to mark job failed after submit error",
			zap.String("job_id", j.ID.String()),
			zap.Error(err))
	}

	notes := j.Notes
	if notes != "" {
		notes += "\n"
	}
	notes += "submission failed: " + submitErr.Error()
	if err := s.jobs.UpdateNotes(ctx, j.ID, notes); err != nil {
		s.logger.Error("failed to record submit error in job notes",
			zap.String("job_id", j.ID.String()),
			zap.Error(err))
	}
}

// mapEngineStatus translates the engine's run status vocabulary into the
// local lifecycle. The engine reports workflow-execution states; several of
// its spellings collapse onto one local status.
func mapEngineStatus(status string) (job.Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PENDING", "QUEUED", "SCHEDULED":
		return job.StatusPending, true
	case "OPEN", "STARTED", "RUNNING", "IN_PROGRESS":
		return job.StatusRunning, true
	case "COMPLETED", "CLOSED", "COMPLETE":
		return job.StatusCompleted, true
	case "FAILED", "ERROR", "TIMED_OUT":
		return job.StatusFailed, true
	case "TERMINATED", "CANCELED", "CANCELLED":
		return job.StatusTerminated, true
	}
	return "", false
}
