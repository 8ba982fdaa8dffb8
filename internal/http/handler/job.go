package handler

import (
	"context"
	"net/http"
	"time"

	"capture-service/internal/audit"
	"capture-service/internal/auth"
	"capture-service/internal/domain/job"
	"capture-service/internal/domain/user"
	"capture-service/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// UserDirectory is the slice of the user repository the job handler needs
// to denormalize the owner's display name onto new jobs.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type JobHandler struct {
	jobService  *service.JobService
	users       UserDirectory
	auditLogger *audit.Logger
}

func NewJobHandler(jobService *service.JobService, users UserDirectory, auditLogger *audit.Logger) *JobHandler {
	return &JobHandler{jobService: jobService, users: users, auditLogger: auditLogger}
}

type CreateJobRequest struct {
	VideoID    string `json:"video_id"`
	Parameters string `json:"parameters"`
	Notes      string `json:"notes"`
}

type JobResponse struct {
	ID         string    `json:"id"`
	VideoID    string    `json:"video_id"`
	OwnerID    string    `json:"owner_id"`
	OwnerName  string    `json:"owner_name"`
	Status     string    `json:"status"`
	RunID      *string   `json:"run_id,omitempty"`
	Parameters string    `json:"parameters,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	ResultPath string    `json:"result_path,omitempty"`
	IsPublic   bool      `json:"is_public"`
	VisibleTo  []string  `json:"visible_to"`
	CreatedAt  time.Time `json:"created_at"`
}

type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

type ResultURLResponse struct {
	URL string `json:"url"`
}

func (h *JobHandler) Create(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	var req CreateJobRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	videoID, err := uuid.Parse(req.VideoID)
	if err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidAssetID)
	}

	ownerName := ""
	if u, err := h.users.GetByID(c.Request().Context(), caller.ID); err == nil {
		ownerName = u.FullName
	}

	j, err := h.jobService.Create(c.Request().Context(), job.CreateJobInput{
		VideoID:    videoID,
		OwnerID:    caller.ID,
		OwnerName:  ownerName,
		Parameters: req.Parameters,
		Notes:      req.Notes,
	}, caller)
	if err != nil {
		return err
	}

	if h.auditLogger != nil {
		h.auditLogger.LogFromContext(c, audit.ResourceTypeJob, &j.ID, audit.ActionCreate, audit.StatusSuccess, map[string]any{
			"video_id": j.VideoID.String(),
		})
	}

	return c.JSON(http.StatusCreated, toJobResponse(j))
}

func (h *JobHandler) List(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	jobs, err := h.jobService.List(c.Request().Context(), caller)
	if err != nil {
		return err
	}

	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}

	return c.JSON(http.StatusOK, out)
}

func (h *JobHandler) Get(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidJobID)
	}

	j, err := h.jobService.Get(c.Request().Context(), id, caller)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toJobResponse(j))
}

func (h *JobHandler) UpdateNotes(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidJobID)
	}

	var req UpdateNotesRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	j, err := h.jobService.UpdateNotes(c.Request().Context(), id, caller, req.Notes)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toJobResponse(j))
}

func (h *JobHandler) UpdateVisibility(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidJobID)
	}

	var req VisibilityRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	input := job.UpdateVisibilityInput{IsPublic: req.IsPublic}
	if req.VisibleTo != nil {
		ids, err := parseUUIDs(*req.VisibleTo)
		if err != nil {
			return respondError(c, http.StatusBadRequest, msgInvalidUserID)
		}
		input.VisibleTo = &ids
	}

	j, err := h.jobService.UpdateVisibility(c.Request().Context(), id, caller, input)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toJobResponse(j))
}

func (h *JobHandler) Terminate(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidJobID)
	}

	j, err := h.jobService.Terminate(c.Request().Context(), id, caller)
	if err != nil {
		return err
	}

	if h.auditLogger != nil {
		h.auditLogger.LogFromContext(c, audit.ResourceTypeJob, &j.ID, audit.ActionTerminate, audit.StatusSuccess, nil)
	}

	return c.JSON(http.StatusOK, toJobResponse(j))
}

func (h *JobHandler) SyncStatus(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidJobID)
	}

	j, err := h.jobService.SyncStatus(c.Request().Context(), id, caller)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toJobResponse(j))
}

func (h *JobHandler) Delete(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidJobID)
	}

	if err := h.jobService.Delete(c.Request().Context(), id, caller); err != nil {
		return err
	}

	if h.auditLogger != nil {
		h.auditLogger.LogFromContext(c, audit.ResourceTypeJob, &id, audit.ActionDelete, audit.StatusSuccess, nil)
	}

	return respondMessage(c, http.StatusOK, "job deleted")
}

func (h *JobHandler) ResultURL(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidJobID)
	}

	url, err := h.jobService.ResultURL(c.Request().Context(), id, caller)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ResultURLResponse{URL: url})
}

func toJobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:         j.ID.String(),
		VideoID:    j.VideoID.String(),
		OwnerID:    j.OwnerID.String(),
		OwnerName:  j.OwnerName,
		Status:     string(j.Status),
		RunID:      j.RunID,
		Parameters: j.Parameters,
		Notes:      j.Notes,
		ResultPath: j.ResultPath,
		IsPublic:   j.IsPublic,
		VisibleTo:  uuidStrings(j.VisibleTo),
		CreatedAt:  j.CreatedAt,
	}
}
