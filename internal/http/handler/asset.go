package handler

import (
	"net/http"
	"time"

	"capture-service/internal/audit"
	"capture-service/internal/auth"
	"capture-service/internal/domain/asset"
	"capture-service/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AssetHandler struct {
	assetService  *service.AssetService
	exportService *service.ExportService
	auditLogger   *audit.Logger
}

func NewAssetHandler(assetService *service.AssetService, exportService *service.ExportService, auditLogger *audit.Logger) *AssetHandler {
	return &AssetHandler{
		assetService:  assetService,
		exportService: exportService,
		auditLogger:   auditLogger,
	}
}

type ManifestEntryRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
}

type MetadataHintRequest struct {
	Duration  float64 `json:"duration"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frame_rate"`
	Format    string  `json:"format"`
}

type CreateAssetRequest struct {
	Variant           string                 `json:"variant"`
	CameraCount       int                    `json:"camera_count"`
	Studio            string                 `json:"studio"`
	Producer          string                 `json:"producer"`
	Production        string                 `json:"production"`
	Action            string                 `json:"action"`
	PrimeCameraNumber int                    `json:"prime_camera_number"`
	Notes             string                 `json:"notes"`
	BackgroundID      *string                `json:"background_id"`
	CalibrationID     *string                `json:"calibration_id"`
	Files             []ManifestEntryRequest `json:"files"`
	MetadataHint      *MetadataHintRequest   `json:"metadata_hint"`
}

type AssetResponse struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"owner_id"`
	Variant           string    `json:"variant"`
	CameraCount       int       `json:"camera_count"`
	Studio            string    `json:"studio,omitempty"`
	Producer          string    `json:"producer,omitempty"`
	Production        string    `json:"production,omitempty"`
	Action            string    `json:"action,omitempty"`
	PrimeCameraNumber int       `json:"prime_camera_number,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	BackgroundID      *string   `json:"background_id,omitempty"`
	CalibrationID     *string   `json:"calibration_id,omitempty"`
	FrameCount        int       `json:"frame_count"`
	FrameRate         float64   `json:"frame_rate"`
	FrameWidth        int       `json:"frame_width"`
	FrameHeight       int       `json:"frame_height"`
	VideoFormat       string    `json:"video_format,omitempty"`
	MetadataDefaulted bool      `json:"metadata_defaulted"`
	StoragePath       string    `json:"storage_path"`
	FileNames         []string  `json:"file_names"`
	Status            string    `json:"status"`
	IsPublic          bool      `json:"is_public"`
	VisibleTo         []string  `json:"visible_to"`
	CreatedAt         time.Time `json:"created_at"`
}

type CreateAssetResponse struct {
	Asset   AssetResponse               `json:"asset"`
	Uploads []asset.UploadAuthorization `json:"uploads"`
}

type VisibilityRequest struct {
	IsPublic  *bool     `json:"is_public"`
	VisibleTo *[]string `json:"visible_to"`
}

type DownloadArchiveRequest struct {
	Categories []string `json:"categories"`
}

func (h *AssetHandler) Create(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	var req CreateAssetRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	input := asset.CreateAssetInput{
		OwnerID:           caller.ID,
		Variant:           asset.Variant(req.Variant),
		CameraCount:       req.CameraCount,
		Studio:            req.Studio,
		Producer:          req.Producer,
		Production:        req.Production,
		Action:            req.Action,
		PrimeCameraNumber: req.PrimeCameraNumber,
		Notes:             req.Notes,
	}

	if input.BackgroundID, err = parseOptionalUUID(req.BackgroundID); err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidAssetID)
	}
	if input.CalibrationID, err = parseOptionalUUID(req.CalibrationID); err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidAssetID)
	}

	for _, f := range req.Files {
		input.Manifest = append(input.Manifest, asset.ManifestEntry{
			Name:        f.Name,
			ContentType: f.ContentType,
		})
	}

	if req.MetadataHint != nil {
		input.MetadataHint = &asset.MetadataHint{
			Duration:  req.MetadataHint.Duration,
			Width:     req.MetadataHint.Width,
			Height:    req.MetadataHint.Height,
			FrameRate: req.MetadataHint.FrameRate,
			Format:    req.MetadataHint.Format,
		}
	}

	a, uploads, err := h.assetService.Create(c.Request().Context(), input)
	if err != nil {
		return err
	}

	if h.auditLogger != nil {
		h.auditLogger.LogFromContext(c, audit.ResourceTypeAsset, &a.ID, audit.ActionCreate, audit.StatusSuccess, map[string]any{
			"variant":      a.Variant,
			"storage_path": a.StoragePath,
			"file_count":   len(a.FileNames),
		})
	}

	return c.JSON(http.StatusCreated, CreateAssetResponse{
		Asset:   toAssetResponse(a),
		Uploads: uploads,
	})
}

func (h *AssetHandler) List(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	variant := c.QueryParam(queryVariant)
	if variant == "" {
		return respondError(c, http.StatusBadRequest, msgVariantRequired)
	}

	assets, err := h.assetService.List(c.Request().Context(), asset.Variant(variant), caller)
	if err != nil {
		return err
	}

	out := make([]AssetResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, toAssetResponse(a))
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AssetHandler) Get(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidAssetID)
	}

	a, err := h.assetService.Get(c.Request().Context(), id, caller)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toAssetResponse(a))
}

func (h *AssetHandler) FinalizeReady(c echo.Context) error {
	return h.finalize(c, asset.StatusReady)
}

func (h *AssetHandler) FinalizeFailed(c echo.Context) error {
	return h.finalize(c, asset.StatusFailed)
}

func (h *AssetHandler) finalize(c echo.Context, outcome asset.Status) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidAssetID)
	}

	a, err := h.assetService.Finalize(c.Request().Context(), id, caller, outcome)
	if err != nil {
		return err
	}

	if h.auditLogger != nil {
		h.auditLogger.LogFromContext(c, audit.ResourceTypeAsset, &a.ID, audit.ActionFinalize, audit.StatusSuccess, map[string]any{
			"outcome": outcome,
		})
	}

	return c.JSON(http.StatusOK, toAssetResponse(a))
}

func (h *AssetHandler) Reconcile(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidAssetID)
	}

	a, err := h.assetService.Reconcile(c.Request().Context(), id, caller)
	if err != nil {
		return err
	}

	if h.auditLogger != nil {
		h.auditLogger.LogFromContext(c, audit.ResourceTypeAsset, &a.ID, audit.ActionReconcile, audit.StatusSuccess, map[string]any{
			"status": a.Status,
		})
	}

	return c.JSON(http.StatusOK, toAssetResponse(a))
}

func (h *AssetHandler) UpdateVisibility(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidAssetID)
	}

	var req VisibilityRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	input := asset.UpdateVisibilityInput{IsPublic: req.IsPublic}
	if req.VisibleTo != nil {
		ids, err := parseUUIDs(*req.VisibleTo)
		if err != nil {
			return respondError(c, http.StatusBadRequest, msgInvalidUserID)
		}
		input.VisibleTo = &ids
	}

	a, err := h.assetService.UpdateVisibility(c.Request().Context(), id, caller, input)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toAssetResponse(a))
}

func (h *AssetHandler) Delete(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidAssetID)
	}

	if err := h.assetService.Delete(c.Request().Context(), id, caller); err != nil {
		return err
	}

	if h.auditLogger != nil {
		h.auditLogger.LogFromContext(c, audit.ResourceTypeAsset, &id, audit.ActionDelete, audit.StatusSuccess, nil)
	}

	return respondMessage(c, http.StatusOK, "asset deleted")
}

// DownloadArchive streams a zip of the requested capture categories. All
// access checks and object listings happen before the first byte, so errors
// still produce a proper JSON response.
func (h *AssetHandler) DownloadArchive(c echo.Context) error {
	caller, err := auth.GetCaller(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return respondError(c, http.StatusBadRequest, msgInvalidAssetID)
	}

	var req DownloadArchiveRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	archive, err := h.exportService.PrepareArchive(c.Request().Context(), id, req.Categories, caller)
	if err != nil {
		return err
	}

	if h.auditLogger != nil {
		h.auditLogger.LogFromContext(c, audit.ResourceTypeAsset, &id, audit.ActionExport, audit.StatusSuccess, map[string]any{
			"categories": req.Categories,
			"file_name":  archive.FileName,
		})
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/zip")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+archive.FileName+`"`)
	c.Response().WriteHeader(http.StatusOK)

	return archive.WriteTo(c.Request().Context(), c.Response())
}

func toAssetResponse(a *asset.Asset) AssetResponse {
	resp := AssetResponse{
		ID:                a.ID.String(),
		OwnerID:           a.OwnerID.String(),
		Variant:           string(a.Variant),
		CameraCount:       a.CameraCount,
		Studio:            a.Studio,
		Producer:          a.Producer,
		Production:        a.Production,
		Action:            a.Action,
		PrimeCameraNumber: a.PrimeCameraNumber,
		Notes:             a.Notes,
		FrameCount:        a.FrameCount,
		FrameRate:         a.FrameRate,
		FrameWidth:        a.FrameWidth,
		FrameHeight:       a.FrameHeight,
		VideoFormat:       a.VideoFormat,
		MetadataDefaulted: a.MetadataDefaulted,
		StoragePath:       a.StoragePath,
		FileNames:         a.FileNames,
		Status:            string(a.Status),
		IsPublic:          a.IsPublic,
		VisibleTo:         uuidStrings(a.VisibleTo),
		CreatedAt:         a.CreatedAt,
	}

	if a.BackgroundID != nil {
		s := a.BackgroundID.String()
		resp.BackgroundID = &s
	}
	if a.CalibrationID != nil {
		s := a.CalibrationID.String()
		resp.CalibrationID = &s
	}

	return resp
}

func parseOptionalUUID(s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
