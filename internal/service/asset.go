package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"capture-service/internal/access"
	"capture-service/internal/domain/asset"
	"capture-service/internal/media"
	"capture-service/internal/repository"
	apperrors "capture-service/pkg/errors"
	"capture-service/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	errAssetAccessDenied     = "access denied"
	errUnknownVariant        = "unknown asset variant"
	errManifestCameraCount   = "manifest must contain exactly one file per camera"
	errVisibilityNothingSet  = "no visibility changes requested"
	errVisibilityAdminOnly   = "only admins may edit the visibility list"
	errBackgroundRefVariant  = "background_id does not reference a background asset"
	errCalibrationRefVariant = "calibration_id does not reference a calibration asset"
)

// AssetService owns the asset upload lifecycle: creation with direct-upload
// authorizations, finalization, reconciliation against the object store, and
// deletion with storage cleanup.
type AssetService struct {
	assets repository.AssetRepository
	store  ObjectStore
	media  *media.Coordinator

	uploadExpiry time.Duration
	logger       *zap.Logger
}

func NewAssetService(assets repository.AssetRepository, store ObjectStore, coordinator *media.Coordinator, uploadExpiry time.Duration, logger *zap.Logger) *AssetService {
	return &AssetService{
		assets:       assets,
		store:        store,
		media:        coordinator,
		uploadExpiry: uploadExpiry,
		logger:       logger,
	}
}

// Create validates the manifest, allocates a fresh storage path, persists the
// record in `uploading`, and issues one scoped upload authorization per
// manifest entry, order-aligned with the manifest. A signing failure aborts
// the whole creation: the record is removed and no authorizations escape.
func (s *AssetService) Create(ctx context.Context, input asset.CreateAssetInput) (*asset.Asset, []asset.UploadAuthorization, error) {
	if !input.Variant.Valid() {
		return nil, nil, apperrors.Validation(errUnknownVariant)
	}
	if err := validator.Notes(input.Notes); err != nil {
		return nil, nil, apperrors.Validation(err.Error())
	}

	if input.Variant != asset.VariantCalibration {
		if err := validator.CameraCount(input.CameraCount); err != nil {
			return nil, nil, apperrors.Validation(err.Error())
		}
		if len(input.Manifest) != input.CameraCount {
			return nil, nil, apperrors.Validation(errManifestCameraCount)
		}
	}

	allowed := input.Variant.AllowedExtensions()
	contentTypes := make([]string, len(input.Manifest))
	for i, entry := range input.Manifest {
		if err := validator.FileName(entry.Name); err != nil {
			return nil, nil, apperrors.Validation(err.Error())
		}
		if err := validator.FileExtension(entry.Name, allowed); err != nil {
			return nil, nil, apperrors.Validation(err.Error())
		}
		ct, err := validator.SanitizeContentType(entry.ContentType)
		if err != nil {
			return nil, nil, apperrors.Validation(err.Error())
		}
		contentTypes[i] = ct
	}

	planned, err := asset.PlanFileNames(input.Variant, input.Manifest)
	if err != nil {
		return nil, nil, apperrors.Validation(err.Error())
	}

	if err := s.checkVideoReferences(ctx, input); err != nil {
		return nil, nil, err
	}

	id := uuid.New()
	now := time.Now().UTC()

	a := &asset.Asset{
		ID:                id,
		OwnerID:           input.OwnerID,
		Variant:           input.Variant,
		CameraCount:       input.CameraCount,
		Studio:            input.Studio,
		Producer:          input.Producer,
		Production:        input.Production,
		Action:            input.Action,
		PrimeCameraNumber: input.PrimeCameraNumber,
		Notes:             input.Notes,
		BackgroundID:      input.BackgroundID,
		CalibrationID:     input.CalibrationID,
		StoragePath:       fmt.Sprintf("%s/%s/%s", input.OwnerID, input.Variant, id),
		Status:            asset.StatusUploading,
		CreatedAt:         now,
	}

	for _, p := range planned {
		a.FileNames = append(a.FileNames, p.StoredName)
	}

	if input.Variant == asset.VariantVideo {
		md := s.media.Extract(ctx, "", hintToMetadata(input.MetadataHint))
		a.FrameCount = md.FrameCount
		a.FrameRate = md.FrameRate
		a.FrameWidth = md.Width
		a.FrameHeight = md.Height
		a.VideoFormat = md.Format
		a.MetadataDefaulted = md.Defaulted
	}

	if err := s.assets.Create(ctx, a); err != nil {
		return nil, nil, err
	}

	auths := make([]asset.UploadAuthorization, 0, len(planned))
	for i, p := range planned {
		key := a.StoragePath + "/" + p.StoredName
		url, err := s.store.PresignUpload(ctx, key, contentTypes[i], s.uploadExpiry)
		if err != nil {
			// The record is useless without its upload credentials; undo
			// creation so the client can retry from scratch.
			if delErr := s.assets.Delete(ctx, a.ID); delErr != nil {
				s.logger.Error("failed to clean up asset after signing failure",
					zap.String("asset_id", a.ID.String()),
					zap.Error(delErr))
			}
			return nil, nil, apperrors.ExternalService("failed to authorize upload", err)
		}
		auths = append(auths, asset.UploadAuthorization{
			FileName:    p.OriginalName,
			ObjectKey:   key,
			UploadURL:   url,
			ContentType: contentTypes[i],
			ExpiresAt:   now.Add(s.uploadExpiry),
		})
	}

	return a, auths, nil
}

// Finalize moves an uploading asset to its terminal outcome. The transition
// is a compare-and-swap in the repository, so concurrent finalize calls
// resolve to exactly one winner; the loser gets InvalidState.
func (s *AssetService) Finalize(ctx context.Context, id uuid.UUID, caller access.Caller, outcome asset.Status) (*asset.Asset, error) {
	if !outcome.Terminal() {
		return nil, apperrors.Validation("finalize outcome must be ready or failed")
	}

	a, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanModify(a.OwnerID, caller) {
		return nil, apperrors.Forbidden(errAssetAccessDenied)
	}

	if err := s.assets.TransitionStatus(ctx, id, asset.StatusUploading, outcome); err != nil {
		return nil, err
	}

	switch outcome {
	case asset.StatusFailed:
		s.cleanupPrefix(ctx, a.StoragePath)
	case asset.StatusReady:
		s.refreshMetadata(ctx, a)
	}

	a.Status = outcome
	return a, nil
}

// Reconcile verifies the upload against the object store instead of trusting
// the client's claim of success: every expected object key must exist under
// the storage path for the asset to become ready. A terminal asset is
// returned unchanged.
func (s *AssetService) Reconcile(ctx context.Context, id uuid.UUID, caller access.Caller) (*asset.Asset, error) {
	a, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanModify(a.OwnerID, caller) {
		return nil, apperrors.Forbidden(errAssetAccessDenied)
	}
	if a.Status.Terminal() {
		return a, nil
	}

	keys, err := s.store.ListKeys(ctx, a.StoragePath+"/")
	if err != nil {
		return nil, apperrors.ExternalService("failed to list uploaded objects", err)
	}

	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}

	outcome := asset.StatusReady
	for _, name := range a.FileNames {
		if !present[a.StoragePath+"/"+name] {
			outcome = asset.StatusFailed
			break
		}
	}

	if err := s.assets.TransitionStatus(ctx, id, asset.StatusUploading, outcome); err != nil {
		return nil, err
	}

	switch outcome {
	case asset.StatusFailed:
		s.cleanupPrefix(ctx, a.StoragePath)
	case asset.StatusReady:
		s.refreshMetadata(ctx, a)
	}

	a.Status = outcome
	return a, nil
}

func (s *AssetService) Get(ctx context.Context, id uuid.UUID, caller access.Caller) (*asset.Asset, error) {
	a, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanView(a.OwnerID, a.IsPublic, a.VisibleTo, caller) {
		return nil, apperrors.Forbidden(errAssetAccessDenied)
	}
	return a, nil
}

func (s *AssetService) List(ctx context.Context, variant asset.Variant, caller access.Caller) ([]*asset.Asset, error) {
	if !variant.Valid() {
		return nil, apperrors.Validation(errUnknownVariant)
	}
	return s.assets.ListVisibleTo(ctx, variant, caller.ID, caller.IsAdmin)
}

// UpdateVisibility applies the asymmetric write rules: owners may toggle
// is_public on their own records, but the explicit allow-list is an
// administrative control.
func (s *AssetService) UpdateVisibility(ctx context.Context, id uuid.UUID, caller access.Caller, input asset.UpdateVisibilityInput) (*asset.Asset, error) {
	if input.IsPublic == nil && input.VisibleTo == nil {
		return nil, apperrors.Validation(errVisibilityNothingSet)
	}
	if input.VisibleTo != nil && !caller.IsAdmin {
		return nil, apperrors.Forbidden(errVisibilityAdminOnly)
	}

	a, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.IsPublic != nil && !access.CanModify(a.OwnerID, caller) {
		return nil, apperrors.Forbidden(errAssetAccessDenied)
	}

	if err := s.assets.UpdateVisibility(ctx, id, input); err != nil {
		return nil, err
	}

	return s.assets.GetByID(ctx, id)
}

// Delete removes the record and then clears the storage prefix best-effort;
// a storage failure leaves orphaned objects, not a dangling record.
func (s *AssetService) Delete(ctx context.Context, id uuid.UUID, caller access.Caller) error {
	a, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !access.CanModify(a.OwnerID, caller) {
		return apperrors.Forbidden(errAssetAccessDenied)
	}

	if err := s.assets.Delete(ctx, id); err != nil {
		return err
	}

	s.cleanupPrefix(ctx, a.StoragePath)
	return nil
}

func (s *AssetService) checkVideoReferences(ctx context.Context, input asset.CreateAssetInput) error {
	if input.Variant != asset.VariantVideo {
		return nil
	}

	if input.BackgroundID != nil {
		ref, err := s.assets.GetByID(ctx, *input.BackgroundID)
		if err != nil {
			return err
		}
		if ref.Variant != asset.VariantBackground {
			return apperrors.Validation(errBackgroundRefVariant)
		}
	}

	if input.CalibrationID != nil {
		ref, err := s.assets.GetByID(ctx, *input.CalibrationID)
		if err != nil {
			return err
		}
		if ref.Variant != asset.VariantCalibration {
			return apperrors.Validation(errCalibrationRefVariant)
		}
	}

	return nil
}

// refreshMetadata re-probes a video whose metadata came from the fallback
// defaults. The prime camera's object is pulled down to a temp file for the
// local prober chain; any failure along the way leaves the defaulted values
// in place for a later pass.
func (s *AssetService) refreshMetadata(ctx context.Context, a *asset.Asset) {
	if a.Variant != asset.VariantVideo || !a.MetadataDefaulted || len(a.FileNames) == 0 {
		return
	}

	name := primeFileName(a)
	body, err := s.store.GetObject(ctx, a.StoragePath+"/"+name)
	if err != nil {
		s.logger.Warn("failed to fetch video for metadata probe",
			zap.String("asset_id", a.ID.String()),
			zap.Error(err))
		return
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "capture-probe-*"+path.Ext(name))
	if err != nil {
		s.logger.Warn("failed to create probe scratch file", zap.Error(err))
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		s.logger.Warn("failed to spool video for metadata probe",
			zap.String("asset_id", a.ID.String()),
			zap.Error(err))
		return
	}
	if err := tmp.Close(); err != nil {
		s.logger.Warn("failed to flush probe scratch file", zap.Error(err))
		return
	}

	md := s.media.Extract(ctx, tmp.Name(), nil)
	if md.Defaulted {
		return
	}

	if err := s.assets.UpdateMediaMetadata(ctx, a.ID, md.FrameCount, md.FrameRate, md.Width, md.Height, md.Format, false); err != nil {
		s.logger.Warn("failed to persist probed metadata",
			zap.String("asset_id", a.ID.String()),
			zap.Error(err))
		return
	}

	a.FrameCount = md.FrameCount
	a.FrameRate = md.FrameRate
	a.FrameWidth = md.Width
	a.FrameHeight = md.Height
	a.VideoFormat = md.Format
	a.MetadataDefaulted = false
}

// primeFileName picks the stored file to probe: the prime camera's when the
// manifest has one, otherwise the first canonical file.
func primeFileName(a *asset.Asset) string {
	prefix := fmt.Sprintf("cam_%d.", a.PrimeCameraNumber)
	for _, name := range a.FileNames {
		if strings.HasPrefix(name, prefix) {
			return name
		}
	}
	return a.FileNames[0]
}

func (s *AssetService) cleanupPrefix(ctx context.Context, prefix string) {
	if err := s.store.DeletePrefix(ctx, prefix); err != nil {
		s.logger.Warn("failed to clean up storage prefix",
			zap.String("prefix", prefix),
			zap.Error(err))
	}
}

func hintToMetadata(hint *asset.MetadataHint) *media.Metadata {
	if hint == nil {
		return nil
	}
	return &media.Metadata{
		Duration:  hint.Duration,
		Width:     hint.Width,
		Height:    hint.Height,
		FrameRate: hint.FrameRate,
		Format:    hint.Format,
	}
}
