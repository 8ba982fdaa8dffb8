package postgres

import (
	"context"
	"fmt"

	"capture-service/internal/domain/asset"
	apperrors "capture-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const assetColumns = `
	id, owner_id, variant, camera_count,
	studio, producer, production, action, prime_camera_number, notes,
	background_id, calibration_id,
	frame_count, frame_rate, frame_width, frame_height, video_format, metadata_defaulted,
	storage_path, file_names, status, is_public, visible_to, created_at
`

type AssetRepository struct {
	db *DB
}

func NewAssetRepository(db *DB) *AssetRepository {
	return &AssetRepository{db: db}
}

func (r *AssetRepository) Create(ctx context.Context, a *asset.Asset) error {
	query := `
		INSERT INTO assets (
			id, owner_id, variant, camera_count,
			studio, producer, production, action, prime_camera_number, notes,
			background_id, calibration_id,
			frame_count, frame_rate, frame_width, frame_height, video_format, metadata_defaulted,
			storage_path, file_names, status, is_public, visible_to, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24
		)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		a.ID, a.OwnerID, a.Variant, a.CameraCount,
		a.Studio, a.Producer, a.Production, a.Action, a.PrimeCameraNumber, a.Notes,
		a.BackgroundID, a.CalibrationID,
		a.FrameCount, a.FrameRate, a.FrameWidth, a.FrameHeight, a.VideoFormat, a.MetadataDefaulted,
		a.StoragePath, a.FileNames, a.Status, a.IsPublic, uuidsToStrings(a.VisibleTo), a.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("asset storage path already allocated")
		}
		return errFailedCreateAsset(err)
	}

	return nil
}

func (r *AssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, id))
}

// ListVisibleTo returns assets of the variant the caller may read. Admins
// see everything; everyone else sees owned, public, or allow-listed rows.
func (r *AssetRepository) ListVisibleTo(ctx context.Context, variant asset.Variant, callerID uuid.UUID, isAdmin bool) ([]*asset.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE variant = $1`
	args := []interface{}{variant}

	if !isAdmin {
		query += ` AND (owner_id = $2 OR is_public OR $3 = ANY(visible_to))`
		args = append(args, callerID, callerID.String())
	}

	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errFailedListAssets(err)
	}
	defer rows.Close()

	var assets []*asset.Asset
	for rows.Next() {
		a, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}

	return assets, rows.Err()
}

// TransitionStatus moves the asset from one status to another atomically.
// The WHERE predicate is the compare-and-swap that serializes concurrent
// finalize calls; zero rows affected means the asset was not in `from`.
func (r *AssetRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to asset.Status) error {
	query := `UPDATE assets SET status = $3 WHERE id = $1 AND status = $2`

	result, err := r.db.Pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return errFailedUpdateAsset(err)
	}

	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return apperrors.InvalidState("asset is not in " + string(from) + " state")
	}

	return nil
}

func (r *AssetRepository) UpdateMediaMetadata(ctx context.Context, id uuid.UUID, frameCount int, frameRate float64, width, height int, format string, defaulted bool) error {
	query := `
		UPDATE assets
		SET frame_count = $2, frame_rate = $3, frame_width = $4, frame_height = $5,
		    video_format = $6, metadata_defaulted = $7
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, id, frameCount, frameRate, width, height, format, defaulted)
	if err != nil {
		return errFailedUpdateAssetMedia(err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NotFound(errAssetNotFound)
	}

	return nil
}

func (r *AssetRepository) UpdateVisibility(ctx context.Context, id uuid.UUID, input asset.UpdateVisibilityInput) error {
	query := `UPDATE assets SET id = id`
	args := []interface{}{id}
	argCount := 1

	if input.IsPublic != nil {
		argCount++
		query += fmt.Sprintf(", is_public = $%d", argCount)
		args = append(args, *input.IsPublic)
	}

	if input.VisibleTo != nil {
		argCount++
		query += fmt.Sprintf(", visible_to = $%d", argCount)
		args = append(args, uuidsToStrings(*input.VisibleTo))
	}

	query += ` WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return errFailedUpdateVisibility(err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NotFound(errAssetNotFound)
	}

	return nil
}

func (r *AssetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return errFailedDeleteAsset(err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NotFound(errAssetNotFound)
	}

	return nil
}

func (r *AssetRepository) scanOne(row pgx.Row) (*asset.Asset, error) {
	a := &asset.Asset{}
	var visibleTo []string

	err := row.Scan(
		&a.ID, &a.OwnerID, &a.Variant, &a.CameraCount,
		&a.Studio, &a.Producer, &a.Production, &a.Action, &a.PrimeCameraNumber, &a.Notes,
		&a.BackgroundID, &a.CalibrationID,
		&a.FrameCount, &a.FrameRate, &a.FrameWidth, &a.FrameHeight, &a.VideoFormat, &a.MetadataDefaulted,
		&a.StoragePath, &a.FileNames, &a.Status, &a.IsPublic, &visibleTo, &a.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFound(errAssetNotFound)
		}
		return nil, errFailedScanAsset(err)
	}

	a.VisibleTo = stringsToUUIDs(visibleTo)
	return a, nil
}
