package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"capture-service/internal/access"
	"capture-service/internal/domain/asset"
	"capture-service/internal/repository"
	apperrors "capture-service/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	archiveStampLayout = "20060102_150405"

	errExportNoCategories  = "at least one export category is required"
	errExportNotVideo      = "archive export starts from a video asset"
	errExportNoBackground  = "video has no linked background asset"
	errExportNoCalibration = "video has no linked calibration asset"
	errExportUnknownCatFmt = "unknown export category %q"
	errExportListFailed    = "failed to list objects for export"
)

// ExportService assembles bulk zip downloads of a capture: the video files
// plus, on request, the background and calibration assets linked to it.
type ExportService struct {
	assets repository.AssetRepository
	store  ObjectStore
	logger *zap.Logger
}

func NewExportService(assets repository.AssetRepository, store ObjectStore, logger *zap.Logger) *ExportService {
	return &ExportService{assets: assets, store: store, logger: logger}
}

// Archive is a fully resolved export: every object key is known before the
// first byte is streamed, so access and listing failures surface as proper
// errors instead of a truncated download.
type Archive struct {
	// FileName is the suggested download name, `<stem>.zip`. The same stem
	// is the top-level directory inside the archive.
	FileName string

	stem    string
	store   ObjectStore
	entries []archiveEntry
}

type archiveEntry struct {
	objectKey   string
	archivePath string
}

// PrepareArchive resolves the requested categories against the video asset
// and its linked captures, and lists every object to include. Categories are
// any subset of video, background, calibration.
func (s *ExportService) PrepareArchive(ctx context.Context, videoID uuid.UUID, categories []string, caller access.Caller) (*Archive, error) {
	if len(categories) == 0 {
		return nil, apperrors.Validation(errExportNoCategories)
	}

	video, err := s.assets.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(video.OwnerID, video.IsPublic, video.VisibleTo, caller) {
		return nil, apperrors.Forbidden(errAssetAccessDenied)
	}
	if video.Variant != asset.VariantVideo {
		return nil, apperrors.Validation(errExportNotVideo)
	}

	stem := archiveStem(video, time.Now().UTC())
	archive := &Archive{
		FileName: stem + ".zip",
		stem:     stem,
		store:    s.store,
	}

	seen := make(map[string]bool, len(categories))
	for _, category := range categories {
		category = strings.ToLower(strings.TrimSpace(category))
		if seen[category] {
			continue
		}
		seen[category] = true

		prefix, err := s.categoryPrefix(ctx, video, category)
		if err != nil {
			return nil, err
		}

		keys, err := s.store.ListKeys(ctx, prefix+"/")
		if err != nil {
			return nil, apperrors.ExternalService(errExportListFailed, err)
		}

		for _, key := range keys {
			archive.entries = append(archive.entries, archiveEntry{
				objectKey:   key,
				archivePath: stem + "/" + category + "/" + path.Base(key),
			})
		}
	}

	return archive, nil
}

// categoryPrefix maps an export category onto the storage prefix holding its
// objects, following the video's background/calibration references.
func (s *ExportService) categoryPrefix(ctx context.Context, video *asset.Asset, category string) (string, error) {
	switch category {
	case string(asset.VariantVideo):
		return video.StoragePath, nil

	case string(asset.VariantBackground):
		if video.BackgroundID == nil {
			return "", apperrors.Precondition(errExportNoBackground)
		}
		ref, err := s.assets.GetByID(ctx, *video.BackgroundID)
		if err != nil {
			return "", err
		}
		return ref.StoragePath, nil

	case string(asset.VariantCalibration):
		if video.CalibrationID == nil {
			return "", apperrors.Precondition(errExportNoCalibration)
		}
		ref, err := s.assets.GetByID(ctx, *video.CalibrationID)
		if err != nil {
			return "", err
		}
		return ref.StoragePath, nil
	}

	return "", apperrors.Validation(fmt.Sprintf(errExportUnknownCatFmt, category))
}

// WriteTo streams the archive into w as a zip, fetching each object from the
// store in turn. Store mode keeps memory flat; the payloads are already
// compressed media.
func (a *Archive) WriteTo(ctx context.Context, w io.Writer) error {
	zw := zip.NewWriter(w)

	for _, entry := range a.entries {
		if err := a.writeEntry(ctx, zw, entry); err != nil {
			zw.Close()
			return err
		}
	}

	return zw.Close()
}

func (a *Archive) writeEntry(ctx context.Context, zw *zip.Writer, entry archiveEntry) error {
	body, err := a.store.GetObject(ctx, entry.objectKey)
	if err != nil {
		return apperrors.ExternalService(fmt.Sprintf("failed to fetch %s for export", entry.objectKey), err)
	}
	defer body.Close()

	header := &zip.FileHeader{
		Name:   entry.archivePath,
		Method: zip.Store,
	}
	header.SetMode(0o644)

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(dst, body)
	return err
}

// archiveStem builds the timestamped download stem. The production title is
// preferred when present; the asset id is the fallback.
func archiveStem(video *asset.Asset, now time.Time) string {
	base := sanitizeStem(video.Production)
	if base == "" {
		base = video.ID.String()
	}
	return base + "_" + now.Format(archiveStampLayout)
}

func sanitizeStem(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return b.String()
}
