package asset

import (
	"time"

	"github.com/google/uuid"
)

// Variant distinguishes the three asset kinds that share the upload lifecycle.
type Variant string

const (
	VariantVideo       Variant = "video"
	VariantBackground  Variant = "background"
	VariantCalibration Variant = "calibration"
)

// Status values for the upload lifecycle. `ready` and `failed` are terminal;
// a failed asset is deleted and recreated, never resurrected.
type Status string

const (
	StatusUploading Status = "uploading"
	StatusReady     Status = "ready"
	StatusFailed    Status = "failed"
)

// Asset is a Video, Background, or Calibration record. All variants share
// one table; the variant tag decides which descriptive fields are
// meaningful.
type Asset struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Variant     Variant
	CameraCount int

	// Video descriptive fields.
	Studio            string
	Producer          string
	Production        string
	Action            string
	PrimeCameraNumber int

	// Background / Calibration free-form notes.
	Notes string

	// Video assets reference the background and calibration captured with
	// the same rig. Nil for the other variants.
	BackgroundID  *uuid.UUID
	CalibrationID *uuid.UUID

	// Video media metadata. Zero frame count and zero resolution are valid
	// "unknown" sentinels; MetadataDefaulted records that probing fell back.
	FrameCount        int
	FrameRate         float64
	FrameWidth        int
	FrameHeight       int
	VideoFormat       string
	MetadataDefaulted bool

	// StoragePath is the object-store key prefix, allocated exactly once at
	// creation and never reused.
	StoragePath string
	FileNames   []string

	Status    Status
	IsPublic  bool
	VisibleTo []uuid.UUID
	CreatedAt time.Time
}

// ManifestEntry declares one file the client intends to upload.
type ManifestEntry struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
}

type CreateAssetInput struct {
	OwnerID     uuid.UUID
	Variant     Variant
	CameraCount int

	Studio            string
	Producer          string
	Production        string
	Action            string
	PrimeCameraNumber int
	Notes             string

	BackgroundID  *uuid.UUID
	CalibrationID *uuid.UUID

	Manifest []ManifestEntry

	// MetadataHint carries the client's own container probe results, if any.
	MetadataHint *MetadataHint
}

// MetadataHint is what the client's first-pass probe observed. Browser
// media APIs are unreliable for some codecs, so these values are only
// trusted when complete.
type MetadataHint struct {
	Duration  float64 `json:"duration"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frame_rate"`
	Format    string  `json:"format"`
}

// UploadAuthorization is the scoped, time-boxed credential returned to the
// client for one direct upload, order-aligned with the manifest.
type UploadAuthorization struct {
	FileName    string    `json:"file_name"`
	ObjectKey   string    `json:"object_key"`
	UploadURL   string    `json:"upload_url"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type UpdateVisibilityInput struct {
	IsPublic  *bool
	VisibleTo *[]uuid.UUID
}

// AllowedExtensions returns the file extension allow-list for the variant,
// without the leading dot.
func (v Variant) AllowedExtensions() []string {
	switch v {
	case VariantVideo:
		return []string{"mp4", "ts"}
	case VariantBackground:
		return []string{"png", "jpg", "jpeg"}
	case VariantCalibration:
		return []string{"json", "txt"}
	default:
		return nil
	}
}

func (v Variant) Valid() bool {
	switch v {
	case VariantVideo, VariantBackground, VariantCalibration:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}
