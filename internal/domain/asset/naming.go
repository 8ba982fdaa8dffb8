package asset

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// CanonicalCalibrationStem is the fixed name a calibration file is stored
// under, keeping its original extension.
const CanonicalCalibrationStem = "calibration"

// PlannedFile pairs a manifest entry with the object name it will be stored
// under.
type PlannedFile struct {
	OriginalName string
	StoredName   string
	ContentType  string
}

// PlanFileNames maps a manifest onto deterministic stored names.
//
// Multi-file variants (video, background) are sorted by original filename
// and assigned positional names cam_1.<ext>, cam_2.<ext>, ... Downstream
// consumers index camera files by this position, so the sort must be stable
// and total. The calibration variant stores its single file under the fixed
// canonical name.
func PlanFileNames(variant Variant, manifest []ManifestEntry) ([]PlannedFile, error) {
	if len(manifest) == 0 {
		return nil, fmt.Errorf("file manifest cannot be empty")
	}

	if variant == VariantCalibration {
		if len(manifest) != 1 {
			return nil, fmt.Errorf("calibration manifest must contain exactly one file, got %d", len(manifest))
		}
		entry := manifest[0]
		ext := strings.ToLower(filepath.Ext(entry.Name))
		return []PlannedFile{{
			OriginalName: entry.Name,
			StoredName:   CanonicalCalibrationStem + ext,
			ContentType:  entry.ContentType,
		}}, nil
	}

	sorted := make([]ManifestEntry, len(manifest))
	copy(sorted, manifest)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	planned := make([]PlannedFile, len(sorted))
	for i, entry := range sorted {
		ext := strings.ToLower(filepath.Ext(entry.Name))
		planned[i] = PlannedFile{
			OriginalName: entry.Name,
			StoredName:   fmt.Sprintf("cam_%d%s", i+1, ext),
			ContentType:  entry.ContentType,
		}
	}

	return planned, nil
}
