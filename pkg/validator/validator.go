package validator

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

const (
	minEmailLength    = 3
	maxEmailLength    = 255
	minPasswordLength = 8
	maxPasswordLength = 128
	maxFileNameLen    = 255
	maxContentTypeLen = 255
	maxNotesLen       = 4096
	maxCameraCount    = 64
	asciiControlStart = 32
	asciiDelete       = 127

	errEmailEmptyFmt           = "email cannot be empty"
	errEmailLengthFmt          = "email must be between %d and %d characters"
	errEmailInvalidFmt         = "invalid email format"
	errPasswordMinLengthFmt    = "password must be at least %d characters"
	errPasswordMaxLengthFmt    = "password must not exceed %d characters"
	errFileNameEmptyFmt        = "file name cannot be empty"
	errFileNameMaxLengthFmt    = "file name must not exceed %d characters"
	errFileNamePathSepFmt      = "file name cannot contain path separators"
	errFileNameControlCharsFmt = "file name cannot contain control characters"
	errFileNameNoExtensionFmt  = "file name must have an extension"
	errExtensionNotAllowedFmt  = "file extension %q is not allowed, expected one of %v"
	errContentTypeMaxLengthFmt = "content type must not exceed %d characters"
	errContentTypeInvalidFmt   = "invalid content type"
	errNotesMaxLengthFmt       = "notes must not exceed %d characters"
	errCameraCountRangeFmt     = "camera count must be between 1 and %d"
)

func Email(email string) error {
	if email == "" {
		return fmt.Errorf(errEmailEmptyFmt)
	}

	if len(email) < minEmailLength || len(email) > maxEmailLength {
		return fmt.Errorf(errEmailLengthFmt, minEmailLength, maxEmailLength)
	}

	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at:], ".") {
		return fmt.Errorf(errEmailInvalidFmt)
	}

	return nil
}

func Password(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf(errPasswordMinLengthFmt, minPasswordLength)
	}

	if len(password) > maxPasswordLength {
		return fmt.Errorf(errPasswordMaxLengthFmt, maxPasswordLength)
	}

	return nil
}

func FileName(name string) error {
	if name == "" {
		return fmt.Errorf(errFileNameEmptyFmt)
	}

	if len(name) > maxFileNameLen {
		return fmt.Errorf(errFileNameMaxLengthFmt, maxFileNameLen)
	}

	if strings.Contains(name, "..") || strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return fmt.Errorf(errFileNamePathSepFmt)
	}

	for _, char := range name {
		if char < asciiControlStart || char == asciiDelete {
			return fmt.Errorf(errFileNameControlCharsFmt)
		}
	}

	return nil
}

// FileExtension checks the file's extension against an allow-list. The
// comparison is case-insensitive and the list entries carry no leading dot.
func FileExtension(name string, allowed []string) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return fmt.Errorf(errFileNameNoExtensionFmt)
	}

	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}

	return fmt.Errorf(errExtensionNotAllowedFmt, ext, allowed)
}

// SanitizeContentType parses and normalizes a declared content type,
// rejecting anything that does not parse as a media type.
func SanitizeContentType(contentType string) (string, error) {
	if contentType == "" {
		return "application/octet-stream", nil
	}

	if len(contentType) > maxContentTypeLen {
		return "", fmt.Errorf(errContentTypeMaxLengthFmt, maxContentTypeLen)
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf(errContentTypeInvalidFmt)
	}

	return mediaType, nil
}

func Notes(notes string) error {
	if len(notes) > maxNotesLen {
		return fmt.Errorf(errNotesMaxLengthFmt, maxNotesLen)
	}
	return nil
}

func CameraCount(count int) error {
	if count < 1 || count > maxCameraCount {
		return fmt.Errorf(errCameraCountRangeFmt, maxCameraCount)
	}
	return nil
}
