// Package validator performs structural checks on uploaded image files
// before they reach the OCR provider.
//
// Checks run in a fixed order: size, filename extension, magic-byte MIME
// sniffing, then image decodability. The declared Content-Type of the upload
// is never trusted; the sniffed type decides.
package validator

import (
	"bytes"
	"image"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	// Decoders for the formats deployments may allow-list.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"ocrapi/internal/apperr"
	"ocrapi/internal/logger"
)

// UploadedFile is one uploaded image, transient to a single pipeline call.
type UploadedFile struct {
	Filename         string
	DeclaredMimeType string
	Reader           io.ReadSeeker
}

// Outcome is emitted only after all validation checks pass.
type Outcome struct {
	Content  []byte
	Width    int
	Height   int
	MimeType string
}

// Validator validates uploaded image files against configured limits.
type Validator struct {
	maxSizeBytes      int
	maxSizeMB         int
	allowedExtensions map[string]bool
	allowedMimeTypes  map[string]bool
	extensionList     []string
	mimeTypeList      []string
	log               zerolog.Logger
}

// New creates a Validator. Extension and MIME allow-lists are matched
// case-insensitively.
func New(maxSizeMB int, allowedExtensions, allowedMimeTypes []string) *Validator {
	v := &Validator{
		maxSizeBytes:      maxSizeMB * 1024 * 1024,
		maxSizeMB:         maxSizeMB,
		allowedExtensions: make(map[string]bool, len(allowedExtensions)),
		allowedMimeTypes:  make(map[string]bool, len(allowedMimeTypes)),
		extensionList:     allowedExtensions,
		mimeTypeList:      allowedMimeTypes,
		log:               logger.WithComponent("validator"),
	}
	for _, ext := range allowedExtensions {
		v.allowedExtensions[strings.ToLower(ext)] = true
	}
	for _, mt := range allowedMimeTypes {
		v.allowedMimeTypes[strings.ToLower(mt)] = true
	}
	return v
}

// Validate reads the whole file, runs all checks, and restores the read
// position to the start so the same handle can be reused downstream.
func (v *Validator) Validate(file UploadedFile) (*Outcome, error) {
	content, err := io.ReadAll(file.Reader)
	if err != nil {
		return nil, apperr.InvalidFile("file could not be read")
	}
	if _, err := file.Reader.Seek(0, io.SeekStart); err != nil {
		return nil, apperr.InvalidFile("file could not be rewound")
	}

	if len(content) > v.maxSizeBytes {
		v.log.Warn().
			Int("file_size", len(content)).
			Int("max_size", v.maxSizeBytes).
			Str("filename", file.Filename).
			Msg("File too large")
		return nil, apperr.FileTooLarge(v.maxSizeMB, len(content))
	}

	extension := extractExtension(file.Filename)
	if !v.allowedExtensions[extension] {
		v.log.Warn().
			Str("extension", extension).
			Str("allowed", apperr.FormatAllowed(v.extensionList)).
			Msg("Unsupported file extension")
		return nil, apperr.UnsupportedFileType(extension, v.extensionList)
	}

	// The extension check alone is not enough: a disallowed payload renamed
	// to an allowed extension must still be rejected. Sniffed types for text
	// payloads carry a charset parameter, so compare the bare media type.
	sniffed, _, _ := strings.Cut(mimetype.Detect(content).String(), ";")
	sniffed = strings.ToLower(strings.TrimSpace(sniffed))
	if !v.allowedMimeTypes[sniffed] {
		v.log.Warn().
			Str("mime_type", sniffed).
			Str("allowed", apperr.FormatAllowed(v.mimeTypeList)).
			Msg("Unsupported MIME type")
		return nil, apperr.UnsupportedFileType(sniffed, v.mimeTypeList)
	}

	// Integrity pass: a full decode catches truncated or corrupt data that
	// header sniffing cannot.
	if _, _, err := image.Decode(bytes.NewReader(content)); err != nil {
		v.log.Error().Err(err).Str("filename", file.Filename).Msg("Invalid image file")
		return nil, apperr.InvalidFile("File appears to be corrupted or not a valid image")
	}

	// Second decode for dimensions, from a fresh reader.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		v.log.Error().Err(err).Str("filename", file.Filename).Msg("Failed to read image dimensions")
		return nil, apperr.InvalidFile("File appears to be corrupted or not a valid image")
	}

	v.log.Debug().
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Str("mime_type", sniffed).
		Int("file_size", len(content)).
		Msg("Image validated")

	return &Outcome{
		Content:  content,
		Width:    cfg.Width,
		Height:   cfg.Height,
		MimeType: sniffed,
	}, nil
}

// extractExtension returns the lowercase substring after the last dot, or ""
// when the filename has none.
func extractExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}
