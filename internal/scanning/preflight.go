package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/heic"
)

// maxImageBytes caps uploads at 10 MiB, matching what the inference service
// accepts without resizing.
const maxImageBytes = 10 << 20

// allowedExtensions is the fixed upload allow-list.
var allowedExtensions = []string{".jpg", ".jpeg", ".png", ".heic"}

// CheckImageFile validates a receipt file on disk before any network call:
// it must exist, carry an allowed extension, stay under the size cap, and
// decode as an image. Any failure short-circuits the scan.
func CheckImageFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &ScanError{Kind: KindValidation, Err: fmt.Errorf("file not found: %s", path)}
	}
	if info.Size() > maxImageBytes {
		return &ScanError{Kind: KindValidation, Err: fmt.Errorf("file too large: %.1fMB > 10MB", float64(info.Size())/(1<<20))}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &ScanError{Kind: KindValidation, Err: fmt.Errorf("reading file: %w", err)}
	}
	return CheckImage(data, path)
}

// CheckImage validates already-read receipt bytes; filename supplies the
// extension to check against the allow-list.
func CheckImage(data []byte, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtension(ext) {
		return &ScanError{
			Kind: KindValidation,
			Err:  fmt.Errorf("unsupported image format %q (supported: %s)", ext, strings.Join(allowedExtensions, ", ")),
		}
	}
	if len(data) > maxImageBytes {
		return &ScanError{Kind: KindValidation, Err: fmt.Errorf("file too large: %.1fMB > 10MB", float64(len(data))/(1<<20))}
	}

	if err := decodeCheck(data); err != nil {
		return &ScanError{Kind: KindValidation, Err: fmt.Errorf("corrupt or undecodable image: %w", err)}
	}
	return nil
}

// decodeCheck confirms the bytes decode as an image. HEIC is outside the
// standard image package and gets its own decoder.
func decodeCheck(data []byte) error {
	if isHEICFormat(data) {
		_, err := heic.Decode(bytes.NewReader(data))
		return err
	}
	_, _, err := image.Decode(bytes.NewReader(data))
	return err
}

func allowedExtension(ext string) bool {
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
