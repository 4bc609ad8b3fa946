package swap

import (
	"net/http"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/kozaktomas/face-swap/internal/constants"
	"github.com/kozaktomas/face-swap/internal/staging"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// OutputName derives "{stem}_swapped{ext}" from a client-supplied target name.
// The stem is reduced to a base name, NFC-normalized and stripped of control
// characters, so equal inputs always give equal names.
func OutputName(targetName, ext string) string {
	return Stem(targetName) + constants.SwappedSuffix + ext
}

// Stem returns the normalized file name without directory or extension.
// A name that is only an extension, such as ".mp4", has no stem and gets
// FallbackStem so outputs never become hidden files.
func Stem(name string) string {
	base, err := staging.SanitizeName(name)
	if err != nil {
		return constants.FallbackStem
	}

	t := transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.Cc)))
	clean, _, err := transform.String(t, base)
	if err != nil {
		clean = base
	}

	stem := strings.TrimSpace(strings.TrimSuffix(clean, filepath.Ext(clean)))
	if stem == "" {
		return constants.FallbackStem
	}
	return stem
}

// sourceExt picks the staged source extension from the image magic bytes.
func sourceExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".jpg"
	}
}
