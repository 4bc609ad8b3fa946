// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Output naming constants
const (
	// SwappedSuffix is appended to the target stem for every output artifact
	SwappedSuffix = "_swapped"

	// ImageOutputExt is the extension of swapped still images
	ImageOutputExt = ".jpg"

	// VideoOutputExt is the extension of swapped videos
	VideoOutputExt = ".mp4"

	// DefaultTargetName is used for an image target uploaded without a filename
	DefaultTargetName = "target.jpg"

	// SourceStem is the canonical stem of the staged source image
	SourceStem = "source"

	// FallbackStem replaces a target stem that normalizes to nothing
	FallbackStem = "target"
)

// Engine constants
const (
	// DefaultEnhanceModel is the only enhancement model offered to users
	DefaultEnhanceModel = "gpen_bfr_2048"

	// DefaultFaceLabel is the registry label used for a batch's source face
	DefaultFaceLabel = "source_face"
)

// Staging layout constants
const (
	// SourceDir holds the staged source image inside a workspace
	SourceDir = "source"

	// TargetDir holds the staged image target inside a workspace; video
	// targets get one numbered directory each so equal base names cannot clash
	TargetDir = "targets"

	// WorkspacePattern is the os.MkdirTemp pattern for staging workspaces
	WorkspacePattern = "face-swap-*"

	// UploadPattern is the os.MkdirTemp pattern for web upload spools
	UploadPattern = "face-swap-upload-*"
)

// Output constants
const (
	// DefaultJPEGQuality is used when the configuration does not set one
	DefaultJPEGQuality = 95

	// MaxVideoTargets caps the number of videos in one multi-video request
	MaxVideoTargets = 32
)
