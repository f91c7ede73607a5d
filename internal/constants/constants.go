// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching defaults, used when neither defaults.yaml nor the environment set them
const (
	// DefaultEmbeddingThreshold is the maximum euclidean distance accepted as a match
	DefaultEmbeddingThreshold = 0.6

	// DefaultVerificationThreshold is the maximum verifier distance accepted as a match
	DefaultVerificationThreshold = 0.4

	// DefaultSimilarK is the number of neighbors returned by the similar faces lookup
	DefaultSimilarK = 5

	// MaxSimilarK caps the k query parameter of the similar faces endpoint
	MaxSimilarK = 100
)

// Image processing constants
const (
	// DefaultMaxImageSize is the longest side (in pixels) an uploaded image is scaled down to
	DefaultMaxImageSize = 1600

	// JPEGQuality is used when re-encoding uploaded images as reference JPEGs
	JPEGQuality = 90
)

// HTTP constants
const (
	// MaxRequestBodyBytes caps JSON request bodies; images travel inline as base64
	MaxRequestBodyBytes = 32 << 20

	// DefaultWebPort is the port the API listens on unless WEB_PORT is set
	DefaultWebPort = 5000
)

// CLI constants
const (
	// DefaultImportConcurrency is the number of parallel registrations of the import command
	DefaultImportConcurrency = 4
)
