package constants

import "time"

// Upload constants
const (
	// MaxUploadSize is the maximum multipart form size kept in memory (32 MB);
	// larger parts are spooled to disk by net/http
	MaxUploadSize = 32 << 20

	// MaxRequestBody caps the whole swap request body (4 GB of video)
	MaxRequestBody = 4 << 30
)

// Job constants
const (
	// EventChannelBuffer is the buffer size for SSE event channels
	EventChannelBuffer = 100

	// SSEKeepAlive is the interval between SSE comment pings
	SSEKeepAlive = 15 * time.Second

	// JobRetention is how long finished jobs stay queryable
	JobRetention = time.Hour
)
