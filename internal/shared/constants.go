package shared

import "time"

// HTTP Client Configuration
const (
	DefaultConnectTimeout   = 10 * time.Second
	DefaultIdleChunkTimeout = 30 * time.Second
	DefaultShutdownTimeout  = 10 * time.Minute
)

// Cache Configuration
const (
	UserInfoCacheTTL   = 1 * time.Minute
	CredentialCacheTTL = 5 * time.Minute
)

// Session Configuration
const (
	SessionCookieName = "session_token"
	SessionKeyPrefix  = "v1:session:"
)

// Routing Configuration
const (
	AdminPathPrefix = "/admin"
	SignInPath      = "/login"
	DefaultLocale   = "en"
)

// Bucket Configuration
const (
	BucketFlushInterval = 1 * time.Minute
	BucketRetryDelay    = 30 * time.Second
	MaxFlushRetries     = 3
)
