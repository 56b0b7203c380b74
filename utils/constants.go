package utils

import "time"

// SessionCachePrefix is the prefix of Redis keys holding stored lab sessions.
const SessionCachePrefix = "labSession:"

// SessionCacheTTL bounds how long a session without an expiry claim is kept.
const SessionCacheTTL = 24 * time.Hour
