package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	hostEnvVar       = "HOST"
	portEnvVar       = "PORT"
	baseURLVar       = "BASE_URL"
	verboseVar       = "VERBOSE"
	cookieNameVar    = "SESSION_COOKIE_NAME"
	maxAgeVar        = "SESSION_MAX_AGE"
	sessionTTLVar    = "SESSION_TTL"
	strategyVar      = "AUTH_STRATEGY"
	redisAddrVar     = "REDIS_ADDR"
	oauthFileVar     = "MSOAUTH_CONFIG"
	oauthClientIDVar = "MSOAUTH_CLIENT_ID"
	oauthTenantVar   = "MSOAUTH_TENANT"
	oauthScopesVar   = "MSOAUTH_SCOPES"
)

const (
	defaultCookieName = "session"
	defaultMaxAge     = 8 * time.Hour
	defaultTenant     = "common"
	defaultScopes     = "User.Read"
)

// ServerConfig covers process-level settings.
type ServerConfig interface {
	GetHost() string
	GetPort() string
	GetBaseURL() string
	GetVerbose() bool
	GetRedisAddr() string
}

// SessionConfig covers the cookie contract and server-side retention.
type SessionConfig interface {
	GetSessionCookieName() string
	GetSessionMaxAge() time.Duration
	GetSessionTTL() time.Duration
}

// EnvVars backs the config interfaces with environment variables.
type EnvVars struct{}

var _ ServerConfig = EnvVars{}
var _ SessionConfig = EnvVars{}

func (EnvVars) GetHost() string {
	return GetEnv(hostEnvVar, "localhost")
}

func (e EnvVars) GetPort() string {
	return GetEnv(portEnvVar, "8000")
}

// GetBaseURL is the externally visible base URL used for redirect URIs.
func (e EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, fmt.Sprintf("http://%s:%s", e.GetHost(), e.GetPort()))
}

func (EnvVars) GetVerbose() bool {
	v := GetEnv(verboseVar, "")
	return v == "1" || v == "true"
}

// GetRedisAddr enables the Redis session store when non-empty.
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "")
}

func (EnvVars) GetSessionCookieName() string {
	return GetEnv(cookieNameVar, defaultCookieName)
}

// GetSessionMaxAge is the sliding cookie max-age. Default 8 hours.
func (EnvVars) GetSessionMaxAge() time.Duration {
	return getDurationSeconds(maxAgeVar, defaultMaxAge)
}

// GetSessionTTL bounds server-side retention of idle sessions. Zero disables
// eviction.
func (EnvVars) GetSessionTTL() time.Duration {
	return getDurationSeconds(sessionTTLVar, 0)
}

// GetAuthStrategy selects the authentication strategy: "msft" or "none".
func (EnvVars) GetAuthStrategy() string {
	return GetEnv(strategyVar, "msft")
}

// GetOAuthFilePath locates the local OAuth deployment file.
func (EnvVars) GetOAuthFilePath() string {
	return GetEnv(oauthFileVar, "msoauth.yaml")
}

func getDurationSeconds(envVar string, fallback time.Duration) time.Duration {
	raw := os.Getenv(envVar)
	if raw == "" {
		return fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// GetEnv reads an environment variable with a default.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
