package config

// Config is the full configuration surface of the sessioned server,
// composed from the concerns below.
type Config interface {
	ServerConfig
	SessionConfig
	OAuthConfig
}

type mainConfig struct {
	EnvVars
	oauthSettings OAuthFile
}

// New builds the default configuration: environment variables layered over
// the local OAuth deployment file (if one exists).
func New() (Config, error) {
	settings, err := LoadOAuthFile(EnvVars{}.GetOAuthFilePath())
	if err != nil {
		return nil, err
	}
	return mainConfig{oauthSettings: settings}, nil
}

// GetOAuthClientID prefers the environment, then the deployment file.
func (c mainConfig) GetOAuthClientID() string {
	return GetEnv(oauthClientIDVar, c.oauthSettings.ClientID)
}

// GetOAuthTenant prefers the environment, then the file, then "common".
func (c mainConfig) GetOAuthTenant() string {
	return GetEnv(oauthTenantVar, withDefault(c.oauthSettings.Tenant, defaultTenant))
}

// GetOAuthScopes prefers the environment, then the file, then "User.Read".
func (c mainConfig) GetOAuthScopes() string {
	return GetEnv(oauthScopesVar, withDefault(c.oauthSettings.Scopes, defaultScopes))
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
