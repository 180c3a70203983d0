package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// OAuthConfig covers the identity-provider client settings.
type OAuthConfig interface {
	GetAuthStrategy() string
	GetOAuthClientID() string
	GetOAuthTenant() string
	GetOAuthScopes() string
}

// OAuthFile is the local deployment file holding provider client settings.
// The client identifier is deployment-specific and never hardcoded.
type OAuthFile struct {
	ClientID string `yaml:"client_id"`
	Tenant   string `yaml:"tenant"`
	Scopes   string `yaml:"scopes"`
}

// LoadOAuthFile reads the deployment file. A missing file is not an error;
// the server only fails later if the selected strategy needs a client ID and
// none was provided by any layer.
func LoadOAuthFile(path string) (OAuthFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return OAuthFile{}, nil
		}
		return OAuthFile{}, fmt.Errorf("[config LoadOAuthFile] read %s: %w", path, err)
	}

	var settings OAuthFile
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return OAuthFile{}, fmt.Errorf("[config LoadOAuthFile] parse %s: %w", path, err)
	}
	return settings, nil
}
