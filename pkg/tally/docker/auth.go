/*
Copyright 2025 The Tally Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package docker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/distribution/reference"
	cliconfig "github.com/docker/cli/cli/config"
	"github.com/docker/cli/cli/config/configfile"
	"github.com/docker/docker/api/types/registry"
	dockerregistry "github.com/docker/docker/registry"

	"github.com/chronotools/tally/pkg/tally/output/log"
)

// DefaultAuthHelper is exposed so tests can override the docker
// credential resolution.
var DefaultAuthHelper AuthConfigHelper = credsHelper{}

// AuthConfigHelper resolves registry credentials from the docker CLI
// configuration, credential helpers included.
type AuthConfigHelper interface {
	GetAuthConfig(ctx context.Context, registryName string) (registry.AuthConfig, error)
	GetAllAuthConfigs(ctx context.Context) (map[string]registry.AuthConfig, error)
}

type credsHelper struct{}

var (
	configFileOnce sync.Once
	configFile     *configfile.ConfigFile
	configFileErr  error
)

func loadDockerConfig() (*configfile.ConfigFile, error) {
	configFileOnce.Do(func() {
		configFile, configFileErr = cliconfig.Load(cliconfig.Dir())
	})
	if configFileErr != nil {
		return nil, fmt.Errorf("loading docker config: %w", configFileErr)
	}
	return configFile, nil
}

func (credsHelper) GetAuthConfig(ctx context.Context, registryName string) (registry.AuthConfig, error) {
	cf, err := loadDockerConfig()
	if err != nil {
		return registry.AuthConfig{}, err
	}

	auth, err := cf.GetAuthConfig(registryName)
	if err != nil {
		return registry.AuthConfig{}, fmt.Errorf("getting auth config for %q: %w", registryName, err)
	}

	return registry.AuthConfig{
		Username:      auth.Username,
		Password:      auth.Password,
		Auth:          auth.Auth,
		Email:         auth.Email,
		ServerAddress: auth.ServerAddress,
		IdentityToken: auth.IdentityToken,
		RegistryToken: auth.RegistryToken,
	}, nil
}

func (h credsHelper) GetAllAuthConfigs(ctx context.Context) (map[string]registry.AuthConfig, error) {
	cf, err := loadDockerConfig()
	if err != nil {
		return nil, err
	}

	auths := make(map[string]registry.AuthConfig)
	for registryName := range cf.AuthConfigs {
		auth, err := h.GetAuthConfig(ctx, registryName)
		if err != nil {
			log.Entry(ctx).Debugf("ignoring credentials for %s: %v", registryName, err)
			continue
		}
		auths[registryName] = auth
	}
	for registryName := range cf.CredentialHelpers {
		auth, err := h.GetAuthConfig(ctx, registryName)
		if err != nil {
			log.Entry(ctx).Debugf("ignoring credentials for %s: %v", registryName, err)
			continue
		}
		auths[registryName] = auth
	}
	return auths, nil
}

func (l *localDaemon) encodedRegistryAuth(ctx context.Context, helper AuthConfigHelper, image string) (string, error) {
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return "", fmt.Errorf("parsing image name %q: %w", image, err)
	}

	repoInfo, err := dockerregistry.ParseRepositoryInfo(named)
	if err != nil {
		return "", fmt.Errorf("getting repository info: %w", err)
	}

	configKey := repoInfo.Index.Name
	if repoInfo.Index.Official {
		configKey = l.officialRegistry(ctx)
	}

	ac, err := helper.GetAuthConfig(ctx, configKey)
	if err != nil {
		return "", err
	}

	buf, err := json.Marshal(ac)
	if err != nil {
		return "", fmt.Errorf("marshaling auth config: %w", err)
	}

	return base64.URLEncoding.EncodeToString(buf), nil
}

// officialRegistry returns the daemon's index server, falling back to
// the default when the daemon can't be asked.
func (l *localDaemon) officialRegistry(ctx context.Context) string {
	info, err := l.apiClient.Info(ctx)
	if err != nil || info.IndexServerAddress == "" {
		log.Entry(ctx).Debugf("using default index server: %v", err)
		return dockerregistry.IndexServer
	}
	return info.IndexServerAddress
}
