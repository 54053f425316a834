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
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/docker/cli/cli/connhelper"
	"github.com/docker/docker/client"

	"github.com/chronotools/tally/pkg/tally/version"
)

// For testing
var NewAPIClient = NewAPIClientImpl

var (
	apiClientOnce sync.Once
	apiClient     LocalDaemon
	apiClientErr  error
)

// NewAPIClientImpl returns a LocalDaemon backed by the environment's
// docker endpoint. The client is created once and shared.
func NewAPIClientImpl(ctx context.Context, forceRemove bool, insecureRegistries map[string]bool) (LocalDaemon, error) {
	apiClientOnce.Do(func() {
		cli, err := newEnvAPIClient()
		apiClient = NewLocalDaemon(cli, forceRemove, insecureRegistries)
		apiClientErr = err
	})

	return apiClient, apiClientErr
}

// newEnvAPIClient returns a docker client based on the environment
// variables set. It negotiates the highest possible API version
// supported by both the client and the server if there is a mismatch.
func newEnvAPIClient() (client.CommonAPIClient, error) {
	opts := []client.Opt{client.FromEnv, client.WithHTTPHeaders(getUserAgentHeader())}
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		helper, err := connhelper.GetConnectionHelper(host)
		if err == nil && helper != nil {
			httpClient := &http.Client{
				Transport: &http.Transport{
					DialContext: helper.Dialer,
				},
			}
			opts = []client.Opt{
				client.WithHTTPHeaders(getUserAgentHeader()),
				client.WithHTTPClient(httpClient),
				client.WithHost(helper.Host),
			}
		}
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("getting docker client: %w", err)
	}
	cli.NegotiateAPIVersion(context.Background())

	return cli, nil
}

func getUserAgentHeader() map[string]string {
	return map[string]string{
		"User-Agent": version.UserAgent(),
	}
}
