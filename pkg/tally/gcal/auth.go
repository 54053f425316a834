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

package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"github.com/chronotools/tally/pkg/tally/config"
	"github.com/chronotools/tally/pkg/tally/output/log"
	"github.com/chronotools/tally/pkg/tally/util"
)

// Changing the scopes invalidates cached tokens. Users have to log in
// again.
var scopes = []string{calendar.CalendarReadonlyScope}

// Status describes the cached OAuth token.
type Status struct {
	TokenFile string
	LoggedIn  bool
	Valid     bool
	Expiry    time.Time
}

// Login runs the installed app OAuth flow and caches the resulting
// token. The redirect listener binds an ephemeral localhost port, like
// the usual Google client libraries.
func Login(ctx context.Context, out io.Writer, cfg *config.CalendarConfig) error {
	oauthCfg, err := oauthConfig(cfg)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("starting redirect listener: %w", err)
	}
	defer listener.Close()
	oauthCfg.RedirectURL = fmt.Sprintf("http://%s/", listener.Addr())

	state := util.RandomID()
	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Open the following link in your browser and authorize tally:\n\n%s\n\n", authURL)

	code, err := waitForCode(ctx, listener, state)
	if err != nil {
		return err
	}

	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	tokenFile, err := config.TokenFile(cfg)
	if err != nil {
		return err
	}
	if err := saveToken(tokenFile, token); err != nil {
		return err
	}
	fmt.Fprintf(out, "Token saved to %s\n", tokenFile)
	return nil
}

// TokenStatus reports whether a usable token is cached.
func TokenStatus(cfg *config.CalendarConfig) (Status, error) {
	tokenFile, err := config.TokenFile(cfg)
	if err != nil {
		return Status{}, err
	}

	status := Status{TokenFile: tokenFile}
	token, err := readToken(tokenFile)
	if os.IsNotExist(err) {
		return status, nil
	}
	if err != nil {
		return Status{}, err
	}

	status.LoggedIn = true
	status.Valid = token.Valid() || token.RefreshToken != ""
	status.Expiry = token.Expiry
	return status, nil
}

// Revoke deletes the cached token and returns its location.
func Revoke(cfg *config.CalendarConfig) (string, error) {
	tokenFile, err := config.TokenFile(cfg)
	if err != nil {
		return "", err
	}
	if err := os.Remove(tokenFile); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("removing token file: %w", err)
	}
	return tokenFile, nil
}

// tokenSource returns a token source backed by the cached token.
// Refreshed tokens are persisted back to the cache.
func tokenSource(ctx context.Context, cfg *config.CalendarConfig) (oauth2.TokenSource, error) {
	oauthCfg, err := oauthConfig(cfg)
	if err != nil {
		return nil, err
	}
	tokenFile, err := config.TokenFile(cfg)
	if err != nil {
		return nil, err
	}
	token, err := readToken(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("not logged in, run `tally auth login`: %w", err)
	}

	return &cachingTokenSource{
		file: tokenFile,
		base: oauthCfg.TokenSource(ctx, token),
		last: token,
	}, nil
}

type cachingTokenSource struct {
	file string
	base oauth2.TokenSource

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *cachingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || s.last.AccessToken != token.AccessToken {
		if err := saveToken(s.file, token); err != nil {
			log.Entry(context.TODO()).Warnf("Could not persist refreshed token: %v", err)
		}
		s.last = token
	}
	return token, nil
}

func oauthConfig(cfg *config.CalendarConfig) (*oauth2.Config, error) {
	credentialsFile, err := config.CredentialsFile(cfg)
	if err != nil {
		return nil, err
	}
	contents, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading OAuth client credentials, download them from the Google Cloud console to %q: %w", credentialsFile, err)
	}
	oauthCfg, err := google.ConfigFromJSON(contents, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing OAuth client credentials %q: %w", credentialsFile, err)
	}
	return oauthCfg, nil
}

func waitForCode(ctx context.Context, listener net.Listener, state string) (string, error) {
	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case query.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- result{err: errors.New("oauth state mismatch")}
		case query.Get("code") == "":
			http.Error(w, "missing authorization code", http.StatusBadRequest)
			results <- result{err: errors.New("authorization was denied")}
		default:
			fmt.Fprintln(w, "Authorized. You can close this window and return to the terminal.")
			results <- result{code: query.Get("code")}
		}
	})}
	go server.Serve(listener)
	defer server.Close()

	select {
	case r := <-results:
		return r.code, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func readToken(tokenFile string) (*oauth2.Token, error) {
	contents, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, err
	}
	token := &oauth2.Token{}
	if err := json.Unmarshal(contents, token); err != nil {
		return nil, fmt.Errorf("unmarshalling cached token %q: %w", tokenFile, err)
	}
	return token, nil
}

func saveToken(tokenFile string, token *oauth2.Token) error {
	contents, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(tokenFile), 0755); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	// the token grants calendar access, keep it owner-readable only
	if err := os.WriteFile(tokenFile, contents, 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}
