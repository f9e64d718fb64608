/*
Package gmailhttp builds an HTTP client authorized for the GMail API
from OAuth 2.0 material already on disk.

Dev flow: credentials.json holds the OAuth client (the "installed" or
"web" shape Google's console exports) and token.json holds a
previously granted user token. Obtaining that grant, refreshing it and
writing it back are out of scope here; this package only loads what is
already there and fails loudly when it is missing or malformed, which
callers treat as fatal for the whole scan.
*/
package gmailhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/NickJuneau/mealmate-v2-web/internal/gmail"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const defaultTokenURL = "https://oauth2.googleapis.com/token"

// clientSecrets mirrors the credentials.json layout; the console
// writes either an "installed" or a "web" block.
type clientSecrets struct {
	Installed *clientSecret `json:"installed"`
	Web       *clientSecret `json:"web"`
}

type clientSecret struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURI     string `json:"token_uri"`
}

// New returns an HTTP client that attaches the stored token to every
// GMail API request.
func New(ctx context.Context, credentialsPath, tokenPath string) (*http.Client, error) {
	var secrets clientSecrets
	if err := readJSON(credentialsPath, &secrets); err != nil {
		return nil, err
	}
	cs := secrets.Installed
	if cs == nil {
		cs = secrets.Web
	}
	if cs == nil || cs.ClientID == "" || cs.ClientSecret == "" {
		return nil, errors.Errorf("no usable OAuth client in %s", credentialsPath)
	}

	var token oauth2.Token
	if err := readJSON(tokenPath, &token); err != nil {
		return nil, err
	}

	tokenURL := cs.TokenURI
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	conf := &oauth2.Config{
		ClientID:     cs.ClientID,
		ClientSecret: cs.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		Scopes:       []string{gmail.ReadonlyScope},
	}
	return conf.Client(ctx, &token), nil
}

func readJSON(path string, v interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "unable to load %s", path)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrapf(err, "unable to parse %s", path)
	}
	return nil
}
