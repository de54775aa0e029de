package client

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ukp-square/squarectl/internal/env"
)

// newTokenSource builds a client-credentials token source against the
// SQuARE auth server. Tokens are fetched lazily and refreshed when
// they expire.
func newTokenSource(creds env.Credentials, base *http.Client) oauth2.TokenSource {
	cfg := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL(creds.KeycloakBaseURL, creds.Realm),
	}
	// The token endpoint sits behind the same (possibly self-signed)
	// TLS setup as the API, so it must use the same base client.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	return cfg.TokenSource(ctx)
}

// tokenURL returns the Keycloak token endpoint for a realm.
func tokenURL(keycloakBaseURL, realm string) string {
	return strings.TrimSuffix(keycloakBaseURL, "/") +
		"/auth/realms/" + realm + "/protocol/openid-connect/token"
}
