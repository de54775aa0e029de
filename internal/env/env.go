// Package env centralizes access to the environment variables and
// directories squarectl depends on.
package env

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variable names shared with the other SQuARE clients.
const (
	APIURLVar       = "SQUARE_API_URL"
	VerifySSLVar    = "VERIFY_SSL"
	KeycloakBaseVar = "KEYCLOAK_BASE_URL"
	RealmVar        = "REALM"
	ClientIDVar     = "CLIENT_ID"
	ClientSecretVar = "CLIENT_SECRET"
)

// APIURL returns the base URL of the model API.
func APIURL() string {
	return os.Getenv(APIURLVar)
}

// VerifySSL reports whether TLS certificates should be verified.
// Verification is opt-in: only VERIFY_SSL=1 enables it.
func VerifySSL() bool {
	return os.Getenv(VerifySSLVar) == "1"
}

// Credentials holds the client-credentials settings for the auth server.
type Credentials struct {
	KeycloakBaseURL string
	Realm           string
	ClientID        string
	ClientSecret    string
}

// LoadCredentials reads the client-credentials settings from the
// environment. Every field except the secret is required.
func LoadCredentials() (Credentials, error) {
	c := Credentials{
		KeycloakBaseURL: os.Getenv(KeycloakBaseVar),
		Realm:           os.Getenv(RealmVar),
		ClientID:        os.Getenv(ClientIDVar),
		ClientSecret:    os.Getenv(ClientSecretVar),
	}
	for _, v := range []struct {
		name, value string
	}{
		{KeycloakBaseVar, c.KeycloakBaseURL},
		{RealmVar, c.Realm},
		{ClientIDVar, c.ClientID},
	} {
		if v.value == "" {
			return Credentials{}, fmt.Errorf("environment variable %s is not set", v.name)
		}
	}
	return c, nil
}

// WorkDir returns the directory squarectl uses for locks and scratch
// state, under the user cache directory.
func WorkDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, ".squarectl"), nil
}
