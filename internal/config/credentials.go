package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// BoxCredentials is the Box app-settings document downloaded from the Box
// developer console.
type BoxCredentials struct {
	BoxAppSettings struct {
		ClientID     string `json:"clientID"`
		ClientSecret string `json:"clientSecret"`
		AppAuth      struct {
			PublicKeyID string `json:"publicKeyID"`
			PrivateKey  string `json:"privateKey"`
			Passphrase  string `json:"passphrase"`
		} `json:"appAuth"`
	} `json:"boxAppSettings"`
	EnterpriseID string `json:"enterpriseID"`
}

// CredentialsError reports a malformed credentials blob. It is distinct from
// MissingKeyError so "the secret isn't set" and "the secret isn't JSON" stay
// distinguishable in CI logs.
type CredentialsError struct {
	Reason string
	Err    error
}

func (e *CredentialsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid Box credentials: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid Box credentials: %s", e.Reason)
}

func (e *CredentialsError) Unwrap() error { return e.Err }

// ParseBoxCredentials parses the config_json setting. The value is either the
// full JSON document or a path to one on disk (the secret-manager and the
// local-development cases respectively).
func ParseBoxCredentials(raw string) (*BoxCredentials, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &MissingKeyError{Key: "BOX_CONFIG_JSON"}
	}

	// A value that looks like a path and exists on disk is loaded from disk.
	if strings.HasSuffix(raw, ".json") || strings.HasPrefix(raw, "/") {
		if _, err := os.Stat(raw); err == nil {
			data, err := os.ReadFile(raw)
			if err != nil {
				return nil, &CredentialsError{Reason: "reading credentials file", Err: err}
			}
			raw = string(data)
		}
	}

	var creds BoxCredentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, &CredentialsError{
			Reason: "not valid JSON; make sure the secret contains the full Box config document",
			Err:    err,
		}
	}

	app := creds.BoxAppSettings
	if app.ClientID == "" || app.ClientSecret == "" {
		return nil, &CredentialsError{Reason: "boxAppSettings.clientID/clientSecret missing"}
	}
	if app.AppAuth.PrivateKey == "" || app.AppAuth.PublicKeyID == "" {
		return nil, &CredentialsError{Reason: "boxAppSettings.appAuth key material missing"}
	}
	return &creds, nil
}
