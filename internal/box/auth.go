package box

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/youmark/pkcs8"
)

// authenticate performs Box server auth: a signed JWT assertion exchanged at
// the token endpoint for an access token acting as the configured user.
func (c *Client) authenticate(ctx context.Context) error {
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return nil
	}

	assertion, err := c.buildAssertion()
	if err != nil {
		return err
	}

	form := url.Values{
		"grant_type":    {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"client_id":     {c.creds.BoxAppSettings.ClientID},
		"client_secret": {c.creds.BoxAppSettings.ClientSecret},
		"assertion":     {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting Box token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var boxErr struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		json.NewDecoder(resp.Body).Decode(&boxErr)
		return fmt.Errorf("Box token request failed (%d): %s %s", resp.StatusCode, boxErr.Error, boxErr.ErrorDescription)
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("decoding Box token: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("Box token response contained no access_token")
	}

	c.token = token.AccessToken
	// Refresh a minute early so a token never expires mid-download.
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)
	return nil
}

// buildAssertion creates the RS256-signed JWT Box exchanges for a user token.
func (c *Client) buildAssertion() (string, error) {
	key, err := parsePrivateKey(
		c.creds.BoxAppSettings.AppAuth.PrivateKey,
		c.creds.BoxAppSettings.AppAuth.Passphrase,
	)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":          c.creds.BoxAppSettings.ClientID,
		"sub":          c.userID,
		"box_sub_type": "user",
		"aud":          c.tokenURL,
		"jti":          uuid.NewString(),
		"iat":          now.Unix(),
		"exp":          now.Add(45 * time.Second).Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = c.creds.BoxAppSettings.AppAuth.PublicKeyID

	signed, err := tok.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing Box assertion: %w", err)
	}
	return signed, nil
}

// parsePrivateKey handles the key formats Box hands out: passphrase-encrypted
// PKCS#8 (the console default), plain PKCS#8, and PKCS#1.
func parsePrivateKey(pemData, passphrase string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("private key is not PEM encoded")
	}

	if block.Type == "ENCRYPTED PRIVATE KEY" {
		key, err := pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("decrypting private key: %w", err)
		}
		return key, nil
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not RSA")
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return key, nil
}
