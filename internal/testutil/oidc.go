package testutil

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// OIDCIssuer is an in-process identity provider serving discovery and JWKS
// documents, able to mint RS256 ID tokens for tests.
type OIDCIssuer struct {
	URL      string
	ClientID string

	server     *httptest.Server
	privateKey *rsa.PrivateKey
	keyID      string
}

func NewOIDCIssuer(t *testing.T, clientID string) *OIDCIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	issuer := &OIDCIssuer{ClientID: clientID, privateKey: key, keyID: "test-key"}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", issuer.handleWellKnown)
	mux.HandleFunc("/keys", issuer.handleKeys)
	issuer.server = httptest.NewServer(mux)
	issuer.URL = issuer.server.URL
	t.Cleanup(issuer.server.Close)

	return issuer
}

// Token signs an ID token for subject. Extra claims override the defaults.
func (i *OIDCIssuer) Token(t *testing.T, subject string, extra map[string]any) string {
	t.Helper()
	now := time.Now()
	claims := map[string]any{
		"iss": i.URL,
		"sub": subject,
		"aud": i.ClientID,
		"exp": now.Add(10 * time.Minute).Unix(),
		"iat": now.Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}

	token, err := signJWT(map[string]any{"alg": "RS256", "typ": "JWT", "kid": i.keyID}, claims, i.privateKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (i *OIDCIssuer) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"issuer":                                i.URL,
		"authorization_endpoint":                i.URL + "/authorize",
		"token_endpoint":                        i.URL + "/token",
		"jwks_uri":                              i.URL + "/keys",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (i *OIDCIssuer) handleKeys(w http.ResponseWriter, r *http.Request) {
	n := base64.RawURLEncoding.EncodeToString(i.privateKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(i.privateKey.PublicKey.E)).Bytes())
	writeJSON(w, map[string]any{
		"keys": []map[string]any{
			{"kty": "RSA", "use": "sig", "alg": "RS256", "kid": i.keyID, "n": n, "e": e},
		},
	})
}

func signJWT(header, claims map[string]any, key *rsa.PrivateKey) (string, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(claimsJSON)

	hash := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hash[:])
	if err != nil {
		return "", err
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
