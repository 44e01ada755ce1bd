package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// IdentityClaims is what the server needs from a verified ID token.
type IdentityClaims struct {
	Subject  string
	Username string
}

type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (IdentityClaims, error)
}

type OIDCVerifierConfig struct {
	IssuerURL string
	ClientID  string
}

// OIDCVerifier checks bearer ID tokens against the issuer's published keys.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, cfg OIDCVerifierConfig) (*OIDCVerifier, error) {
	if strings.TrimSpace(cfg.IssuerURL) == "" || strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("issuer url and client id are required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discovering oidc provider: %w", err)
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (IdentityClaims, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return IdentityClaims{}, fmt.Errorf("verifying id token: %w", err)
	}

	var claims struct {
		Subject           string `json:"sub"`
		PreferredUsername string `json:"preferred_username"`
		Name              string `json:"name"`
		Email             string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return IdentityClaims{}, fmt.Errorf("parsing id token claims: %w", err)
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Name
	}
	if username == "" {
		if at := strings.Index(claims.Email, "@"); at > 0 {
			username = claims.Email[:at]
		}
	}

	return IdentityClaims{Subject: claims.Subject, Username: username}, nil
}
