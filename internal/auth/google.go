package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is what the identity provider asserts about a user.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// IdentityVerifier validates an identity provider token.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier validates Google ID tokens locally against Google's JWKS.
type GoogleVerifier struct {
	keyfunc  jwt.Keyfunc
	clientID string
	leeway   time.Duration
}

// NewGoogleVerifier starts a JWKS storage that refreshes in the background.
// It does not fail when the first fetch fails so the API can start offline.
func NewGoogleVerifier(ctx context.Context, jwksURL, clientID string, logger *slog.Logger) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: 10 * time.Second},
		Ctx:                       ctx,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           time.Hour,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("refresh google jwks failed",
				slog.String("url", jwksURL),
				slog.String("error", err.Error()),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create jwks storage: %w", err)
	}
	k, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("create keyfunc: %w", err)
	}
	return newGoogleVerifier(k.Keyfunc, clientID), nil
}

func newGoogleVerifier(kf jwt.Keyfunc, clientID string) *GoogleVerifier {
	return &GoogleVerifier{keyfunc: kf, clientID: clientID, leeway: 30 * time.Second}
}

// Verify checks signature (RS256), audience, issuer and expiry.
func (v *GoogleVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	claims := &googleClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("verify id token: invalid token")
	}
	if !googleIssuers[claims.Issuer] {
		return nil, fmt.Errorf("verify id token: unexpected issuer %q", claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, errors.New("verify id token: missing sub")
	}
	return &Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
