package services

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

type remoteTokenVerifier struct {
	logger    zerolog.Logger
	client    *http.Client
	verifyURL string
}

// NewRemoteTokenVerifier verifies tokens against the identity service's
// verify endpoint. Any failure, including the identity service being
// unreachable, is reported as ErrTokenInvalid.
func NewRemoteTokenVerifier(
	logger zerolog.Logger,
	verifyURL string,
	timeout time.Duration,
) TokenVerifier {
	return &remoteTokenVerifier{
		logger: logger,
		client: &http.Client{
			Timeout: timeout,
		},
		verifyURL: verifyURL,
	}
}

type verifyResponse struct {
	Success  bool   `json:"success"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (v *remoteTokenVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, nil)
	if err != nil {
		v.logger.Error().
			Err(err).
			Msg("failed to build verify request")
		return nil, ErrTokenInvalid
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Error().
			Err(err).
			Msg("identity service unreachable")
		return nil, ErrTokenInvalid
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		v.logger.Error().
			Int("status", resp.StatusCode).
			Msg("identity service rejected token")
		return nil, ErrTokenInvalid
	}

	var body verifyResponse
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		v.logger.Error().
			Err(err).
			Msg("failed to decode verify response")
		return nil, ErrTokenInvalid
	}

	if !body.Success || body.UserID == "" {
		v.logger.Error().Msg("token verification rejected")
		return nil, ErrTokenInvalid
	}

	v.logger.Debug().
		Str("user_id", body.UserID).
		Msg("verified token remotely")
	return &Identity{
		UserID:   body.UserID,
		Username: body.Username,
	}, nil
}

type jwtTokenVerifier struct {
	logger     zerolog.Logger
	issuer     string
	signingKey []byte
}

// NewJWTTokenVerifier verifies HS256 tokens locally. It exists for
// local and dev runs where no identity service is deployed.
func NewJWTTokenVerifier(
	logger zerolog.Logger,
	issuer string,
	signingKey []byte,
) TokenVerifier {
	return &jwtTokenVerifier{
		logger:     logger,
		issuer:     issuer,
		signingKey: signingKey,
	}
}

type identityClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func (v *jwtTokenVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &identityClaims{}, func(*jwt.Token) (any, error) {
		return v.signingKey, nil
	}, opts...)
	if err != nil {
		v.logger.Error().
			Err(err).
			Msg("failed to parse token")
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*identityClaims)
	if !ok || claims.Subject == "" {
		v.logger.Error().Msg("token has no subject")
		return nil, ErrTokenInvalid
	}

	username := claims.Username
	if username == "" {
		username = claims.Subject
	}

	v.logger.Debug().
		Str("user_id", claims.Subject).
		Msg("verified token locally")
	return &Identity{
		UserID:   claims.Subject,
		Username: username,
	}, nil
}
