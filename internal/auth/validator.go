// Package auth implements the Token Verifier (C1): validation of the
// compact signed session token that every streaming connection and
// control-plane request must carry.
//
// The identity provider that mints these tokens (the OAuth exchange) is
// out of scope — this package only verifies what it is handed.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/khanmassab/flixers-server/internal/logging"
	"github.com/khanmassab/flixers-server/internal/types"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ErrInvalidToken is the single opaque failure returned for every
// malformed/unsigned/expired/wrong-audience token. Callers must not try
// to distinguish why verification failed — see spec §4.1.
var ErrInvalidToken = errors.New("invalid token")

// CustomClaims are the claims this service reads off a verified token.
type CustomClaims struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates session tokens signed with a symmetric secret.
//
// DevMode trades verification for availability: it accepts unsigned or
// mis-signed tokens and simply decodes the claims, logging a prominent
// warning on every acceptance. A Verifier is in this mode whenever its
// secret or its audience is empty. config.ValidateEnv refuses to start a
// production process without a secret but does not require an audience,
// so an empty TOKEN_AUDIENCE also puts a production Verifier into this
// mode.
type Verifier struct {
	secret   []byte
	audience string
	devMode  bool
}

// NewVerifier builds a Verifier around a symmetric secret and expected
// audience. An empty secret or an empty audience enables dev-mode
// acceptance; for the audience this follows spec §4.1
// ("development-only mode ... explicit configuration flag or empty
// audience").
func NewVerifier(secret, audience string) *Verifier {
	return &Verifier{
		secret:   []byte(secret),
		audience: audience,
		devMode:  len(secret) == 0 || audience == "",
	}
}

// ValidateToken verifies tokenString and returns the identity it carries.
func (v *Verifier) ValidateToken(ctx context.Context, tokenString string) (*types.Identity, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	if v.devMode {
		claims, err := decodeUnverifiedClaims(tokenString)
		if err != nil {
			return nil, ErrInvalidToken
		}
		logging.Warn(ctx, "accepting token in dev-mode without signature verification",
			zap.String("sub", claims.Subject))
		return identityFromClaims(claims), nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, v.keyFunc,
		jwt.WithAudience(v.audience),
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return identityFromClaims(claims), nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.secret, nil
}

func identityFromClaims(claims *CustomClaims) *types.Identity {
	name := claims.Name
	if name == "" {
		if parts := strings.SplitN(claims.Email, "@", 2); len(parts) > 0 && parts[0] != "" {
			name = parts[0]
		} else {
			name = claims.Subject
		}
	}
	return &types.Identity{
		Sub:     types.ClientIDType(claims.Subject),
		Name:    types.DisplayNameType(name),
		Picture: claims.Picture,
	}
}

// decodeUnverifiedClaims pulls the claims out of a JWT's payload segment
// without checking the signature. Used only in dev-mode.
func decodeUnverifiedClaims(tokenString string) (*CustomClaims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, errors.New("malformed token")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, err
	}

	var claims CustomClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("missing sub claim")
	}
	return &claims, nil
}

// GetAllowedOriginsFromEnv reads a comma-separated origin list from the
// named environment variable, falling back to defaultOrigins (and
// logging a warning) when unset. Grounded on the teacher's helper of the
// same name/signature.
func GetAllowedOriginsFromEnv(envVarName string, defaultOrigins []string) []string {
	value := os.Getenv(envVarName)
	if value == "" {
		logging.Warn(context.Background(), fmt.Sprintf(
			"%s not set, using default development origins", envVarName),
			zap.Strings("defaults", defaultOrigins))
		return defaultOrigins
	}
	return strings.Split(value, ",")
}
