package livekitroom

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 15 * time.Minute

// TokenOptions describes one room access grant.
type TokenOptions struct {
	APIKey    string
	APISecret string
	Room      string
	Identity  string
	TTL       time.Duration
}

// AccessToken mints the signed room-join token the signalling endpoint
// expects: HS256, issuer = API key, subject = participant identity, with a
// video grant scoped to the one room.
func AccessToken(opts TokenOptions) (string, error) {
	if strings.TrimSpace(opts.APIKey) == "" || strings.TrimSpace(opts.APISecret) == "" {
		return "", fmt.Errorf("api key and secret are required")
	}
	if strings.TrimSpace(opts.Room) == "" {
		return "", fmt.Errorf("room is required")
	}
	if strings.TrimSpace(opts.Identity) == "" {
		return "", fmt.Errorf("identity is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": opts.APIKey,
		"sub": opts.Identity,
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"video": map[string]any{
			"room":           opts.Room,
			"roomJoin":       true,
			"canSubscribe":   true,
			"canPublish":     true,
			"canPublishData": true,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(opts.APISecret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}
