package httpadapter

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer mints short-lived HS256 room-grant tokens in the shape media
// servers expect: identity as subject plus a video grant naming the room.
type TokenIssuer struct {
	apiKey string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(apiKey, secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		apiKey: apiKey,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (t *TokenIssuer) Issue(room, identity string) (string, error) {
	if room == "" || identity == "" {
		return "", errors.New("room and identity are required")
	}

	now := t.now()
	claims := jwt.MapClaims{
		"iss": t.apiKey,
		"sub": identity,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(t.ttl).Unix(),
		"video": map[string]any{
			"room":     room,
			"roomJoin": true,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and that the token's video grant names the
// given room.
func (t *TokenIssuer) Verify(token, room string) error {
	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("unexpected claims shape")
	}
	video, ok := claims["video"].(map[string]any)
	if !ok {
		return errors.New("token carries no video grant")
	}
	if video["room"] != room {
		return errors.New("token grants a different room")
	}
	if join, _ := video["roomJoin"].(bool); !join {
		return errors.New("token does not grant room join")
	}
	return nil
}
