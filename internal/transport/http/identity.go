package http

import (
	"fmt"
	"net/http"
	"strings"

	"livetrivia/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const contextPlayer = "player"

// Claims are the token claims issued by the external account service.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Authenticator identifies the player behind a request. With a secret it
// requires an HS256 bearer token (or a token query parameter, for browser
// websockets); without one it trusts the X-User-ID / X-User-Name headers.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Player(r *http.Request) (domain.Player, error) {
	if len(a.secret) == 0 {
		return devPlayer(r)
	}

	raw := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return domain.Player{}, fmt.Errorf("%w: malformed authorization header", domain.ErrUnauthenticated)
		}
		raw = parts[1]
	}
	if raw == "" {
		return domain.Player{}, fmt.Errorf("%w: missing token", domain.ErrUnauthenticated)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return domain.Player{}, fmt.Errorf("%w: invalid or expired token", domain.ErrUnauthenticated)
	}
	if claims.Subject == "" {
		return domain.Player{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}
	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	return domain.Player{ID: claims.Subject, Name: name}, nil
}

func devPlayer(r *http.Request) (domain.Player, error) {
	id := firstNonEmpty(r.Header.Get("X-User-ID"), r.URL.Query().Get("userId"))
	if id == "" {
		return domain.Player{}, fmt.Errorf("%w: missing X-User-ID", domain.ErrUnauthenticated)
	}
	name := firstNonEmpty(r.Header.Get("X-User-Name"), r.URL.Query().Get("name"), id)
	return domain.Player{ID: id, Name: name}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// identity rejects unauthenticated requests and stores the player in the context.
func identity(auth *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		player, err := auth.Player(c.Request)
		if err != nil {
			fail(c, http.StatusUnauthorized, err.Error())
			return
		}
		c.Set(contextPlayer, player)
		c.Next()
	}
}

func playerFrom(c *gin.Context) domain.Player {
	v, _ := c.Get(contextPlayer)
	p, _ := v.(domain.Player)
	return p
}
