package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/harrylevesque/photobooth/internal/utils"
)

const (
	HeaderName = "X-Admin-Token"
	QueryParam = "token"
)

// UnauthorizedMessage is the client-facing body for rejected requests.
const UnauthorizedMessage = "Unauthorized (bad admin token)"

var ErrUnauthorized = errors.New("bad admin token")

// Gate guards admin endpoints with a shared secret. The secret is either a
// plain token or a bcrypt hash of one. With neither configured the gate is
// open and every request passes.
type Gate struct {
	token string
	hash  string
}

func NewGate(token, tokenHash string) *Gate {
	return &Gate{token: token, hash: tokenHash}
}

// Open reports whether no secret is configured.
func (g *Gate) Open() bool {
	return g.token == "" && g.hash == ""
}

// Credential returns the token presented with r, header first.
func Credential(r *http.Request) string {
	if v := r.Header.Get(HeaderName); v != "" {
		return v
	}
	return r.URL.Query().Get(QueryParam)
}

// Check validates the credential presented with r.
func (g *Gate) Check(r *http.Request) error {
	if g.Open() {
		return nil
	}
	presented := Credential(r)
	if presented == "" {
		return ErrUnauthorized
	}
	if g.hash != "" {
		if CheckTokenHash(presented, g.hash) {
			return nil
		}
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(g.token)) == 1 {
		return nil
	}
	return ErrUnauthorized
}

// Middleware rejects requests that fail Check with 401.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.Check(r); err != nil {
			utils.WriteError(w, utils.Wrap(http.StatusUnauthorized, UnauthorizedMessage, err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HashToken returns the bcrypt hash stored as admin.token_hash.
func HashToken(token string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	return string(b), err
}

// CheckTokenHash reports whether token matches hash.
func CheckTokenHash(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
