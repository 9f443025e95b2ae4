package app

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Spok95/group-grader/internal/ctxutil"
	"github.com/Spok95/group-grader/internal/models"
)

// Claims: sub — id пользователя, role — student|admin. Токены выпускает внешний провайдер.
type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Auth struct{ hmac []byte }

func NewAuth(secret string) *Auth { return &Auth{hmac: []byte(secret)} }

// Issue — HS256-токен; используется в тестах и для выдачи служебных токенов.
func (a *Auth) Issue(id ctxutil.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub:  strconv.FormatInt(id.UserID, 10),
		Role: string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "group-grader",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.hmac)
}

func (a *Auth) Parse(tokenStr string) (ctxutil.Identity, error) {
	var c Claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (any, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ctxutil.Identity{}, err
	}
	if !token.Valid {
		return ctxutil.Identity{}, errors.New("invalid token")
	}
	uid, err := strconv.ParseInt(c.Sub, 10, 64)
	if err != nil || uid <= 0 {
		return ctxutil.Identity{}, fmt.Errorf("bad sub %q", c.Sub)
	}
	role := models.Role(c.Role)
	if !role.Valid() {
		return ctxutil.Identity{}, fmt.Errorf("bad role %q", c.Role)
	}
	return ctxutil.Identity{UserID: uid, Role: role}, nil
}

// Middleware требует Bearer-токен и кладёт Identity в контекст.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			writeProblem(w, http.StatusUnauthorized, "unauthorized", "missing bearer")
			return
		}
		id, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			writeProblem(w, http.StatusUnauthorized, "unauthorized", "bad token")
			return
		}
		next.ServeHTTP(w, r.WithContext(ctxutil.WithIdentity(r.Context(), id)))
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := ctxutil.IdentityFrom(r.Context())
		if !ok || !id.IsAdmin() {
			writeProblem(w, http.StatusForbidden, "forbidden", "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}
