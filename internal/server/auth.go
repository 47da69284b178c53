package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

type viewerKey struct{}

var errEmptyToken = errors.New("пустой токен")

func generateToken(secret []byte, userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(tokenTTL).Unix(),
	})
	return token.SignedString(secret)
}

func validateJWT(secret []byte, tokenString string) (string, error) {
	if tokenString == "" {
		return "", errEmptyToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("token has no user_id")
	}
	return userID, nil
}

// authMiddleware кладет id зрителя в контекст. Запрос без заголовка
// анонимный, с неверным токеном - 401.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := validateJWT(s.jwtSecret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err)
			return
		}
		ctx := context.WithValue(r.Context(), viewerKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func viewerFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(viewerKey{}).(string)
	return userID, ok
}

// requireViewer оборачивает обработчики, которым нужен автор действия
func requireViewer(next func(w http.ResponseWriter, r *http.Request, viewerID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID, ok := viewerFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, errors.New("authorization required"))
			return
		}
		next(w, r, viewerID)
	}
}

// requireAdmin пускает только id из server.admins
func (s *Server) requireAdmin(next func(w http.ResponseWriter, r *http.Request, viewerID string)) func(w http.ResponseWriter, r *http.Request, viewerID string) {
	return func(w http.ResponseWriter, r *http.Request, viewerID string) {
		if !slices.Contains(s.cfg.Server.Admins, viewerID) {
			writeError(w, r, http.StatusForbidden, errors.New("admin rights required"))
			return
		}
		next(w, r, viewerID)
	}
}
