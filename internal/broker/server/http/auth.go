package http

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// bearerAuth accepts HS256 tokens whose subject is the application in the path.
func bearerAuth(secret []byte) mux.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			token, err := parser.Parse(raw, keyFunc)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			sub, err := token.Claims.GetSubject()
			if err != nil || sub != mux.Vars(r)["appID"] {
				writeError(w, http.StatusForbidden, "token does not belong to this application")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
