package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/smartfarmlink/smartfarm-backend-go/utils"
)

const userIDKey = "userID"

// Identity resolves the acting user from a bearer token. With an empty secret
// every request passes through unauthenticated and handlers trust the ids in
// the request body.
func Identity(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(c)
			}

			tokenString, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing authorization header"})
			}

			claims, err := utils.ValidateJWT(secret, tokenString)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
			}

			c.Set(userIDKey, claims.UserID)
			return next(c)
		}
	}
}

// bearerToken reads the Authorization header, falling back to a token query
// parameter for websocket upgrades where browsers cannot set headers.
func bearerToken(c echo.Context) (string, bool) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		token := c.QueryParam("token")
		return token, token != ""
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" || tokenParts[1] == "" {
		return "", false
	}
	return tokenParts[1], true
}

// UserID returns the authenticated user, if any.
func UserID(c echo.Context) (string, bool) {
	id, ok := c.Get(userIDKey).(string)
	return id, ok && id != ""
}

// ActingAs rejects requests whose claimed user differs from the token's user.
// Unauthenticated requests are allowed through.
func ActingAs(c echo.Context, claimed string) error {
	id, ok := UserID(c)
	if !ok || id == claimed {
		return nil
	}
	return echo.NewHTTPError(http.StatusForbidden, "token does not belong to "+claimed)
}
