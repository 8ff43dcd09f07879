package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hakkacheyassin/ft-trans/models"
	"github.com/hakkacheyassin/ft-trans/services"
)

// AuthMiddleware validates the JWT from the Authorization header (or the
// token query param, which websocket clients use) and loads the user into the
// context.
func AuthMiddleware(authService *services.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			var tokenString string
			if authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || parts[0] != "Bearer" {
					return c.JSON(http.StatusUnauthorized, map[string]string{
						"error": "invalid authorization header",
					})
				}
				tokenString = parts[1]
			} else {
				tokenString = c.QueryParam("token")
				if tokenString == "" {
					return c.JSON(http.StatusUnauthorized, map[string]string{
						"error": "missing authorization token",
					})
				}
				tokenString = strings.TrimPrefix(tokenString, "Bearer ")
			}

			claims, err := authService.ValidateToken(tokenString)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "invalid token",
				})
			}
			var user models.User
			if err := authService.Db.First(&user, claims.UserID).Error; err != nil {
				return c.JSON(http.StatusNotFound, map[string]string{
					"error": "user not found",
				})
			}

			c.Set("user", &user)
			c.Set("claims", claims)
			return next(c)
		}
	}
}

// TwoFactorMiddleware rejects tokens that have not passed the 2FA step when
// the account has 2FA enabled. Must run after AuthMiddleware.
func TwoFactorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get("claims").(*services.Claims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "missing authorization token",
				})
			}
			if claims.TwoFactorEnabled && !claims.TwoFactorPassed {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "two-factor authentication required",
				})
			}
			return next(c)
		}
	}
}
