package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hakkacheyassin/ft-trans/models"
	"github.com/hakkacheyassin/ft-trans/services"
)

type AuthHandler struct {
	authService  *services.AuthService
	oauthService *services.OAuthService
}

func NewAuthHandler(authService *services.AuthService, oauthService *services.OAuthService) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		oauthService: oauthService,
	}
}

func (h *AuthHandler) GetProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"providers": h.oauthService.GetAvailableProviders(),
	})
}

// OAuthLogin redirects the browser to the provider's authorization page.
func (h *AuthHandler) OAuthLogin(c echo.Context) error {
	provider := c.Param("provider")
	state := uuid.New().String()
	url, err := h.oauthService.GetAuthURL(provider, state)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.Redirect(http.StatusTemporaryRedirect, url)
}

// OAuthCallback exchanges the authorization code, finds or creates the user
// and issues tokens. When the account has 2FA enabled the returned token is
// only good for the 2FA authentication endpoint.
func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	provider := c.Param("provider")
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing authorization code"})
	}

	token, err := h.oauthService.ExchangeCode(c.Request().Context(), provider, code)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "code exchange failed"})
	}
	userInfo, err := h.oauthService.GetUserInfo(provider, token)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "failed to fetch user info"})
	}
	user, err := h.authService.FindOrCreateOAuthUser(userInfo)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create user"})
	}

	response, err := h.authService.GenerateTokens(user, false)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to generate tokens"})
	}
	return c.JSON(http.StatusOK, response)
}

// RefreshToken trades a refresh token for a new pair. The 2FA step has to be
// redone on refresh.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	claims, err := h.authService.ValidateToken(req.RefreshToken)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
	}
	var user models.User
	if err := h.authService.Db.First(&user, claims.UserID).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "user not found"})
	}
	response, err := h.authService.GenerateTokens(&user, false)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to generate tokens"})
	}
	return c.JSON(http.StatusOK, response)
}

func (h *AuthHandler) GetCurrentUser(c echo.Context) error {
	user := c.Get("user").(*models.User)
	return c.JSON(http.StatusOK, user)
}

// GenerateTwoFactorSecret returns a fresh TOTP secret and otpauth URL for the
// client to render. Nothing is stored until the code is confirmed.
func (h *AuthHandler) GenerateTwoFactorSecret(c echo.Context) error {
	user := c.Get("user").(*models.User)
	enrollment, err := h.authService.GenerateTwoFactorSecret(user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to generate secret"})
	}
	return c.JSON(http.StatusOK, enrollment)
}

// EnableTwoFactor turns 2FA on once the user proves the secret with a valid
// code.
func (h *AuthHandler) EnableTwoFactor(c echo.Context) error {
	user := c.Get("user").(*models.User)
	var req struct {
		Secret string `json:"secret"`
		Code   string `json:"code"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := h.authService.EnableTwoFactor(user, req.Secret, req.Code); err != nil {
		if errors.Is(err, services.ErrForbidden) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "wrong authentication code"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to enable two-factor"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "two-factor enabled"})
}

func (h *AuthHandler) DisableTwoFactor(c echo.Context) error {
	user := c.Get("user").(*models.User)
	if err := h.authService.DisableTwoFactor(user); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to disable two-factor"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "two-factor disabled"})
}

// AuthenticateTwoFactor validates a TOTP code and re-issues tokens with the
// 2FA step passed.
func (h *AuthHandler) AuthenticateTwoFactor(c echo.Context) error {
	user := c.Get("user").(*models.User)
	var req struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	response, err := h.authService.AuthenticateTwoFactor(user, req.Code)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "wrong authentication code"})
	}
	return c.JSON(http.StatusOK, response)
}
