package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"

	"github.com/hakkacheyassin/ft-trans/config"
	"github.com/hakkacheyassin/ft-trans/models"
)

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrWrongTwoFactor    = fmt.Errorf("%w: wrong authentication code", ErrForbidden)
	ErrTwoFactorRequired = fmt.Errorf("%w: two-factor authentication required", ErrForbidden)
)

type AuthService struct {
	Db            *gorm.DB
	jwtSecret     []byte
	tokenExpiry   time.Duration
	refreshExpiry time.Duration
	totpIssuer    string
}

func NewAuthService(db *gorm.DB, config *config.AuthConfig) *AuthService {
	return &AuthService{
		Db:            db,
		jwtSecret:     []byte(config.JWTSecret),
		tokenExpiry:   time.Duration(config.TokenExpiry) * time.Hour,
		refreshExpiry: time.Duration(config.RefreshExpiry) * time.Hour,
		totpIssuer:    config.TOTPIssuer,
	}
}

type Claims struct {
	UserID           uint `json:"user_id"`
	TwoFactorEnabled bool `json:"tfa_enabled"`
	TwoFactorPassed  bool `json:"tfa_passed"`
	jwt.RegisteredClaims
}

// GenerateTokens issues an access/refresh pair. When the account has 2FA
// enabled and tfaPassed is false, the access token only grants access to the
// 2FA authentication endpoint.
func (s *AuthService) GenerateTokens(user *models.User, tfaPassed bool) (*models.AuthResponse, error) {
	accessClaims := &Claims{
		UserID:           user.ID,
		TwoFactorEnabled: user.TwoFactorEnabled,
		TwoFactorPassed:  tfaPassed,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	refreshClaims := &Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.refreshExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokenExpiry.Seconds()),
		User:         *user,
	}, nil
}

func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// FindOrCreateOAuthUser looks a user up by provider identity, creating one on
// first login. The provider identity is immutable; email and avatar are
// refreshed from the provider on every login.
func (s *AuthService) FindOrCreateOAuthUser(userInfo *OAuthUserInfo) (*models.User, error) {
	var user models.User

	err := s.Db.Where("provider = ? AND provider_id = ?", userInfo.Provider, userInfo.ID).First(&user).Error
	if err == nil {
		user.Email = userInfo.Email
		user.Avatar = userInfo.Avatar
		s.Db.Save(&user)
		return &user, nil
	}

	user = models.User{
		Email:      userInfo.Email,
		Username:   userInfo.Name,
		Provider:   userInfo.Provider,
		ProviderID: userInfo.ID,
		Avatar:     userInfo.Avatar,
	}
	if err := s.Db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

type TwoFactorEnrollment struct {
	Secret     string `json:"secret"`
	OtpauthURL string `json:"otpauth_url"`
}

// GenerateTwoFactorSecret creates a fresh TOTP secret and its otpauth URL.
// Nothing is persisted until the user confirms a code via EnableTwoFactor.
func (s *AuthService) GenerateTwoFactorSecret(user *models.User) (*TwoFactorEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.totpIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		return nil, err
	}
	return &TwoFactorEnrollment{
		Secret:     key.Secret(),
		OtpauthURL: key.URL(),
	}, nil
}

// EnableTwoFactor turns 2FA on after the user proves possession of the secret
// with a valid code.
func (s *AuthService) EnableTwoFactor(user *models.User, secret, code string) error {
	if !totp.Validate(code, secret) {
		return ErrWrongTwoFactor
	}
	user.TwoFactorSecret = secret
	user.TwoFactorEnabled = true
	return s.Db.Save(user).Error
}

func (s *AuthService) DisableTwoFactor(user *models.User) error {
	user.TwoFactorSecret = ""
	user.TwoFactorEnabled = false
	return s.Db.Save(user).Error
}

// AuthenticateTwoFactor validates a TOTP code and re-issues tokens with the
// two-factor step marked as passed.
func (s *AuthService) AuthenticateTwoFactor(user *models.User, code string) (*models.AuthResponse, error) {
	if !user.TwoFactorEnabled {
		return nil, ErrWrongTwoFactor
	}
	if !totp.Validate(code, user.TwoFactorSecret) {
		return nil, ErrWrongTwoFactor
	}
	return s.GenerateTokens(user, true)
}
