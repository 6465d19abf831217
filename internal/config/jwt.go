package config

import (
	"fmt"
	"time"
)

// minSecretLength is the shortest HS256 secret accepted.
const minSecretLength = 16

// AuthConfig holds editor authentication settings. JWTSecret is only
// required by the HTTP server; CLI commands load the config without it.
type AuthConfig struct {
	JWTSecret          string `yaml:"jwt_secret"`
	JWTExpirationHours int    `yaml:"jwt_expiration_hours"`
	BcryptCost         int    `yaml:"bcrypt_cost"`
	PasswordPepper     string `yaml:"password_pepper"`
}

// JWTExpiration is the lifetime of issued tokens.
func (c AuthConfig) JWTExpiration() time.Duration {
	return time.Duration(c.JWTExpirationHours) * time.Hour
}

// RequireSecret fails when no usable signing secret is configured.
func (c AuthConfig) RequireSecret() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required but not set")
	}
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength)
	}
	return nil
}

// normalize validates the configuration.
func (c *AuthConfig) normalize() error {
	if c.JWTExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.JWTExpirationHours)
	}
	if c.BcryptCost < 10 || c.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost out of range: %d (must be 10-14)", c.BcryptCost)
	}
	return nil
}
