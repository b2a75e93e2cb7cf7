package controllers

import (
	"context"
	"errors"
	"strings"

	"nebula/nebula/config"
	"nebula/nebula/middlewares"
	"nebula/nebula/sources/psql/dao"
	"nebula/nebula/sources/psql/models"
)

var ErrInvalidUsername = errors.New("username is required")

// AuthController issues credentials for development and operator use.
type AuthController struct {
	userDAO *dao.UserDAO
	cfg     config.Config
}

func NewAuthController(userDAO *dao.UserDAO, cfg config.Config) *AuthController {
	return &AuthController{
		userDAO: userDAO,
		cfg:     cfg,
	}
}

// Login auto-creates the user on first use and returns a signed credential.
func (c *AuthController) Login(ctx context.Context, username string) (string, *models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", nil, ErrInvalidUsername
	}
	user, err := c.userDAO.GetOrCreateUser(ctx, username)
	if err != nil {
		return "", nil, err
	}
	token, err := middlewares.GenerateToken(c.cfg.JWTSecret, user.ID, c.cfg.TokenTTL)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
