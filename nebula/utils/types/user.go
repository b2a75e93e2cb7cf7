package types

import "nebula/nebula/sources/psql/models"

type UserResponse struct {
	User *models.User `json:"user"`
}

type LoginRequest struct {
	Username string `json:"username"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}
