package controllers

import (
	"context"
	"errors"

	"nebula/nebula/sources/psql/dao"
	"nebula/nebula/sources/psql/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserController struct {
	dao *dao.UserDAO
}

func NewUserController(dao *dao.UserDAO) *UserController {
	return &UserController{dao: dao}
}

func (c *UserController) GetUser(ctx context.Context, id int) (*models.User, error) {
	user, err := c.dao.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
