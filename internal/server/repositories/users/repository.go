package users

import (
	"context"

	"github.com/dmitrijs2005/authkit/internal/server/models"
	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	CreateCredentials(ctx context.Context, c *models.Credentials) error
	GetByEmail(ctx context.Context, email string) (*models.UserForLogin, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetTokenSalt(ctx context.Context, id string) (uuid.UUID, error)
	UpdatePassword(ctx context.Context, id string, pwd string, pwdSalt uuid.UUID) error
	UpdateTokenSalt(ctx context.Context, id string, tokenSalt uuid.UUID) error
	Delete(ctx context.Context, id string) error
}
