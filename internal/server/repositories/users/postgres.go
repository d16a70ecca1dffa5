package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkit/internal/common"
	"github.com/dmitrijs2005/authkit/internal/dbx"
	"github.com/dmitrijs2005/authkit/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func dbError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (name, email)
		 VALUES ($1, $2)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, user.Name, user.Email).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, dbError(err)
	}

	return user, nil
}

func (r *PostgresRepository) CreateCredentials(ctx context.Context, c *models.Credentials) error {
	query :=
		`INSERT INTO password_auth (user_id, pwd, pwd_salt, token_salt)
		 VALUES ($1, $2, $3, $4)
		 `

	if _, err := r.db.ExecContext(ctx, query, c.UserID, c.Pwd, c.PwdSalt, c.TokenSalt); err != nil {
		return dbError(err)
	}
	return nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.UserForLogin, error) {
	query :=
		`SELECT u.id, u.name, u.email, p.pwd, p.pwd_salt, p.token_salt
		 FROM users u JOIN password_auth p ON p.user_id = u.id
		 WHERE u.email = $1
		 `

	u := &models.UserForLogin{}
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.Pwd, &u.PwdSalt, &u.TokenSalt)
	if err != nil {
		return nil, dbError(err)
	}

	return u, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, name, email, created_at, updated_at FROM users
		 WHERE id = $1
		 `

	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, dbError(err)
	}

	return u, nil
}

func (r *PostgresRepository) GetTokenSalt(ctx context.Context, id string) (uuid.UUID, error) {
	query :=
		`SELECT token_salt FROM password_auth
		 WHERE user_id = $1
		 `

	var salt uuid.UUID
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&salt); err != nil {
		return uuid.Nil, dbError(err)
	}

	return salt, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, pwd string, pwdSalt uuid.UUID) error {
	query :=
		`UPDATE password_auth SET pwd = $2, pwd_salt = $3, updated_at = now()
		 WHERE user_id = $1
		 `

	return r.execOne(ctx, query, id, pwd, pwdSalt)
}

func (r *PostgresRepository) UpdateTokenSalt(ctx context.Context, id string, tokenSalt uuid.UUID) error {
	query :=
		`UPDATE password_auth SET token_salt = $2, updated_at = now()
		 WHERE user_id = $1
		 `

	return r.execOne(ctx, query, id, tokenSalt)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query :=
		`DELETE FROM users
		 WHERE id = $1
		 `

	return r.execOne(ctx, query, id)
}

// execOne runs a statement that must touch exactly one row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return dbError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
