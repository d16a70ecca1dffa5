package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authkit/internal/common"
	"github.com/dmitrijs2005/authkit/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock
}

const (
	qInsertUser   = `(?s)^INSERT\s+INTO\s+users\s*\(name,\s*email\)\s*VALUES\s*\(\$1,\s*\$2\)\s*RETURNING\s+id,\s*created_at,\s*updated_at\s*$`
	qInsertCreds  = `(?s)^INSERT\s+INTO\s+password_auth\s*\(user_id,\s*pwd,\s*pwd_salt,\s*token_salt\)\s*VALUES`
	qByEmail      = `(?s)^SELECT\s+u\.id,\s*u\.name,\s*u\.email,\s*p\.pwd,\s*p\.pwd_salt,\s*p\.token_salt\s+FROM\s+users\s+u\s+JOIN\s+password_auth\s+p.*WHERE\s+u\.email\s*=\s*\$1`
	qByID         = `(?s)^SELECT\s+id,\s*name,\s*email,\s*created_at,\s*updated_at\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1`
	qTokenSalt    = `(?s)^SELECT\s+token_salt\s+FROM\s+password_auth\s+WHERE\s+user_id\s*=\s*\$1`
	qUpdatePwd    = `(?s)^UPDATE\s+password_auth\s+SET\s+pwd\s*=\s*\$2,\s*pwd_salt\s*=\s*\$3`
	qUpdateSalt   = `(?s)^UPDATE\s+password_auth\s+SET\s+token_salt\s*=\s*\$2`
	qDeleteUser   = `(?s)^DELETE\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1`
	testUserID    = "0b7f3a5e-55c4-4b8e-9f55-1f3b0e8f2a11"
	testUserEmail = "demo1@example.com"
)

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(qInsertUser).
		WithArgs("demo1", testUserEmail).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(testUserID, now, now))

	got, err := repo.Create(context.Background(), &models.User{Name: "demo1", Email: testUserEmail})
	require.NoError(t, err)
	assert.Equal(t, testUserID, got.ID)
	assert.Equal(t, now, got.CreatedAt)
}

func TestCreate_Errors(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(qInsertUser).
		WithArgs("demo1", testUserEmail).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err := repo.Create(context.Background(), &models.User{Name: "demo1", Email: testUserEmail})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	mock.ExpectQuery(qInsertUser).
		WithArgs("demo1", testUserEmail).
		WillReturnError(errors.New("db down"))
	_, err = repo.Create(context.Background(), &models.User{Name: "demo1", Email: testUserEmail})
	assert.ErrorContains(t, err, "db error: db down")
}

func TestCreateCredentials(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	pwdSalt, tokenSalt := uuid.New(), uuid.New()

	mock.ExpectExec(qInsertCreds).
		WithArgs(testUserID, "#_02_#hash", pwdSalt, tokenSalt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateCredentials(context.Background(), &models.Credentials{
		UserID: testUserID, Pwd: "#_02_#hash", PwdSalt: pwdSalt, TokenSalt: tokenSalt,
	})
	require.NoError(t, err)
}

func TestGetByEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	pwdSalt, tokenSalt := uuid.New(), uuid.New()

	mock.ExpectQuery(qByEmail).
		WithArgs(testUserEmail).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "pwd", "pwd_salt", "token_salt"}).
			AddRow(testUserID, "demo1", testUserEmail, "#_02_#hash", pwdSalt.String(), tokenSalt.String()))

	got, err := repo.GetByEmail(context.Background(), testUserEmail)
	require.NoError(t, err)
	assert.Equal(t, &models.UserForLogin{
		ID: testUserID, Name: "demo1", Email: testUserEmail, Pwd: "#_02_#hash", PwdSalt: pwdSalt, TokenSalt: tokenSalt,
	}, got)

	mock.ExpectQuery(qByEmail).WithArgs("ghost@example.com").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByID(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(qByID).
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "created_at", "updated_at"}).
			AddRow(testUserID, "demo1", testUserEmail, now, now))

	got, err := repo.GetByID(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, "demo1", got.Name)

	mock.ExpectQuery(qByID).WithArgs("x").WillReturnError(errors.New("db err"))
	_, err = repo.GetByID(context.Background(), "x")
	assert.ErrorContains(t, err, "db error: db err")
}

func TestGetTokenSalt(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	salt := uuid.New()

	mock.ExpectQuery(qTokenSalt).
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"token_salt"}).AddRow(salt.String()))

	got, err := repo.GetTokenSalt(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, salt, got)

	mock.ExpectQuery(qTokenSalt).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetTokenSalt(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdatePassword(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	salt := uuid.New()

	mock.ExpectExec(qUpdatePwd).
		WithArgs(testUserID, "#_02_#new", salt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdatePassword(context.Background(), testUserID, "#_02_#new", salt))

	mock.ExpectExec(qUpdatePwd).
		WithArgs("ghost", "#_02_#new", salt).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdatePassword(context.Background(), "ghost", "#_02_#new", salt), common.ErrorNotFound)
}

func TestUpdateTokenSalt(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	salt := uuid.New()

	mock.ExpectExec(qUpdateSalt).
		WithArgs(testUserID, salt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateTokenSalt(context.Background(), testUserID, salt))

	mock.ExpectExec(qUpdateSalt).
		WithArgs(testUserID, salt).
		WillReturnError(errors.New("db down"))
	assert.ErrorContains(t, repo.UpdateTokenSalt(context.Background(), testUserID, salt), "db error")
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(qDeleteUser).WithArgs(testUserID).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), testUserID))

	mock.ExpectExec(qDeleteUser).WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "ghost"), common.ErrorNotFound)

	mock.ExpectExec(qDeleteUser).WithArgs("x").WillReturnResult(sqlmock.NewErrorResult(errors.New("no rows info")))
	assert.ErrorContains(t, repo.Delete(context.Background(), "x"), "db error")
}
