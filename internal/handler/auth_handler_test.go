package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type fakeAuthSrv struct {
	created models.CreateUserRequest
	err     error
}

func (f *fakeAuthSrv) CreateUser(_ context.Context, req models.CreateUserRequest) (*models.UserInfo, error) {
	f.created = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.UserInfo{ID: req.ID, Username: req.Username, Role: req.Role}, nil
}

func (f *fakeAuthSrv) Authenticate(_ context.Context, req models.AuthenticateRequest) (*models.TokenResponse, error) {
	if req.Password != "right" {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
	}
	return &models.TokenResponse{AccessToken: "token", TokenType: "Bearer"}, nil
}

func TestCreateUserHandler(t *testing.T) {
	srv := &fakeAuthSrv{}
	c, rec := testContext(http.MethodPost, "/users", gin.H{"cwid": 100, "username": "ada", "password": "secret", "first_name": "Ada", "last_name": "Lovelace", "role": "student"}, nil)
	NewAuthHandler(srv).CreateUser(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(100), srv.created.ID)

	srv.err = appErrors.Clone(appErrors.ErrConflict, "username already exists")
	c, rec = testContext(http.MethodPost, "/users", gin.H{"cwid": 100, "username": "ada"}, nil)
	NewAuthHandler(srv).CreateUser(c)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginHandler(t *testing.T) {
	c, rec := testContext(http.MethodPost, "/auth/login", gin.H{"username": "ada", "password": "right"}, nil)
	NewAuthHandler(&fakeAuthSrv{}).Login(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = testContext(http.MethodPost, "/auth/login", gin.H{"username": "ada", "password": "wrong"}, nil)
	NewAuthHandler(&fakeAuthSrv{}).Login(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeHandler(t *testing.T) {
	c, rec := testContext(http.MethodGet, "/auth/me", nil, instructor(900))
	NewAuthHandler(&fakeAuthSrv{}).Me(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = testContext(http.MethodGet, "/auth/me", nil, nil)
	NewAuthHandler(&fakeAuthSrv{}).Me(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
