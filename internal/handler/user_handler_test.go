package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/service"
	"github.com/noah-isme/academy-api/pkg/export"
	"github.com/noah-isme/academy-api/pkg/token"
)

type fakeUserSrv struct {
	filter     models.UserFilter
	created    service.CreateUserRequest
	actorID    string
	statusID   string
	statusFlag bool
	format     export.Format
}

func (f *fakeUserSrv) List(_ context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	f.filter = filter
	return []models.User{{ID: "u1", FirstName: "Ana"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (f *fakeUserSrv) Get(_ context.Context, id string) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (f *fakeUserSrv) Create(_ context.Context, req service.CreateUserRequest, actorID string, _ models.RequestMeta) (*models.User, error) {
	f.created = req
	f.actorID = actorID
	return &models.User{ID: "new", FirstName: req.FirstName, Role: req.Role}, nil
}

func (f *fakeUserSrv) SetActive(_ context.Context, id string, active bool, actorID string, _ models.RequestMeta) (*models.User, error) {
	if id == "missing" {
		return nil, errors.New("boom")
	}
	f.statusID = id
	f.statusFlag = active
	f.actorID = actorID
	return &models.User{ID: id, Active: active}, nil
}

func (f *fakeUserSrv) Export(_ context.Context, filter models.UserFilter, format export.Format, actorID string, _ models.RequestMeta) (*service.ExportFile, error) {
	f.filter = filter
	f.actorID = actorID
	f.format = format
	return &service.ExportFile{Filename: "users.csv", ContentType: "text/csv; charset=utf-8", Body: []byte("ID\nu1\n"), Rows: 1}, nil
}

func adminClaims() *token.Claims {
	return &token.Claims{UserID: "admin-1", Role: string(models.RoleAdmin)}
}

func TestUserHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeUserSrv{}
	h := NewUserHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/users?page=2&page_size=5&role=student&active=false&search=ana", nil)

	h.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, srv.filter.Page)
	assert.Equal(t, 5, srv.filter.PageSize)
	require.NotNil(t, srv.filter.Role)
	assert.Equal(t, models.RoleStudent, *srv.filter.Role)
	require.NotNil(t, srv.filter.Active)
	assert.False(t, *srv.filter.Active)
	assert.Equal(t, "ana", srv.filter.Search)
}

func TestUserHandlerListRejectsUnknownRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewUserHandler(&fakeUserSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/users?role=janitor", nil)

	h.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserHandlerCreateUsesActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeUserSrv{}
	h := NewUserHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPost, "/users", map[string]string{"registrationNumber": "S200", "firstName": "Budi", "role": "student"})
	c.Set(middleware.ContextUserKey, adminClaims())

	h.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "admin-1", srv.actorID)
	assert.Equal(t, "S200", srv.created.RegistrationNumber)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "new", envelope.Data["id"])
}

func TestUserHandlerCreateRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewUserHandler(&fakeUserSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPost, "/users", map[string]string{"firstName": "Budi"})

	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserHandlerUpdateStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeUserSrv{}
	h := NewUserHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPatch, "/users/u9/status", map[string]bool{"active": false})
	c.Params = gin.Params{{Key: "id", Value: "u9"}}
	c.Set(middleware.ContextUserKey, adminClaims())

	h.UpdateStatus(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u9", srv.statusID)
	assert.False(t, srv.statusFlag)
	assert.Equal(t, "admin-1", srv.actorID)
}

func TestUserHandlerUpdateStatusRequiresFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeUserSrv{}
	h := NewUserHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPatch, "/users/u9/status", map[string]string{})
	c.Params = gin.Params{{Key: "id", Value: "u9"}}
	c.Set(middleware.ContextUserKey, adminClaims())

	h.UpdateStatus(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, srv.statusID)
}

func TestUserHandlerGetAllowsSelfThroughRBAC(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewUserHandler(&fakeUserSrv{})

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &token.Claims{UserID: "u5", Role: string(models.RoleStudent)})
		c.Next()
	})
	router.GET("/users/:id", middleware.RBAC(string(models.RoleAdmin), middleware.RoleSelf), h.Get)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/u5", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/u6", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeUserSrv{}
	h := NewUserHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/users/export?format=CSV&role=teacher", nil)
	c.Set(middleware.ContextUserKey, adminClaims())

	h.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.FormatCSV, srv.format)
	require.NotNil(t, srv.filter.Role)
	assert.Equal(t, models.RoleTeacher, *srv.filter.Role)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="users.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "ID\nu1\n", rec.Body.String())
}

func TestUserHandlerExportRejectsFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewUserHandler(&fakeUserSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/users/export?format=xlsx", nil)
	c.Set(middleware.ContextUserKey, adminClaims())

	h.Export(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
