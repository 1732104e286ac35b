package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"user-management-service/internal/adapter/cache"
	"user-management-service/internal/adapter/db/postgres"
	"user-management-service/internal/adapter/gin/handler"
	"user-management-service/internal/adapter/gin/middleware"
	"user-management-service/internal/adapter/repository/cached"
	"user-management-service/internal/usecase/user"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	redis  *miniredis.Miniredis
}

func openTestDB(t testing.TB) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, postgres.AutoMigrate(db))
	return db
}

func setupEnv(t *testing.T, withCache bool) *testEnv {
	log := zaptest.NewLogger(t)
	db := openTestDB(t)

	var repo user.Repository = postgres.NewUserRepoPG(db, log)
	var mr *miniredis.Miniredis
	if withCache {
		mr = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		repo = cached.NewCachedUserRepository(repo, cache.NewRedisUserCache(client, time.Minute, log), log)
	}

	h := handler.NewUserHandler(user.New(repo, log), log)
	checks := map[string]Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	return &testEnv{
		router: SetupRouter(h, nil, checks, "user-management-service", log),
		db:     db,
		redis:  mr,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) create(t *testing.T, first, last, email string) user.UserDto {
	t.Helper()
	w := e.do(http.MethodPost, "/api/users",
		fmt.Sprintf(`{"firstName":%q,"lastName":%q,"email":%q}`, first, last, email))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created user.UserDto
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	return created
}

func decodeUser(t *testing.T, w *httptest.ResponseRecorder) user.UserDto {
	t.Helper()
	var u user.UserDto
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	return u
}

func TestRouter_CreateThenGet(t *testing.T) {
	env := setupEnv(t, false)

	created := env.create(t, "John", "Doe", "john@example.com")
	require.NotZero(t, created.ID)

	w := env.do(http.MethodGet, fmt.Sprintf("/api/users/%d", created.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created, decodeUser(t, w))
}

func TestRouter_DuplicateEmail(t *testing.T) {
	env := setupEnv(t, false)

	first := env.create(t, "John", "Doe", "dup@example.com")

	w := env.do(http.MethodPost, "/api/users", `{"firstName":"Jane","lastName":"Roe","email":"dup@example.com"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodGet, fmt.Sprintf("/api/users/%d", first.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, decodeUser(t, w))
}

func TestRouter_MissingField(t *testing.T) {
	env := setupEnv(t, false)

	w := env.do(http.MethodPost, "/api/users", `{"firstName":"John","lastName":"Doe"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")
}

func TestRouter_UpdatePreservesID(t *testing.T) {
	env := setupEnv(t, false)

	created := env.create(t, "John", "Doe", "john@example.com")
	path := fmt.Sprintf("/api/users/%d", created.ID)

	w := env.do(http.MethodPut, path, `{"firstName":"Johnny","lastName":"Doe","email":"johnny@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)

	updated := decodeUser(t, w)
	assert.Equal(t, user.UserDto{ID: created.ID, FirstName: "Johnny", LastName: "Doe", Email: "johnny@example.com"}, updated)

	w = env.do(http.MethodGet, path, "")
	assert.Equal(t, updated, decodeUser(t, w))
}

func TestRouter_UpdateUsesPathID(t *testing.T) {
	env := setupEnv(t, false)

	a := env.create(t, "A", "One", "a@example.com")
	b := env.create(t, "B", "Two", "b@example.com")

	body := fmt.Sprintf(`{"id":%d,"firstName":"A","lastName":"Changed","email":"a@example.com"}`, b.ID)
	w := env.do(http.MethodPut, fmt.Sprintf("/api/users/%d", a.ID), body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, a.ID, decodeUser(t, w).ID)

	w = env.do(http.MethodGet, fmt.Sprintf("/api/users/%d", b.ID), "")
	assert.Equal(t, b, decodeUser(t, w))
}

func TestRouter_AbsentID(t *testing.T) {
	env := setupEnv(t, false)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/users/9999", "").Code)
	assert.Equal(t, http.StatusNotFound,
		env.do(http.MethodPut, "/api/users/9999", `{"firstName":"X","lastName":"Y","email":"x@y.com"}`).Code)

	w := env.do(http.MethodDelete, "/api/users/9999", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, handler.DeletedMessage, w.Body.String())
}

func TestRouter_ListAll(t *testing.T) {
	env := setupEnv(t, false)

	w := env.do(http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	want := []user.UserDto{
		env.create(t, "A", "One", "a@example.com"),
		env.create(t, "B", "Two", "b@example.com"),
		env.create(t, "C", "Three", "c@example.com"),
	}

	w = env.do(http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got []user.UserDto
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.ElementsMatch(t, want, got)
}

func TestRouter_Delete(t *testing.T) {
	env := setupEnv(t, false)

	created := env.create(t, "John", "Doe", "john@example.com")
	path := fmt.Sprintf("/api/users/%d", created.ID)

	w := env.do(http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, handler.DeletedMessage, w.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, path, "").Code)
}

func TestRouter_CacheInvalidation(t *testing.T) {
	env := setupEnv(t, true)

	created := env.create(t, "John", "Doe", "john@example.com")
	path := fmt.Sprintf("/api/users/%d", created.ID)
	key := fmt.Sprintf("user:%d", created.ID)

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, path, "").Code)
	require.True(t, env.redis.Exists(key))

	w := env.do(http.MethodPut, path, `{"firstName":"John","lastName":"Doe","email":"new@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.redis.Exists(key))

	w = env.do(http.MethodGet, path, "")
	assert.Equal(t, "new@example.com", decodeUser(t, w).Email)

	require.Equal(t, http.StatusOK, env.do(http.MethodDelete, path, "").Code)
	assert.False(t, env.redis.Exists(key))
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, path, "").Code)
}

func TestRouter_HealthAndReady(t *testing.T) {
	env := setupEnv(t, false)

	w := env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = env.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"database":"ok"}}`, w.Body.String())
}

func TestRouter_NotReady(t *testing.T) {
	log := zap.NewNop()
	checks := map[string]Check{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}
	r := SetupRouter(handler.NewUserHandler(nil, log), nil, checks, "user-management-service", log)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"not_ready","checks":{"redis":"connection refused"}}`, w.Body.String())
}

func TestRouter_SwaggerDoc(t *testing.T) {
	env := setupEnv(t, false)

	w := env.do(http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, w.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "2.0", doc["swagger"])
	assert.Contains(t, doc["paths"], "/api/users/{id}")
}

func TestRouter_RateLimited(t *testing.T) {
	log := zaptest.NewLogger(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := postgres.NewUserRepoPG(openTestDB(t), log)
	h := handler.NewUserHandler(user.New(repo, log), log)
	rl := middleware.NewRateLimiter(client, middleware.RateLimiterConfig{
		RequestsPerSecond: 0.001,
		BurstCapacity:     2,
		Enabled:           true,
	}, log)
	r := SetupRouter(h, rl, nil, "user-management-service", log)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Health endpoints are not limited
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
