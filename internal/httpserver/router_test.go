package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"watchdog/internal/handler"
	"watchdog/internal/repository/memory"
	"watchdog/internal/service"
	"watchdog/pkg/config"
	"watchdog/pkg/rbac"
)

const testSecret = "test-secret"

type testServer struct {
	engine *gin.Engine
	users  *service.UserService
}

func newTestServer(t *testing.T, ready ReadinessCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	stores := memory.New().Stores()
	guard := rbac.NewGuard()
	uow := service.NewUnitOfWork(log)

	audit := service.NewAuditTrailService(stores, guard, log)
	tasks := service.NewTaskService(stores, audit, guard, uow, log)
	subtasks := service.NewSubtaskService(stores, tasks, guard, log)
	projects := service.NewProjectService(stores, tasks, audit, guard, uow, config.LifecycleConfig{}, log)
	progression := service.NewProgressionService(stores, guard, log)
	users := service.NewUserService(stores, guard, config.JWTConfig{Secret: testSecret, TTL: time.Hour}, log)

	engine := NewRouter(Handlers{
		Users:    handler.NewUserHandler(users, tasks, log),
		Projects: handler.NewProjectHandler(projects, log),
		Tasks:    handler.NewTaskHandler(tasks, subtasks, progression, log),
		Timeline: handler.NewTimelineHandler(audit, log),
	}, testSecret, ready, log)

	return &testServer{engine: engine, users: users}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/readyz", "", nil).Code)

	down := newTestServer(t, func(context.Context) error { return errors.New("db down") })
	assert.Equal(t, http.StatusServiceUnavailable, down.do(t, http.MethodGet, "/readyz", "", nil).Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/projects", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginFailure(t *testing.T) {
	s := newTestServer(t, nil)
	_, err := s.users.Bootstrap(context.Background(), "root", "root@example.com", "pw")
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/login", "", gin.H{"email": "root@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email or password", decode[map[string]string](t, w)["error"])
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	_, err := s.users.Bootstrap(context.Background(), "root", "root@example.com", "pw")
	require.NoError(t, err)
	admin := s.login(t, "root@example.com", "pw")

	w := s.do(t, http.MethodPost, "/users", admin, gin.H{"username": "alice", "email": "alice@example.com", "password": "pw"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	aliceID := int(decode[map[string]float64](t, w)["user_id"])
	alice := s.login(t, "alice@example.com", "pw")

	w = s.do(t, http.MethodPost, "/projects", alice, gin.H{"title": "Nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "unauthorized", decode[map[string]string](t, w)["error"])

	w = s.do(t, http.MethodPost, "/projects", admin, gin.H{"title": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/projects", admin, gin.H{"title": "Launch"})
	require.Equal(t, http.StatusCreated, w.Code)
	projectID := int(decode[map[string]float64](t, w)["project_id"])
	base := "/projects/" + itoa(projectID)

	w = s.do(t, http.MethodPost, base+"/members", admin, gin.H{"user_id": aliceID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]bool](t, w)["added"])

	w = s.do(t, http.MethodPost, base+"/tasks", admin, gin.H{"description": "Design", "assigned_user_id": aliceID})
	require.Equal(t, http.StatusCreated, w.Code)
	taskID := int(decode[map[string]float64](t, w)["task_id"])

	w = s.do(t, http.MethodPost, "/tasks/"+itoa(taskID)+"/subtasks", alice, gin.H{"description": "Wireframe"})
	require.Equal(t, http.StatusCreated, w.Code)
	subtaskID := int(decode[map[string]float64](t, w)["subtask_id"])

	w = s.do(t, http.MethodPatch, "/subtasks/"+itoa(subtaskID), alice, gin.H{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/tasks/"+itoa(taskID), alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	task := decode[struct {
		Progress struct {
			Mode  string `json:"mode"`
			Value int    `json:"value"`
		} `json:"progress"`
		CompletedDate *time.Time `json:"completed_date"`
	}](t, w)
	assert.Equal(t, 100, task.Progress.Value)
	assert.Equal(t, "derived", task.Progress.Mode)
	assert.NotNil(t, task.CompletedDate)

	w = s.do(t, http.MethodGet, base+"/timeline", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	timeline := decode[struct {
		Messages []struct {
			Content string `json:"content"`
			Type    string `json:"type"`
		} `json:"messages"`
	}](t, w)
	require.NotEmpty(t, timeline.Messages)
	lastMsg := timeline.Messages[len(timeline.Messages)-1]
	assert.Equal(t, "Task 'Design' has been completed", lastMsg.Content)
	assert.Equal(t, "milestone", lastMsg.Type)

	w = s.do(t, http.MethodGet, "/projects", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]any](t, w)["projects"], 1)

	w = s.do(t, http.MethodPatch, "/tasks/"+itoa(taskID), alice, gin.H{"percentage_complete": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/projects/999", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, base+"/status", admin, gin.H{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, base, admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, base, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidPathID(t *testing.T) {
	s := newTestServer(t, nil)
	_, err := s.users.Bootstrap(context.Background(), "root", "root@example.com", "pw")
	require.NoError(t, err)
	admin := s.login(t, "root@example.com", "pw")

	w := s.do(t, http.MethodGet, "/tasks/abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, handler.StatusFor(errors.New("boom")))
	assert.Equal(t, http.StatusForbidden, handler.StatusFor(&rbac.PermissionDeniedError{Reason: "requires super admin"}))
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
