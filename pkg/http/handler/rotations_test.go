package handler

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/logrotate/pkg/domain"
)

// region Mocks

type stateRepositoryMock struct {
	mock.Mock
}

func (m *stateRepositoryMock) All(ctx context.Context) ([]domain.RotationState, error) {
	args := m.Called(ctx)
	states, _ := args.Get(0).([]domain.RotationState)
	return states, args.Error(1)
}

type rotationManagerMock struct {
	mock.Mock
}

func (m *rotationManagerMock) Rules() []domain.Rule {
	args := m.Called()
	return args.Get(0).([]domain.Rule)
}

func (m *rotationManagerMock) LastSummary() (domain.Summary, bool) {
	args := m.Called()
	return args.Get(0).(domain.Summary), args.Bool(1)
}

// endregion

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}

func TestRotationMetricHandler_ServeHTTP(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	repo := &stateRepositoryMock{}
	repo.On("All", mock.Anything).Return([]domain.RotationState{
		{TargetPath: "/var/log/app/a.log", LastRotatedAt: at},
		{TargetPath: "/var/log/other/b.log", LastRotatedAt: at},
	}, nil)

	manager := &rotationManagerMock{}
	manager.On("Rules").Return([]domain.Rule{
		{Name: "app", TargetPath: "/var/log/app/*.log"},
		{Name: "db", TargetPath: "/var/log/db/*.log"},
	})
	manager.On("LastSummary").Return(domain.Summary{
		CycleId: "cafe",
		Targets: []domain.TargetOutcome{
			{Rule: "app", Status: domain.StatusSucceeded},
			{Rule: "db", Status: domain.StatusFailed, Errors: []error{errors.New("boom")}},
		},
	}, true)

	h := NewRotationMetricHandler(discardLogger(), manager, repo)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/rotations", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body []rotationMetricResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)

	assert.Equal(t, "app", body[0].RuleName)
	assert.Equal(t, "succeeded", body[0].LastStatus)
	assert.Equal(t, "cafe", body[0].LastCycle)
	require.Len(t, body[0].Files, 1)
	assert.Equal(t, "/var/log/app/a.log", body[0].Files[0].Path)
	assert.Equal(t, at.UnixNano()/1e6, body[0].Files[0].LastRotatedAt)

	assert.Equal(t, "failed", body[1].LastStatus)
	assert.Equal(t, []string{"boom"}, body[1].LastErrors)
	assert.Empty(t, body[1].Files)
}

func TestRotationMetricHandler_ServeHTTP_RepositoryError(t *testing.T) {
	repo := &stateRepositoryMock{}
	repo.On("All", mock.Anything).Return(nil, errors.New("db is gone"))

	manager := &rotationManagerMock{}

	h := NewRotationMetricHandler(discardLogger(), manager, repo)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/rotations", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	manager.AssertNotCalled(t, "Rules")
}

func TestRotationMetricHandler_ServeHTTP_BeforeFirstCycle(t *testing.T) {
	repo := &stateRepositoryMock{}
	repo.On("All", mock.Anything).Return([]domain.RotationState{}, nil)

	manager := &rotationManagerMock{}
	manager.On("Rules").Return([]domain.Rule{{Name: "app", TargetPath: "/var/log/app/*.log"}})
	manager.On("LastSummary").Return(domain.Summary{}, false)

	h := NewRotationMetricHandler(discardLogger(), manager, repo)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/rotations", nil))

	var body []rotationMetricResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "", body[0].LastStatus)
	assert.Equal(t, "", body[0].LastCycle)
}
