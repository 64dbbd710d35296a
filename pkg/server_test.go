package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"game-soul-technology/joker/appliance-queue-server/pkg/client"
	"game-soul-technology/joker/appliance-queue-server/pkg/config"
	"game-soul-technology/joker/appliance-queue-server/pkg/infra"
	"game-soul-technology/joker/appliance-queue-server/pkg/model"
	"game-soul-technology/joker/appliance-queue-server/pkg/notify"
	"game-soul-technology/joker/appliance-queue-server/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newTestServer(t *testing.T) (*Server, *queue.Service) {
	t.Helper()
	loggerFactory := infra.ProvideNopLoggerFactory()

	cfg := *config.CFG
	memory := "memory"
	cfg.Store = &memory

	serviceConfig, err := config.ProvideServiceConfig(&cfg, nil, loggerFactory)
	require.NoError(t, err)
	s, cleanup, err := ProvideStore(&cfg, nil, loggerFactory)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	service := queue.ProvideService(s, serviceConfig, queue.ProvideStats(&cfg, loggerFactory), &cfg, loggerFactory)
	hub, closeHub := client.ProvideHub(service, notify.NopNotifier{}, &cfg, loggerFactory)
	t.Cleanup(closeHub)

	application := ProvideApplication(serviceConfig, service, hub, &cfg, loggerFactory)
	return ProvideServer(application, loggerFactory), service
}

func TestQueueSnapshot(t *testing.T) {
	server, service := newTestServer(t)
	ctx := context.Background()
	_, err := service.Store().InitServing(ctx)
	require.NoError(t, err)
	require.NoError(t, service.Store().InsertTicket(ctx, &model.Ticket{Number: 1, Name: "Ana", CreatedAt: time.Now()}))
	require.NoError(t, service.Store().InsertTicket(ctx, &model.Ticket{Number: 2, Name: "Bo", CreatedAt: time.Now()}))

	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queue", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	snapshot := &QueueSnapshot{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), snapshot))
	assert.EqualValues(t, 1, snapshot.CurrentNumber)
	require.Len(t, snapshot.Tickets, 2)
	assert.Equal(t, "Ana", snapshot.Tickets[0].Name)
	assert.Equal(t, "09:00-22:00", snapshot.OpenHours)
}

func TestDebugToggle(t *testing.T) {
	server, _ := newTestServer(t)
	t.Cleanup(func() { infra.LoggerLevel.SetLevel(zapcore.InfoLevel) })

	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/debug", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, zapcore.DebugLevel, infra.LoggerLevel.Level())

	rec = httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/debug", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, zapcore.InfoLevel, infra.LoggerLevel.Level())
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
