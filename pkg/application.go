package main

import (
	"context"
	"net/http"
	"time"

	"game-soul-technology/joker/appliance-queue-server/pkg/client"
	"game-soul-technology/joker/appliance-queue-server/pkg/config"
	"game-soul-technology/joker/appliance-queue-server/pkg/infra"
	"game-soul-technology/joker/appliance-queue-server/pkg/model"
	"game-soul-technology/joker/appliance-queue-server/pkg/queue"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Application struct {
	serviceConfig *config.ServiceConfig
	service       *queue.Service
	hub           *client.Hub
	storeTimeout  time.Duration

	logger *zap.SugaredLogger
}

// QueueSnapshot is the read-only state served on GET /queue.
type QueueSnapshot struct {
	CurrentNumber  int64           `json:"currentNumber"`
	Tickets        []*model.Ticket `json:"tickets"`
	IsServiceOpen  bool            `json:"isServiceOpen"`
	OpenHours      string          `json:"openHours"`
	AvgWaitMsec    int64           `json:"avgWaitMsec"`
	AvgServiceMsec int64           `json:"avgServiceMsec"`
	ServedCount    uint64          `json:"servedCount"`
}

func ProvideApplication(serviceConfig *config.ServiceConfig, service *queue.Service, hub *client.Hub, config *config.Config, loggerFactory *infra.LoggerFactory) *Application {
	return &Application{
		serviceConfig: serviceConfig,
		service:       service,
		hub:           hub,
		storeTimeout:  config.StoreTimeout(),
		logger:        loggerFactory.Create("Application").Sugar(),
	}
}

func (a *Application) Run(ctx context.Context) {
	go a.serviceConfig.Run(ctx)
	go a.hub.Run(ctx)
}

func (a *Application) HandleWs(c echo.Context) error {
	return a.hub.ServeWs(c.Response(), c.Request())
}

func (a *Application) HandleQueue(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), a.storeTimeout)
	defer cancel()

	serving, err := a.service.Store().InitServing(ctx)
	if err != nil {
		a.logger.Errorf("cannot read serving %v", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable")
	}
	tickets, err := a.service.Store().Tickets(ctx)
	if err != nil {
		a.logger.Errorf("cannot read tickets %v", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable")
	}

	waiting := make([]*model.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		if ticket.Number >= serving {
			waiting = append(waiting, ticket)
		}
	}

	stats := a.service.Stats().Snapshot()
	return c.JSON(http.StatusOK, &QueueSnapshot{
		CurrentNumber:  serving,
		Tickets:        waiting,
		IsServiceOpen:  a.serviceConfig.IsOpen(time.Now()),
		OpenHours:      a.serviceConfig.Window().String(),
		AvgWaitMsec:    stats.AvgWaitDuration.Milliseconds(),
		AvgServiceMsec: stats.AvgServiceDuration.Milliseconds(),
		ServedCount:    stats.ServedCount,
	})
}
