package notify

import (
	"context"
	"os"

	"game-soul-technology/joker/appliance-queue-server/pkg/infra"

	"github.com/imroc/req/v3"
	"go.uber.org/zap"
)

// Notifier reports outcomes outside the websocket. Failures are logged
// by the notifier and never reach the caller.
type Notifier interface {
	Notify(ctx context.Context, outcome *Outcome)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, *Outcome) {}

// WebhookNotifier posts every outcome as json to a fixed url.
type WebhookNotifier struct {
	url        string
	httpClient *req.Client
	logger     *zap.SugaredLogger
}

func NewWebhookNotifier(url string, httpClient *req.Client, logger *zap.SugaredLogger) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		httpClient: httpClient,
		logger:     logger,
	}
}

// ProvideNotifier posts to NOTIFY_WEBHOOK_URL when it is set.
func ProvideNotifier(httpClient *req.Client, loggerFactory *infra.LoggerFactory) Notifier {
	logger := loggerFactory.Create("Notifier").Sugar()
	url := os.Getenv("NOTIFY_WEBHOOK_URL")
	if url == "" {
		logger.Infof("webhook disabled")
		return NopNotifier{}
	}

	logger.Infof("webhook enabled url[%v]", url)
	return NewWebhookNotifier(url, httpClient, logger)
}

func (n *WebhookNotifier) Notify(ctx context.Context, outcome *Outcome) {
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(outcome).
		Post(n.url)

	if err != nil {
		n.logger.Errorf("request failed outcome[%+v] %v", outcome, err)
		return
	}

	if resp.IsError() {
		n.logger.Errorf("request failed with status[%v] outcome[%+v]", resp.Status, outcome)
		return
	}

	n.logger.Debugf("notified outcome[%+v]", outcome)
}
