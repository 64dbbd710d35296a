package infra

import (
	"time"

	"github.com/imroc/req/v3"
)

func ProvideHttpClient() *req.Client {
	// Timeout of all requests, retry a failed request a few times with
	// a fixed interval.
	return req.C().
		SetTimeout(10 * time.Second).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1 * time.Second)
}
