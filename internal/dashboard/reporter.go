package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type Reporter interface {
	Report(ctx context.Context, d Delta) Outcome
}

type NopReporter struct{}

func (NopReporter) Report(context.Context, Delta) Outcome {
	return Outcome{}
}

const DefaultReportTimeout = 2 * time.Second

// HTTPReporter posts deltas as JSON to an aggregator endpoint.
type HTTPReporter struct {
	url     string
	httpCli *http.Client
	logger  *logrus.Entry
}

func NewHTTPReporter(url string, timeout time.Duration, logger *logrus.Entry) *HTTPReporter {
	if timeout <= 0 {
		timeout = DefaultReportTimeout
	}
	return &HTTPReporter{
		url:     url,
		httpCli: &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (r *HTTPReporter) Report(ctx context.Context, d Delta) Outcome {
	body, err := json.Marshal(d)
	if err != nil {
		return Failed(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return Failed(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpCli.Do(req)
	if err != nil {
		r.logger.WithError(err).Debug("dashboard update failed")
		return Failed(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		err = fmt.Errorf("dashboard returned status %d", resp.StatusCode)
		r.logger.WithError(err).Debug("dashboard update rejected")
		return Failed(err)
	}
	return Delivered()
}

// Publisher is the subset of *nsq.Producer the reporter needs.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// NSQReporter publishes deltas to a topic drained by a Consumer.
type NSQReporter struct {
	producer Publisher
	topic    string
	logger   *logrus.Entry
}

func NewNSQReporter(producer Publisher, topic string, logger *logrus.Entry) *NSQReporter {
	return &NSQReporter{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

func (r *NSQReporter) Report(_ context.Context, d Delta) Outcome {
	body, err := json.Marshal(d)
	if err != nil {
		return Failed(err)
	}
	if err := r.producer.Publish(r.topic, body); err != nil {
		r.logger.WithError(err).Debugf("publish dashboard delta to %s failed", r.topic)
		return Failed(err)
	}
	return Delivered()
}
