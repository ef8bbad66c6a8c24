package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/sirupsen/logrus"

	"facewatch/pkg/log"
)

type NSQConfig struct {
	NSQDAddrs []string `yaml:"nsqdAddrs"`
	Topic     string   `yaml:"topic"`
	Channel   string   `yaml:"channel"`
}

// Consumer drains dashboard deltas from NSQ into an Aggregator.
type Consumer struct {
	conf       *NSQConfig
	ctx        context.Context
	cancel     context.CancelFunc
	consumer   *nsq.Consumer
	aggregator Aggregator
	wg         sync.WaitGroup
	logger     *logrus.Entry
}

func NewConsumer(conf *NSQConfig, aggregator Aggregator) (*Consumer, error) {
	ctx, cancel := context.WithCancel(context.Background())

	logger := log.ComponentLogger(ctx, "dashboard-consumer")

	config := nsq.NewConfig()
	config.MsgTimeout = time.Minute
	config.MaxInFlight = 10
	config.MaxAttempts = 5

	channel := conf.Channel
	if channel == "" {
		channel = "facewatch-dashboard"
	}
	consumer, err := nsq.NewConsumer(conf.Topic, channel, config)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create NSQ consumer: %w", err)
	}

	c := &Consumer{
		conf:       conf,
		ctx:        ctx,
		cancel:     cancel,
		consumer:   consumer,
		aggregator: aggregator,
		logger:     logger,
	}
	consumer.AddHandler(c)

	return c, nil
}

// HandleMessage implements nsq.Handler. Malformed deltas are dropped;
// aggregation failures are requeued by returning the error.
func (c *Consumer) HandleMessage(message *nsq.Message) error {
	c.logger.Debugf("Received NSQ message: %s", string(message.Body))

	var d Delta
	if err := json.Unmarshal(message.Body, &d); err != nil || d.Date == "" {
		c.logger.WithError(err).Warn("Dropping malformed dashboard delta")
		return nil
	}
	if d.Empty() {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()
	if err := c.aggregator.Accumulate(ctx, d); err != nil {
		c.logger.WithError(err).Errorf("Failed to accumulate delta for %s", d.Date)
		return err
	}
	return nil
}

func (c *Consumer) Start() error {
	c.logger.Info("Starting NSQ consumer...")

	err := c.consumer.ConnectToNSQDs(c.conf.NSQDAddrs)
	if err != nil {
		return fmt.Errorf("failed to connect to NSQs: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-c.ctx.Done()
		c.consumer.Stop()
		<-c.consumer.StopChan
	}()

	return nil
}

func (c *Consumer) Stop() {
	c.cancel()
	c.wg.Wait()
}
