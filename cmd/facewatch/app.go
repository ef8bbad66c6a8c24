package main

import (
	"context"
	"fmt"

	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"facewatch/internal/alert"
	"facewatch/internal/config"
	"facewatch/internal/dashboard"
	"facewatch/internal/hub"
	"facewatch/internal/jobs"
	"facewatch/internal/model"
	"facewatch/internal/pipeline"
	"facewatch/internal/resolver"
	"facewatch/internal/utils"
	"facewatch/internal/vision"
	"facewatch/pkg/log"
)

// app holds the long-lived components shared by serve and process.
type app struct {
	conf       *config.Config
	db         *gorm.DB
	backends   *vision.Backends
	alerts     *alert.Store
	hub        *hub.Hub
	resolver   *resolver.Resolver
	reporter   dashboard.Reporter
	producer   *nsq.Producer
	aggregator dashboard.Aggregator
	redis      *redis.Client
	archiver   pipeline.Archiver
	jobs       *jobs.Store
	batch      *pipeline.Batch
	logger     *logrus.Entry
}

func newApp(ctx context.Context, conf *config.Config) (*app, error) {
	a := &app{
		conf:   conf,
		logger: log.ComponentLogger(ctx, "app"),
	}
	var err error
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.db, err = model.InitDB(conf.DB)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.alerts = alert.NewStore(a.db)
	a.hub = hub.New(log.ComponentLogger(ctx, "hub"))

	a.backends, err = vision.Load(ctx, conf.Vision, log.ComponentLogger(ctx, "vision"))
	if err != nil {
		return nil, fmt.Errorf("load vision backends: %w", err)
	}
	if a.resolver, err = a.buildResolver(ctx); err != nil {
		return nil, err
	}
	if a.reporter, err = a.buildReporter(ctx); err != nil {
		return nil, err
	}
	if a.aggregator, err = a.buildAggregator(ctx); err != nil {
		return nil, err
	}
	if a.archiver, err = a.buildArchiver(ctx); err != nil {
		return nil, err
	}

	a.jobs, err = jobs.Open(conf.JobDBDir(), log.ComponentLogger(ctx, "jobs"))
	if err != nil {
		return nil, err
	}
	if n, ferr := a.jobs.FailInterrupted(); ferr != nil {
		a.logger.WithError(ferr).Warn("failed to mark interrupted jobs")
	} else if n > 0 {
		a.logger.Warnf("%d interrupted jobs marked failed", n)
	}

	sampler := vision.NewSampler(conf.Sampler, log.ComponentLogger(ctx, "sampler"))
	a.batch = pipeline.NewBatch(a.pipelineDeps(ctx, "batch"), conf.Batch, sampler, a.jobs, vision.SaveImage, a.archiver)
	return a, nil
}

func (a *app) pipelineDeps(ctx context.Context, component string) pipeline.Deps {
	return pipeline.Deps{
		Detector: a.backends.Detector,
		Resolver: a.resolver,
		Store:    a.alerts,
		Hub:      a.hub,
		Reporter: a.reporter,
		Location: a.conf.Location,
		Logger:   log.ComponentLogger(ctx, component),
	}
}

func (a *app) buildResolver(ctx context.Context) (*resolver.Resolver, error) {
	rc := a.conf.Resolver
	logger := log.ComponentLogger(ctx, "resolver")

	gallery := resolver.Gallery{}
	if rc.GalleryPath != "" {
		g, err := resolver.LoadGallery(rc.GalleryPath)
		if err != nil {
			return nil, fmt.Errorf("load gallery: %w", err)
		}
		gallery = g
	} else {
		logger.Warn("no gallery configured, matching mode will report every face as unknown")
	}
	matcher := resolver.NewMatcher(gallery, rc.SimilarityThreshold, rc.LabelFormat)
	logger.Infof("gallery loaded with %d subjects", matcher.Len())

	var voter *resolver.Voter
	if a.backends.Classifier != nil {
		voter = resolver.NewVoter(a.backends.Embedder, a.backends.Classifier, a.backends.Augmenter,
			rc.Votes, rc.ConfidenceThreshold, rc.LabelFormat, logger)
	}
	return resolver.New(a.backends.Embedder, matcher, voter, logger), nil
}

func (a *app) buildReporter(ctx context.Context) (dashboard.Reporter, error) {
	dc := a.conf.Dashboard
	logger := log.ComponentLogger(ctx, "dashboard")

	switch dc.Reporter {
	case "http":
		return dashboard.NewHTTPReporter(dc.URL, dc.Timeout, logger), nil
	case "nsq":
		if len(dc.NSQ.NSQDAddrs) == 0 {
			return nil, fmt.Errorf("nsq reporter needs at least one nsqd address")
		}
		producer, err := nsq.NewProducer(dc.NSQ.NSQDAddrs[0], nsq.NewConfig())
		if err != nil {
			return nil, fmt.Errorf("create nsq producer: %w", err)
		}
		a.producer = producer
		return dashboard.NewNSQReporter(producer, dc.NSQ.Topic, logger), nil
	case "", "none":
		return dashboard.NopReporter{}, nil
	}
	return nil, fmt.Errorf("unknown dashboard reporter %q", dc.Reporter)
}

func (a *app) buildAggregator(ctx context.Context) (dashboard.Aggregator, error) {
	agg, rdb, err := newAggregator(ctx, a.conf.Dashboard, a.db)
	a.redis = rdb
	return agg, err
}

// newAggregator builds the aggregator selected in dc. db is only used by the
// db aggregator. The returned redis client is nil unless the redis aggregator
// was chosen, and the caller closes it.
func newAggregator(ctx context.Context, dc config.DashboardConfig, db *gorm.DB) (dashboard.Aggregator, *redis.Client, error) {
	switch dc.Aggregator {
	case "db", "":
		if db == nil {
			return nil, nil, fmt.Errorf("db aggregator needs a database")
		}
		return dashboard.NewDBAggregator(db), nil, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     dc.Redis.Addr,
			Password: dc.Redis.Password,
			DB:       dc.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return dashboard.NewRedisAggregator(rdb), rdb, nil
	}
	return nil, nil, fmt.Errorf("unknown dashboard aggregator %q", dc.Aggregator)
}

// aggregatorNeedsDB reports whether newAggregator will use the database.
func aggregatorNeedsDB(dc config.DashboardConfig) bool {
	return dc.Aggregator == "db" || dc.Aggregator == ""
}

// buildArchiver returns a nil interface when object storage is disabled.
func (a *app) buildArchiver(ctx context.Context) (pipeline.Archiver, error) {
	s3 := a.conf.S3
	if !s3.Enabled {
		return nil, nil
	}
	cli, err := utils.NewMinioClient(utils.MinioOptions{
		Endpoint:        s3.Endpoint,
		AccessKeyID:     s3.AccessKeyID,
		SecretAccessKey: s3.SecretAccessKey,
		UseSSL:          s3.UseSSL,
		Region:          s3.Region,
	})
	if err != nil {
		return nil, err
	}
	archiver := utils.NewArchiver(cli, s3.Bucket)
	if err := archiver.EnsureBucket(ctx, s3.Region); err != nil {
		return nil, err
	}
	return archiver, nil
}

func (a *app) Close() {
	if a.batch != nil {
		a.batch.Stop()
		a.batch.Wait()
	}
	if a.jobs != nil {
		a.jobs.Close()
	}
	if a.producer != nil {
		a.producer.Stop()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.backends != nil {
		a.backends.Close()
	}
	if a.db != nil {
		model.CloseDB(a.db)
	}
}
