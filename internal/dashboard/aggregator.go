package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"facewatch/internal/model"
)

var ErrNotFound = errors.New("no stats for date")

// Aggregator accumulates deltas into per-day totals.
type Aggregator interface {
	Accumulate(ctx context.Context, d Delta) error
	Get(ctx context.Context, date string) (*model.DashboardStat, error)
}

type DBAggregator struct {
	db *gorm.DB
}

func NewDBAggregator(db *gorm.DB) *DBAggregator {
	return &DBAggregator{db: db}
}

func (a *DBAggregator) Accumulate(ctx context.Context, d Delta) error {
	if err := model.IncrDashboardStat(a.db.WithContext(ctx), d.toModel()); err != nil {
		return fmt.Errorf("accumulate %s: %w", d.Date, err)
	}
	return nil
}

func (a *DBAggregator) Get(ctx context.Context, date string) (*model.DashboardStat, error) {
	s, err := model.GetDashboardStat(a.db.WithContext(ctx), date)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNotFound
	}
	return s, nil
}

const (
	fieldTotal        = "total_faces_detected"
	fieldRecognized   = "recognized_faces"
	fieldUnrecognized = "unrecognized_faces"
	fieldLogin        = "total_login_attempts"
)

// RedisAggregator keeps one hash per day under dashboard:<date>.
type RedisAggregator struct {
	client *redis.Client
}

func NewRedisAggregator(client *redis.Client) *RedisAggregator {
	return &RedisAggregator{client: client}
}

func redisKey(date string) string {
	return "dashboard:" + date
}

func (a *RedisAggregator) Accumulate(ctx context.Context, d Delta) error {
	key := redisKey(d.Date)
	_, err := a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, fieldTotal, d.TotalFacesDetected)
		pipe.HIncrBy(ctx, key, fieldRecognized, d.RecognizedFaces)
		pipe.HIncrBy(ctx, key, fieldUnrecognized, d.UnrecognizedFaces)
		pipe.HIncrBy(ctx, key, fieldLogin, d.TotalLoginAttempts)
		return nil
	})
	if err != nil {
		return fmt.Errorf("accumulate %s: %w", d.Date, err)
	}
	return nil
}

func (a *RedisAggregator) Get(ctx context.Context, date string) (*model.DashboardStat, error) {
	vals, err := a.client.HGetAll(ctx, redisKey(date)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}
	parse := func(field string) int64 {
		n, _ := strconv.ParseInt(vals[field], 10, 64)
		return n
	}
	return &model.DashboardStat{
		Date:               date,
		TotalFacesDetected: parse(fieldTotal),
		RecognizedFaces:    parse(fieldRecognized),
		UnrecognizedFaces:  parse(fieldUnrecognized),
		TotalLoginAttempts: parse(fieldLogin),
	}, nil
}

func (a *RedisAggregator) Close() error {
	return a.client.Close()
}
