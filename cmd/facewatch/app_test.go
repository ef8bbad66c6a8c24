package main

import (
	"context"
	"fmt"
	"testing"

	"facewatch/internal/config"
	"facewatch/internal/dashboard"
	"facewatch/internal/model"
)

func TestNewAggregator(t *testing.T) {
	ctx := context.Background()
	db, err := model.InitDB(model.DBConfig{Driver: "sqlite", DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { model.CloseDB(db) })

	for _, kind := range []string{"", "db"} {
		dc := config.DashboardConfig{Aggregator: kind}
		if !aggregatorNeedsDB(dc) {
			t.Errorf("%q aggregator should need the database", kind)
		}
		agg, rdb, err := newAggregator(ctx, dc, db)
		if err != nil || rdb != nil {
			t.Fatalf("%q aggregator: %v, redis %v", kind, err, rdb)
		}
		if _, ok := agg.(*dashboard.DBAggregator); !ok {
			t.Errorf("%q aggregator: got %T", kind, agg)
		}
		if _, _, err := newAggregator(ctx, dc, nil); err == nil {
			t.Errorf("%q aggregator without a database should fail", kind)
		}
	}

	if aggregatorNeedsDB(config.DashboardConfig{Aggregator: "redis"}) {
		t.Error("redis aggregator should not need the database")
	}
	if _, _, err := newAggregator(ctx, config.DashboardConfig{Aggregator: "kafka"}, db); err == nil {
		t.Error("unknown aggregator should fail")
	}
}
