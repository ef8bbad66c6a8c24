package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"facewatch/internal/config"
	"facewatch/internal/dashboard"
	"facewatch/internal/model"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume dashboard deltas from NSQ",
	Long:  `Consume dashboard deltas from NSQ and add them to the daily totals`,
	Run: func(cmd *cobra.Command, args []string) {
		conf, err := config.InitConfig(configFile)
		if err != nil {
			logrus.Fatal("initConfig error, ", err.Error())
		}

		var db *gorm.DB
		if aggregatorNeedsDB(conf.Dashboard) {
			if db, err = model.InitDB(conf.DB); err != nil {
				logrus.Fatal("failed to init database", err)
			}
			defer model.CloseDB(db)
		}
		aggregator, rdb, err := newAggregator(context.Background(), conf.Dashboard, db)
		if err != nil {
			logrus.Fatal("failed to create aggregator: ", err)
		}
		if rdb != nil {
			defer rdb.Close()
		}

		c, err := dashboard.NewConsumer(&conf.Dashboard.NSQ, aggregator)
		if err != nil {
			logrus.Fatalf("Failed to create consumer: %v", err)
		}
		if err := c.Start(); err != nil {
			logrus.Fatalf("Failed to start consumer: %v", err)
		}

		termChan := make(chan os.Signal, 1)
		signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)

		<-termChan
		logrus.Infof("consumer is shutting down...")
		c.Stop()
	},
}
