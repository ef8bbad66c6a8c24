package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"facewatch/internal/config"
	"facewatch/internal/pipeline"
	"facewatch/internal/server"
	"facewatch/internal/vision"
	"facewatch/pkg/log"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Start facewatch server",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
}

func runServe() {
	conf, err := config.InitConfig(configFile)
	if err != nil {
		logrus.Fatal("initConfig error, ", err.Error())
	}

	logrus.Debugf("config: %+v", conf)

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	a, err := newApp(ctx, conf)
	if err != nil {
		logrus.Fatalf("init error, %s", err.Error())
	}
	defer a.Close()

	live := pipeline.NewLive(a.pipelineDeps(ctx, "live"), conf.Live.Votes)
	defer live.Flush()

	srv, err := server.NewServer(ctx, &server.Config{
		Addr:         conf.Addr,
		SSLCert:      conf.SSLCert,
		SSLKey:       conf.SSLKey,
		UploadDir:    conf.Batch.UploadDir,
		WriteTimeout: conf.Live.WriteTimeout,
	}, server.Deps{
		Hub:        a.hub,
		Live:       live,
		Decode:     vision.DecodeFrame,
		Batch:      a.batch,
		Jobs:       a.jobs,
		Alerts:     a.alerts,
		Aggregator: a.aggregator,
		Archiver:   a.archiver,
	})
	if err != nil {
		logrus.Fatalf("newServer error, %s", err.Error())
	}
	go srv.Start()

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)

	<-termChan
	log.GetLogger(ctx).Infof("server is shutting down...")
	srv.Shutdown()
}
