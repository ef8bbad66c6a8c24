package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"facewatch/internal/config"
	"facewatch/internal/jobs"
	"facewatch/internal/resolver"
)

var processMode string

var processCmd = &cobra.Command{
	Use:   "process <video>",
	Short: "Process a video file in the foreground",
	Long:  `Sample a video, resolve every distinct face track and record the results as alerts.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runProcess(args[0])
	},
}

func init() {
	processCmd.Flags().StringVarP(&processMode, "mode", "m", string(resolver.ModeMatching), "Resolution mode (matching, ml)")
}

func runProcess(videoPath string) {
	mode, err := resolver.ParseMode(processMode)
	if err != nil {
		logrus.Fatal(err)
	}
	if _, err := os.Stat(videoPath); err != nil {
		logrus.Fatalf("video not found: %v", err)
	}

	conf, err := config.InitConfig(configFile)
	if err != nil {
		logrus.Fatal("initConfig error, ", err.Error())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, conf)
	if err != nil {
		logrus.Fatalf("init error, %s", err.Error())
	}
	defer a.Close()

	job := jobs.NewJob(videoPath, string(mode))
	if err := a.jobs.Put(job); err != nil {
		logrus.Fatalf("record job: %v", err)
	}

	sum, runErr := a.batch.Run(ctx, job.Id, videoPath, mode)
	a.jobs.Update(job.Id, func(j *jobs.Job) {
		j.Frames, j.Tracks, j.Events = sum.Frames, sum.Tracks, sum.Events
		if runErr != nil {
			j.Status = jobs.StatusFailed
			j.Error = runErr.Error()
		} else {
			j.Status = jobs.StatusFinished
		}
	})
	if runErr != nil {
		logrus.Errorf("job %s failed: %v", job.Id, runErr)
		return
	}
	logrus.Infof("job %s finished: %d frames, %d tracks, %d events", job.Id, sum.Frames, sum.Tracks, sum.Events)
}
