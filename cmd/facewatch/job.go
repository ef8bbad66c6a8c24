package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"facewatch/internal/config"
	"facewatch/internal/dao"
	"facewatch/internal/jobs"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Batch job tools",
	Long:  `Inspect the batch jobs recorded in the local job store. The server must be stopped.`,
}

var listJobCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all jobs",
	Run: func(cmd *cobra.Command, args []string) {
		listJobs()
	},
}

var getJobCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		getJob(args[0])
	},
}

var deleteJobCmd = &cobra.Command{
	Use:     "delete <job-id>",
	Aliases: []string{"rm", "del"},
	Short:   "Delete a job record",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deleteJob(args[0])
	},
}

func init() {
	jobCmd.AddCommand(listJobCmd)
	jobCmd.AddCommand(getJobCmd)
	jobCmd.AddCommand(deleteJobCmd)
}

func openJobStore() *jobs.Store {
	conf, err := config.InitConfig(configFile)
	if err != nil {
		logrus.Fatal("initConfig error, ", err.Error())
	}
	store, err := jobs.Open(conf.JobDBDir(), logrus.WithField("component", "jobs"))
	if err != nil {
		logrus.WithError(err).Fatalf("open job store")
	}
	return store
}

func printJob(job *jobs.Job) {
	data, err := json.MarshalIndent(dao.FromJob(job), "", "  ")
	if err != nil {
		logrus.WithError(err).Errorf("marshal job %s to JSON", job.Id)
		return
	}
	fmt.Println(string(data))
}

func listJobs() {
	store := openJobStore()
	defer store.Close()

	all, err := store.List()
	if err != nil {
		logrus.WithError(err).Fatalf("list jobs")
	}
	if len(all) == 0 {
		logrus.Info("No jobs found")
		return
	}
	for _, job := range all {
		printJob(job)
	}
}

func getJob(id string) {
	store := openJobStore()
	defer store.Close()

	job, err := store.Get(id)
	if errors.Is(err, jobs.ErrNotFound) {
		logrus.Errorf("job %s not found", id)
		return
	} else if err != nil {
		logrus.WithError(err).Fatalf("get job")
	}
	printJob(job)
}

func deleteJob(id string) {
	store := openJobStore()
	defer store.Close()

	if err := store.Delete(id); err != nil {
		logrus.WithError(err).Errorf("delete job %s", id)
		return
	}
	logrus.Infof("delete job %s success", id)
}
