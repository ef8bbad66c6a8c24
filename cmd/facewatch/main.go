package main

import (
	"os"

	"github.com/spf13/cobra"

	"facewatch/internal/version"
	"facewatch/pkg/log"
)

var (
	logLevel   string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "facewatch",
	Short: "facewatch is a face recognition and alerting service",
	Long: `facewatch recognizes faces in live camera streams and uploaded videos,
records every result as a security alert and pushes it to connected viewers.
Version: ` + version.VERSION + `/` + version.COMMIT,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.InitLog(logLevel)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "etc/config.yaml", "Path to config file")

	rootCmd.AddCommand(serveCommand)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(consumeCmd)
	rootCmd.AddCommand(updateDBCommand)
	rootCmd.AddCommand(jobCmd)
}

func main() {
	Execute()
}
