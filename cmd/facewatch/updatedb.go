package main

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"facewatch/internal/config"
	"facewatch/internal/model"
)

var updateDBCheckOnly bool

var updateDBCommand = &cobra.Command{
	Use:   "updatedb",
	Short: "Create or update the alert and dashboard tables",
	Long: `Create or update the security_alerts and dashboard_stats tables.
With --check, only report the tables that are missing and exit non-zero if any are.`,
	Run: func(cmd *cobra.Command, args []string) {
		conf, err := config.InitConfig(configFile)
		if err != nil {
			logrus.Fatal("initConfig error, ", err.Error())
		}
		logger := logrus.WithField("driver", conf.DB.Driver)

		db, err := model.InitDB(conf.DB)
		if err != nil {
			logger.Fatal("failed to open database: ", err)
		}
		defer model.CloseDB(db)

		missing, err := model.MissingTables(db)
		if err != nil {
			logger.Fatal("failed to inspect tables: ", err)
		}
		if updateDBCheckOnly {
			if len(missing) > 0 {
				logger.Fatalf("missing tables: %s", strings.Join(missing, ", "))
			}
			logger.Info("all tables present")
			return
		}

		if err := model.AutoMigrate(db); err != nil {
			logger.Fatal("failed to migrate tables: ", err)
		}
		if len(missing) > 0 {
			logger.Infof("created tables: %s", strings.Join(missing, ", "))
		}
		logger.Info("tables are up to date")
	},
}

func init() {
	updateDBCommand.Flags().BoolVar(&updateDBCheckOnly, "check", false, "report missing tables without migrating")
}
