package model

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSqlDsn = "root:123456@tcp(127.0.0.1:3306)/facewatch?charset=utf8mb4&parseTime=True&loc=Local"

type DBConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxIdleConns int    `yaml:"maxIdleConns"`
	MaxOpenConns int    `yaml:"maxOpenConns"`
	MaxLifetime  int    `yaml:"maxLifetime"`
	Debug        bool   `yaml:"debug"`
}

func DefaultDBConfig() *DBConfig {
	return &DBConfig{
		Driver:       "mysql",
		DSN:          defaultSqlDsn,
		MaxIdleConns: 100,
		MaxOpenConns: 1000,
		MaxLifetime:  60,
	}
}

func dialector(dbConfig DBConfig) (gorm.Dialector, error) {
	switch dbConfig.Driver {
	case "", "mysql":
		return mysql.Open(dbConfig.DSN), nil
	case "postgres":
		return postgres.Open(dbConfig.DSN), nil
	case "sqlite":
		return sqlite.Open(dbConfig.DSN), nil
	}
	return nil, fmt.Errorf("unsupported db driver %q", dbConfig.Driver)
}

func InitDB(dbConfig DBConfig) (*gorm.DB, error) {
	d, err := dialector(dbConfig)
	if err != nil {
		return nil, err
	}

	gormConf := &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Silent),
	}
	if dbConfig.Debug {
		gormConf.Logger = logger.Default.LogMode(logger.Info)
	}
	db, err := gorm.Open(d, gormConf)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dbConfig.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	}
	if dbConfig.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Second * time.Duration(dbConfig.MaxLifetime))

	return db, nil
}

func CloseDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func tables() []any {
	return []any{&SecurityAlert{}, &DashboardStat{}}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(tables()...)
}

// MissingTables lists the tables AutoMigrate would create, in migration order.
func MissingTables(db *gorm.DB) ([]string, error) {
	var missing []string
	for _, t := range tables() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(t); err != nil {
			return nil, err
		}
		if !db.Migrator().HasTable(t) {
			missing = append(missing, stmt.Schema.Table)
		}
	}
	return missing, nil
}
