package app

import (
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/dukanshop/dukan/config"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SchedulerProvider provides the cron scheduler
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// AppContext combines the capabilities handlers and jobs rely on.
type AppContext interface {
	DBProvider
	ConfigProvider
	SchedulerProvider
}
