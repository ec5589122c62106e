package app

import (
	"context"
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/dukanshop/dukan/config"
	"github.com/dukanshop/dukan/internal/cart"
	"github.com/dukanshop/dukan/internal/catalog"
	"github.com/dukanshop/dukan/internal/checkout"
	"github.com/dukanshop/dukan/internal/domain"
	"github.com/dukanshop/dukan/internal/mailer"
	"github.com/dukanshop/dukan/internal/notify"
	"github.com/dukanshop/dukan/internal/users"
)

const (
	DefaultCatalogCacheSize = 1024
	DefaultCatalogCacheTTL  = 5 * time.Minute
)

type Application struct {
	appConfig  *config.AppConfig
	gormDB     *gorm.DB
	sched      *cron.Cron
	ids        *snowflake.Node
	cache      *catalog.Cache
	mailer     *mailer.Mailer
	telegram   *notify.TelegramClient
	dispatcher *notify.Dispatcher

	cartSvc     *cart.Service
	catalogSvc  *catalog.Service
	usersSvc    *users.Service
	checkoutEng *checkout.Engine
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
	a.initServices()
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	// Initialize zap logger
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	zapConfig.OutputPaths = []string{"stdout"}
	if cfg.Logger.FileEnable {
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, cfg.Logger.Filename)
	}

	// Build logger with file rotation if enabled
	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		logger, err = zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)

	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	a.gormDB = getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	a.checkSuper()

	a.initServices()
	a.initJob()
}

// initServices wires the domain services around the current database
// handle. Called from Init and again whenever tests swap the handle.
func (a *Application) initServices() {
	if a.ids == nil {
		node, err := snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
		a.ids = node
	}
	if a.cache == nil {
		a.cache = catalog.NewCache(DefaultCatalogCacheSize, DefaultCatalogCacheTTL)
	}
	a.cache.InvalidateCatalog()
	a.mailer = mailer.NewMailer(a.appConfig.Smtp)
	a.telegram = notify.NewTelegramClient(a.appConfig.Telegram)

	dispatcher, err := notify.NewDispatcher(a.gormDB, a.telegram,
		notify.Options{
			MaxRetries:  a.appConfig.Shop.NotifyMaxRetries,
			BaseBackoff: time.Duration(a.appConfig.Shop.NotifyBackoffSeconds) * time.Second,
		})
	if err != nil {
		panic(err)
	}
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	a.dispatcher = dispatcher

	a.cartSvc = cart.NewService(a.gormDB)
	a.catalogSvc = catalog.NewService(a.gormDB, a.cache)
	a.usersSvc = users.NewService(a.gormDB, a.mailer, a.appConfig.Web.JwtSecret,
		time.Duration(a.appConfig.Shop.OtpTTLMinutes)*time.Minute)
	a.checkoutEng = checkout.NewEngine(a.gormDB, a.ids, a.cache, a.dispatcher.Kick)
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	if track {
		if err := a.gormDB.Debug().Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
		}
	} else {
		if err := a.gormDB.Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
		}
	}
	return nil
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func (a *Application) Cache() *catalog.Cache {
	return a.cache
}

func (a *Application) CartService() *cart.Service {
	return a.cartSvc
}

func (a *Application) CatalogService() *catalog.Service {
	return a.catalogSvc
}

func (a *Application) UsersService() *users.Service {
	return a.usersSvc
}

func (a *Application) CheckoutEngine() *checkout.Engine {
	return a.checkoutEng
}

func (a *Application) Dispatcher() *notify.Dispatcher {
	return a.dispatcher
}

func (a *Application) Telegram() *notify.TelegramClient {
	return a.telegram
}

// StartBackgroundJobs starts the cron scheduler and the outbox dispatcher.
func (a *Application) StartBackgroundJobs(ctx context.Context) {
	if a.sched != nil {
		a.sched.Start()
	}
	if a.dispatcher != nil {
		a.dispatcher.Start(ctx)
	}
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	_ = zap.L().Sync()
}
