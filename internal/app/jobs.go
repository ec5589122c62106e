package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

const sentEventRetention = 30 * 24 * time.Hour

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@every 1h", func() {
		a.SchedPurgeAbandonedCarts()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@every 10m", func() {
		a.SchedPurgeAuthSessions()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", func() {
		a.SchedPruneSentEvents()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}
}

// SchedPurgeAbandonedCarts deletes carts idle past the configured TTL.
func (a *Application) SchedPurgeAbandonedCarts() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	ttl := time.Duration(a.appConfig.Shop.CartTTLHours) * time.Hour
	if _, err := a.cartSvc.PurgeAbandoned(context.Background(), ttl); err != nil {
		zap.L().Error("abandoned cart purge failed", zap.Error(err))
	}
}

// SchedPurgeAuthSessions removes used and expired Telegram login codes.
func (a *Application) SchedPurgeAuthSessions() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	if _, err := a.usersSvc.PurgeAuthSessions(context.Background()); err != nil {
		zap.L().Error("auth session purge failed", zap.Error(err))
	}
}

// SchedPruneSentEvents trims delivered outbox rows past retention.
func (a *Application) SchedPruneSentEvents() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	if _, err := a.dispatcher.PruneSent(context.Background(), sentEventRetention); err != nil {
		zap.L().Error("sent event prune failed", zap.Error(err))
	}
}
