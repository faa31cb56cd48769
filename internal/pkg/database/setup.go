package database

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ManuelReschke/comanda/app/models"
	"github.com/ManuelReschke/comanda/internal/pkg/config"
)

const retryDelay = 2 * time.Second

// Open connects to the configured database, retrying while it comes up.
func Open(cfg config.Database, log *logrus.Entry) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	attempt := 0
	connect := func() error {
		attempt++
		var openErr error
		db, openErr = gorm.Open(dialector, &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if openErr != nil {
			log.WithError(openErr).Warnf("failed to connect to database (try %d/%d)", attempt, cfg.MaxRetries+1)
		}
		return openErr
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryDelay
	if err := backoff.Retry(connect, backoff.WithMaxRetries(policy, cfg.MaxRetries)); err != nil {
		return nil, errors.Wrap(err, "connect database")
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(Models()...); err != nil {
			return nil, errors.Wrap(err, "auto migrate")
		}
		log.Info("database schema auto-migrated")
	}
	return db, nil
}

// Models lists every table the billing service reads or writes.
func Models() []any {
	return []any{
		&models.Company{},
		&models.Plan{},
		&models.Subscription{},
		&models.SubscriptionPayment{},
		&models.Refund{},
		&models.WebhookLog{},
		&models.EmailLog{},
	}
}

func dialectorFor(cfg config.Database) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(cfg.URL), nil
	case "mysql":
		return mysql.New(mysql.Config{
			DSN:                       cfg.URL,
			DefaultStringSize:         256,
			SkipInitializeWithVersion: false,
		}), nil
	default:
		return nil, errors.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}
