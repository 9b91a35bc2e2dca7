package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/omarluq/enginesync/internal/baseurl"
	"github.com/omarluq/enginesync/internal/logging"
)

// StoreService wraps the base URL store.
type StoreService struct {
	Store *baseurl.Store
}

// NewStore seeds the base URL store from the cache.
func NewStore(i do.Injector) (*StoreService, error) {
	cfg := do.MustInvoke[*ConfigService](i).Get()
	logSvc := do.MustInvoke[*LoggerService](i)
	cacheSvc := do.MustInvoke[*CacheService](i)

	store := baseurl.New(context.Background(), cacheSvc.Cache, baseurl.Options{
		DefaultURL: cfg.GetDefaultBaseURL(),
		Key:        cfg.Cache.GetKey(),
		TTL:        cfg.Cache.GetTTL(),
	}, logging.Component(logSvc.Logger, "baseurl"))

	return &StoreService{Store: store}, nil
}
