package di

import "github.com/samber/do/v2"

// RegisterSingletons registers all service providers as singletons.
// Dependency order:
// 1. Config (no dependencies)
// 2. Logger (Config)
// 3. Cache (Config, Logger)
// 4. Store (Config, Logger, Cache)
// 5. Broker (Config, Logger)
// 6. Consumer (Config, Logger, Store, Broker).
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewConfig)
	do.Provide(i, NewLogger)
	do.Provide(i, NewCache)
	do.Provide(i, NewStore)
	do.Provide(i, NewBroker)
	do.Provide(i, NewConsumer)
}
