//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"typegraph-backend/internal/config"
	"typegraph-backend/internal/interfaces/http/handlers"
	"typegraph-backend/internal/interfaces/http/rest"
	"typegraph-backend/internal/interfaces/http/validation"
	"typegraph-backend/internal/service/registry"
)

// ObservabilityProviders builds logging, tracing and metrics.
var ObservabilityProviders = wire.NewSet(
	provideLogging,
	provideLogger,
	provideTracerProvider,
	provideTracer,
	provideCollector,
)

// StoreProviders opens the driver and applies the decorator chain.
var StoreProviders = wire.NewSet(
	provideNeo4jStore,
	provideDecoratorChain,
	provideStore,
	provideBreakerState,
	providePinger,
)

// ServiceProviders builds the graph services.
var ServiceProviders = wire.NewSet(
	provideGateway,
	registry.NewService,
	provideReplace,
	provideImporter,
	providePoller,
)

// InterfaceProviders builds the HTTP surface.
var InterfaceProviders = wire.NewSet(
	validation.GetValidator,
	handlers.NewTypeHandler,
	handlers.NewNodeHandler,
	handlers.NewImportHandler,
	handlers.NewViewHandler,
	handlers.NewHealthHandler,
	wire.Struct(new(rest.Handlers), "*"),
	rest.NewRouter,
	provideHandler,
)

// SuperSet combines every provider set.
var SuperSet = wire.NewSet(
	ObservabilityProviders,
	StoreProviders,
	ServiceProviders,
	InterfaceProviders,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer builds the application. The returned cleanup closes
// the driver, flushes traces and syncs the logger, in that order.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
