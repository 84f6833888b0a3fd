// Package pkg glues the domain, application and infrastructure fx modules
// into one module a host binary provides to its own fx.App.
package pkg

import (
	"go.uber.org/fx"

	"github.com/pericarp/es/pkg/application"
	"github.com/pericarp/es/pkg/domain"
	"github.com/pericarp/es/pkg/infrastructure"
)

// Module is an alias for PericarpModule for convenience.
var Module = PericarpModule

// PericarpModule combines all layer modules into a single module.
// ApplicationModule provides CommandBus/QueryBus; InfrastructureModule
// provides the CacheProvider and the Prometheus-backed MetricsCollector
// ApplicationModule deliberately omits, so the two compose without either
// constructing application.MetricsCollector twice.
var PericarpModule = fx.Options(
	domain.DomainModule,
	infrastructure.InfrastructureModule,
	application.ApplicationModule,
)

// NewApp creates a new Fx application with all Pericarp modules.
func NewApp(additionalOptions ...fx.Option) *fx.App {
	options := []fx.Option{PericarpModule}
	options = append(options, additionalOptions...)

	return fx.New(options...)
}

// RunApp creates and runs a new Fx application with graceful shutdown.
func RunApp(additionalOptions ...fx.Option) {
	app := NewApp(additionalOptions...)
	app.Run()
}
