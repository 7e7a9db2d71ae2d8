package worker

import (
	"net/http"

	"go.uber.org/fx"

	"github.com/medipass/hospital-worker/appconfig"
	"github.com/medipass/hospital-worker/cdc"
	"github.com/medipass/hospital-worker/dashboard"
	"github.com/medipass/hospital-worker/hospitals"
	"github.com/medipass/hospital-worker/patients"
	"github.com/medipass/hospital-worker/reception"
	"github.com/medipass/hospital-worker/rfid"
	"github.com/medipass/hospital-worker/session"
	"github.com/medipass/hospital-worker/users"
)

var dependencies = fx.Provide(
	loggerProvider,
	configProvider,
	kafkaConfigProvider,
	authConfigProvider,
	authClientProvider,
	mongoClientProvider,
	feedProvider,
	storeProvider,
	healthCheckServerProvider,
)

var Modules = []fx.Option{
	dependencies,
	session.Module,
	hospitals.Module,
	users.Module,
	users.ConsumerModule,
	patients.Module,
	rfid.Module,
	dashboard.Module,
	reception.Module,
	appconfig.Module,
}

func New() *fx.App {
	invokes := fx.Invoke(
		startConsumers,
		startHealthCheckServer,
	)
	return fx.New(append(Modules, invokes)...)
}

type Components struct {
	fx.In

	Consumers         []cdc.Consumer `group:"consumers"`
	HealthCheckServer *http.Server
	Lifecycle         fx.Lifecycle
	Shutdowner        fx.Shutdowner
}

func startConsumers(components Components) {
	for _, consumer := range components.Consumers {
		cdc.AttachConsumerHooks(consumer, components.Lifecycle, components.Shutdowner)
	}
}
