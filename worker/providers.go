package worker

import (
	"context"

	"github.com/Shopify/sarama"
	"github.com/kelseyhightower/envconfig"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/medipass/hospital-worker/auth"
	"github.com/medipass/hospital-worker/cdc"
	"github.com/medipass/hospital-worker/store"
)

type DependenciesConfig struct {
	MongoURI      string `envconfig:"MEDIPASS_MONGO_URI" default:"mongodb://mongo:27017"`
	MongoDatabase string `envconfig:"MEDIPASS_MONGO_DATABASE" default:"hospital"`
	StoreBackend  string `envconfig:"MEDIPASS_STORE_BACKEND" default:"mongo"`
}

func configProvider() (DependenciesConfig, error) {
	cfg := DependenciesConfig{}
	err := envconfig.Process("", &cfg)
	return cfg, err
}

func kafkaConfigProvider(logger *zap.SugaredLogger) (cdc.Config, error) {
	sarama.Logger = &cdc.SaramaLoggerAdapter{SugaredLogger: logger}
	return cdc.NewConfig()
}

func authConfigProvider() (auth.Config, error) {
	return auth.NewConfig()
}

func authClientProvider(config auth.Config, logger *zap.SugaredLogger) auth.Client {
	return auth.NewClient(config, logger)
}

func mongoClientProvider(config DependenciesConfig, lifecycle fx.Lifecycle) (*mongo.Client, error) {
	client, err := mongo.NewClient(options.Client().ApplyURI(config.MongoURI))
	if err != nil {
		return nil, err
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Connect(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})

	return client, nil
}

func feedProvider(config cdc.Config, logger *zap.SugaredLogger) *cdc.Feed {
	return cdc.NewFeed(config, logger)
}

func storeProvider(config DependenciesConfig, client *mongo.Client, feed *cdc.Feed, logger *zap.SugaredLogger) store.Store {
	if config.StoreBackend == "memory" {
		return store.NewMemoryStore()
	}
	return store.NewMongoStore(client.Database(config.MongoDatabase), feed, logger)
}
