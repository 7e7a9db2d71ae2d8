package cdc

import (
	"strings"

	"github.com/Shopify/sarama"
	"github.com/kelseyhightower/envconfig"
)

// Config describes the Kafka deployment carrying the document database's
// change-data-capture stream. Each collection is published to the topic
// <prefix><collection>.
type Config struct {
	Brokers       string `envconfig:"MEDIPASS_KAFKA_BROKERS" default:"kafka:9092"`
	TopicPrefix   string `envconfig:"MEDIPASS_KAFKA_TOPIC_PREFIX" default:"hospital."`
	ConsumerGroup string `envconfig:"MEDIPASS_KAFKA_CONSUMER_GROUP" default:"hospital-worker"`
	Version       string `envconfig:"MEDIPASS_KAFKA_VERSION" default:"3.2.0"`
}

func NewConfig() (Config, error) {
	config := Config{}
	err := envconfig.Process("", &config)
	return config, err
}

func (c Config) BrokerList() []string {
	return strings.Split(c.Brokers, ",")
}

func (c Config) Topic(collection string) string {
	return c.TopicPrefix + collection
}

func (c Config) SaramaConfig() (*sarama.Config, error) {
	version, err := sarama.ParseKafkaVersion(c.Version)
	if err != nil {
		return nil, err
	}

	config := sarama.NewConfig()
	config.Version = version
	config.ClientID = c.ConsumerGroup
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true
	return config, nil
}
