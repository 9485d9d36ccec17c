// standalone worker draining the kafka or rabbitmq queue
package main

import (
	"errors"
	"strings"

	"github.com/ds124wfegd/facesvg/config"
	"github.com/ds124wfegd/facesvg/internal/appServer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))

	viperInstance, err := config.LoadConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logrus.Fatalf("Cannot load config. Error: {%s}", err.Error())
		}
		// env-only deployment
		viperInstance = viper.New()
		viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viperInstance.AutomaticEnv()
		config.SetDefaults(viperInstance)
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		logrus.Fatalf("Cannot parse config. Error: {%s}", err.Error())
	}

	cfg.Queue.Driver = config.GetEnv("QUEUE_DRIVER", cfg.Queue.Driver)
	if brokers := config.GetEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Queue.Kafka.Brokers = strings.Split(brokers, ",")
	}
	cfg.Queue.Kafka.Topic = config.GetEnv("KAFKA_TOPIC", cfg.Queue.Kafka.Topic)
	cfg.Queue.Kafka.GroupID = config.GetEnv("KAFKA_GROUP_ID", cfg.Queue.Kafka.GroupID)

	if err := appServer.RunProcessor(cfg); err != nil {
		logrus.Fatalf("processor stopped: %s", err.Error())
	}
}
