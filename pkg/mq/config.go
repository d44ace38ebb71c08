package mq

import "time"

const (
	DriverRabbitMQ = "rabbitmq"
	DriverKafka    = "kafka"
	DriverMemory   = "memory"
)

type Config struct {
	Driver         string
	URL            string
	KafkaBrokers   []string
	KafkaGroupID   string
	PublishTimeout time.Duration
	Prefetch       int
}
