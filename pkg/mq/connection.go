package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName 生命周期事件所在的 topic exchange
	ExchangeName = "watchdog.lifecycle"
	// DeadLetterExchange 消费失败超过重试次数后的去向
	DeadLetterExchange = "watchdog.lifecycle.dlx"
)

// NewConnection creates a new RabbitMQ connection.
func NewConnection(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareExchange declares the lifecycle exchange and its dead letter exchange.
func DeclareExchange(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	return ch.ExchangeDeclare(DeadLetterExchange, "topic", true, false, false, false, nil)
}
