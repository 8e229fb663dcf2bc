package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"ContactBook/config"
)

var (
	conn     *amqp.Connection
	connOnce sync.Once
	connErr  error
)

// Init 连接 RabbitMQ 并声明联系人事件 exchange，EVENTS_ENABLED=false 时跳过
func Init() error {
	if !config.Cfg.EventsEnabled {
		return nil
	}

	connOnce.Do(func() {
		c, err := amqp.Dial(config.Cfg.GetRabbitMQURL())
		if err != nil {
			connErr = fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			return
		}

		if err := DeclareTopology(c, config.Cfg.ContactEventsExchange); err != nil {
			_ = c.Close()
			connErr = err
			return
		}

		conn = c
	})

	return connErr
}

// DeclareTopology 声明 topic exchange，routing key 即事件类型
func DeclareTopology(c *amqp.Connection, exchange string) error {
	ch, err := c.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return nil
}

func Connection() *amqp.Connection {
	return conn
}

func Close(ctx context.Context) error {
	pubMutex.Lock()
	if publisherCh != nil {
		_ = publisherCh.Close()
		publisherCh = nil
	}
	pubMutex.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
