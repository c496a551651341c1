package messaging

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	kafkago "github.com/segmentio/kafka-go"

	"fleettrack/config"
)

type MessageHandler func(topic string, payload []byte)

// Client is the unified messaging client (Kafka or MQTT). Kafka is the
// default for datacenter deployments; MQTT fits fleets whose devices sit
// behind cellular links with an MQTT broker at the edge.
type Client struct {
	mu       sync.RWMutex
	cfg      *config.MessagingConfig
	backend  string
	mqttConn mqtt.Client
	kafka    *kafkaState
	handlers map[string]MessageHandler
}

type kafkaState struct {
	readers map[string]*kafkago.Reader
	writer  *kafkago.Writer
}

func NewClient(cfg *config.MessagingConfig) *Client {
	return &Client{
		cfg:      cfg,
		backend:  cfg.Backend,
		handlers: make(map[string]MessageHandler),
	}
}

func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.backend {
	case "mqtt":
		return c.connectMQTT()
	case "kafka":
		return c.connectKafka()
	default:
		return fmt.Errorf("unknown messaging backend: %s", c.backend)
	}
}

func (c *Client) connectMQTT() error {
	broker := fmt.Sprintf("tcp://%s:%d", c.cfg.MQTT.Broker, c.cfg.MQTT.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(c.cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	c.mqttConn = client
	return nil
}

func (c *Client) connectKafka() error {
	if len(c.cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	// Verify at least one broker is reachable
	var conn *kafkago.Conn
	var connErr error
	for _, broker := range c.cfg.Kafka.Brokers {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		conn, connErr = kafkago.DialContext(ctx, "tcp", broker)
		cancel()
		if connErr == nil {
			log.Printf("messaging: kafka connected to %s", broker)
			break
		}
	}
	if connErr != nil {
		return fmt.Errorf("kafka connect: %w", connErr)
	}

	// Ensure configured topics exist before setting up readers/writer
	c.ensureTopics(conn, c.cfg.TelemetryTopic, c.cfg.EventsTopic)
	conn.Close()

	c.kafka = &kafkaState{
		readers: make(map[string]*kafkago.Reader),
		writer: &kafkago.Writer{
			Addr:     kafkago.TCP(c.cfg.Kafka.Brokers...),
			Balancer: &kafkago.LeastBytes{},
		},
	}
	return nil
}

// ensureTopics creates Kafka topics if they don't already exist.
// Errors are logged but not fatal since the broker may have
// auto.create.topics.enable=true anyway.
func (c *Client) ensureTopics(conn *kafkago.Conn, topics ...string) {
	if len(topics) == 0 {
		return
	}

	controller, err := conn.Controller()
	if err != nil {
		log.Printf("messaging: cannot find controller for topic creation: %v", err)
		return
	}

	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := kafkago.Dial("tcp", controllerAddr)
	if err != nil {
		log.Printf("messaging: cannot connect to controller: %v", err)
		return
	}
	defer controllerConn.Close()

	configs := make([]kafkago.TopicConfig, len(topics))
	for i, t := range topics {
		configs[i] = kafkago.TopicConfig{
			Topic:             t,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}

	if err := controllerConn.CreateTopics(configs...); err != nil {
		log.Printf("messaging: topic auto-create: %v", err)
	} else {
		log.Printf("messaging: ensured topics exist: %v", topics)
	}
}

func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.backend {
	case "mqtt":
		if c.mqttConn == nil || !c.mqttConn.IsConnected() {
			return fmt.Errorf("mqtt not connected")
		}
		token := c.mqttConn.Publish(topic, 1, false, payload)
		token.Wait()
		return token.Error()
	case "kafka":
		if c.kafka == nil || c.kafka.writer == nil {
			return fmt.Errorf("kafka not connected")
		}
		return c.kafka.writer.WriteMessages(context.Background(), kafkago.Message{
			Topic: topic,
			Value: payload,
		})
	default:
		return fmt.Errorf("unknown backend: %s", c.backend)
	}
}

// PublishEnvelope encodes and publishes an envelope to the given topic.
func (c *Client) PublishEnvelope(topic string, env interface{ Encode() ([]byte, error) }) error {
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return c.Publish(topic, data)
}

func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[topic] = handler

	switch c.backend {
	case "mqtt":
		if c.mqttConn == nil {
			return fmt.Errorf("mqtt not connected")
		}
		token := c.mqttConn.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			handler(msg.Topic(), msg.Payload())
		})
		token.Wait()
		return token.Error()
	case "kafka":
		if c.kafka == nil {
			return fmt.Errorf("kafka not connected")
		}
		reader := kafkago.NewReader(kafkago.ReaderConfig{
			Brokers: c.cfg.Kafka.Brokers,
			Topic:   topic,
			GroupID: c.cfg.Kafka.GroupID,
		})
		c.kafka.readers[topic] = reader
		go func() {
			for {
				msg, err := reader.ReadMessage(context.Background())
				if err != nil {
					return
				}
				handler(msg.Topic, msg.Value)
			}
		}()
		return nil
	default:
		return fmt.Errorf("unknown backend: %s", c.backend)
	}
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.backend {
	case "mqtt":
		return c.mqttConn != nil && c.mqttConn.IsConnected()
	case "kafka":
		return c.kafka != nil
	default:
		return false
	}
}

// Reconfigure closes the existing connection and reconnects with new config.
// All previously registered subscriptions are automatically restored.
func (c *Client) Reconfigure(cfg *config.MessagingConfig) error {
	c.Close()
	c.mu.Lock()
	c.cfg = cfg
	c.backend = cfg.Backend
	// Snapshot handlers before releasing lock
	handlers := make(map[string]MessageHandler, len(c.handlers))
	for k, v := range c.handlers {
		handlers[k] = v
	}
	c.mu.Unlock()

	if err := c.Connect(); err != nil {
		return err
	}

	for topic, handler := range handlers {
		if err := c.Subscribe(topic, handler); err != nil {
			log.Printf("messaging: re-subscribe %s after reconfigure: %v", topic, err)
		}
	}
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mqttConn != nil {
		c.mqttConn.Disconnect(1000)
		c.mqttConn = nil
	}
	if c.kafka != nil {
		for _, r := range c.kafka.readers {
			r.Close()
		}
		if c.kafka.writer != nil {
			c.kafka.writer.Close()
		}
		c.kafka = nil
	}
}
