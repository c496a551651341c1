package messaging

import (
	"log"

	"fleettrack/ingest"
)

// Consumer subscribes to the telemetry topic and feeds location reports
// into the ingestor. Devices publishing here already authenticated with
// the broker, so reports carry the device ID as identity and the
// ingestor's authorizer decides the rest.
type Consumer struct {
	client   *Client
	topic    string
	ingestor *ingest.Ingestor
}

func NewConsumer(client *Client, topic string, ingestor *ingest.Ingestor) *Consumer {
	return &Consumer{
		client:   client,
		topic:    topic,
		ingestor: ingestor,
	}
}

func (c *Consumer) Start() error {
	return c.client.Subscribe(c.topic, c.handleMessage)
}

func (c *Consumer) handleMessage(_ string, payload []byte) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		log.Printf("consumer: decode error: %v", err)
		return
	}

	report, ok := env.Payload.(LocationReport)
	if !ok {
		log.Printf("consumer: unhandled payload type: %T", env.Payload)
		return
	}

	res, err := c.ingestor.Ingest(ingest.Report{
		TruckID:       report.TruckID,
		AssignmentRef: report.AssignmentRef,
		Lat:           report.Lat,
		Lng:           report.Lng,
		Speed:         report.Speed,
		Heading:       report.Heading,
		CapturedAt:    report.CapturedAt,
		Identity:      report.DeviceID,
	})
	if err != nil {
		log.Printf("consumer: ingest report for truck %d: %v", report.TruckID, err)
		return
	}
	if !res.Accepted {
		log.Printf("consumer: report for truck %d rejected: %s", report.TruckID, res.Reason)
	}
}
