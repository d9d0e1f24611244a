package telemetry

import (
	"encoding/binary"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// MQTTTransport frames session appends as MQTT messages on
// <topicPrefix>/<tag>. Each message carries a small header (item type,
// item size, count) followed by the packed items, so a subscriber can
// parse without out-of-band state.
type MQTTTransport struct {
	client      mqtt.Client
	topicPrefix string
	log         *zap.Logger
}

func NewMQTTTransport(client mqtt.Client, topicPrefix string, log *zap.Logger) *MQTTTransport {
	if log == nil {
		log = zap.NewNop()
	}
	return &MQTTTransport{client: client, topicPrefix: topicPrefix, log: log}
}

func (t *MQTTTransport) CreateSession(tag string, itemType uint16, itemSize int) (Session, error) {
	if tag == "" {
		return nil, fmt.Errorf("telemetry: empty session tag")
	}
	return &mqttSession{
		transport: t,
		topic:     t.topicPrefix + "/" + tag,
		itemType:  itemType,
		itemSize:  itemSize,
	}, nil
}

type mqttSession struct {
	transport *MQTTTransport
	topic     string
	itemType  uint16
	itemSize  int
	closed    bool
}

func (s *mqttSession) Append(data []byte, count int) Status {
	if s.closed {
		return StatusClosed
	}
	if !s.transport.client.IsConnected() {
		return StatusBusy
	}

	frame := make([]byte, 6+len(data))
	binary.LittleEndian.PutUint16(frame[0:2], s.itemType)
	binary.LittleEndian.PutUint16(frame[2:4], uint16(s.itemSize))
	binary.LittleEndian.PutUint16(frame[4:6], uint16(count))
	copy(frame[6:], data)

	token := s.transport.client.Publish(s.topic, 1, false, frame)
	if !token.WaitTimeout(publishTimeout) {
		return StatusBusy
	}
	if err := token.Error(); err != nil {
		s.transport.log.Warn("telemetry publish failed",
			zap.String("topic", s.topic), zap.Error(err))
		return StatusBusy
	}
	return StatusOK
}

func (s *mqttSession) Close() {
	s.closed = true
}
