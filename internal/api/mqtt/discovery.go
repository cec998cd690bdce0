package mqtt

import (
	"context"
	"encoding/json"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/alco-lock/internal/logger"
)

// haDevice groups the entities under one Home Assistant device.
type haDevice struct {
	Name        string   `json:"name"`
	Identifiers []string `json:"identifiers"`
	Model       string   `json:"model,omitempty"`
}

// haEntity is a Home Assistant MQTT discovery document.
type haEntity struct {
	Name                string   `json:"name"`
	UniqueID            string   `json:"unique_id"`
	StateTopic          string   `json:"state_topic"`
	ValueTemplate       string   `json:"value_template"`
	AvailabilityTopic   string   `json:"availability_topic"`
	PayloadAvailable    string   `json:"payload_available"`
	PayloadNotAvailable string   `json:"payload_not_available"`
	DeviceClass         string   `json:"device_class,omitempty"`
	CommandTopic        string   `json:"command_topic,omitempty"`
	PayloadOn           string   `json:"payload_on"`
	PayloadOff          string   `json:"payload_off"`
	Icon                string   `json:"icon,omitempty"`
	Device              haDevice `json:"device"`
}

// discoveryMessage is one retained config document and its topic.
type discoveryMessage struct {
	topic  string
	entity haEntity
}

// discoveryMessages describes the alcohol sensor and the ignition relay.
func (b *Bridge) discoveryMessages() []discoveryMessage {
	id := b.settings.ClientID
	device := haDevice{
		Name:        "Alco-Lock",
		Identifiers: []string{id},
		Model:       "MQ-3 ignition interlock",
	}

	return []discoveryMessage{
		{
			topic: discoveryPrefix + "/binary_sensor/" + id + "/alcohol/config",
			entity: haEntity{
				Name:                "Alcohol",
				UniqueID:            id + "_alcohol",
				StateTopic:          b.topic(topicState),
				ValueTemplate:       "{{ 'ON' if value_json.alcohol_detected else 'OFF' }}",
				AvailabilityTopic:   b.topic(topicAvailability),
				PayloadAvailable:    PayloadOnline,
				PayloadNotAvailable: PayloadOffline,
				DeviceClass:         "gas",
				PayloadOn:           "ON",
				PayloadOff:          "OFF",
				Device:              device,
			},
		},
		{
			topic: discoveryPrefix + "/switch/" + id + "/ignition/config",
			entity: haEntity{
				Name:                "Ignition",
				UniqueID:            id + "_ignition",
				StateTopic:          b.topic(topicState),
				ValueTemplate:       "{{ 'unlock' if value_json.relay_active else 'lock' }}",
				AvailabilityTopic:   b.topic(topicAvailability),
				PayloadAvailable:    PayloadOnline,
				PayloadNotAvailable: PayloadOffline,
				CommandTopic:        b.topic(topicSet),
				PayloadOn:           "unlock",
				PayloadOff:          "lock",
				Icon:                "mdi:car-key",
				Device:              device,
			},
		},
	}
}

// advertise publishes the retained discovery documents.
func (b *Bridge) advertise(ctx context.Context, client paho.Client) {
	for _, message := range b.discoveryMessages() {
		payload, err := json.Marshal(message.entity)
		if err != nil {
			logger.ErrorKV(ctx, "Failed to marshal discovery document", "topic", message.topic, "error", err)
			continue
		}

		if err = b.wait(ctx, client.Publish(message.topic, 1, true, payload)); err != nil {
			logger.WarnKV(ctx, "Failed to publish discovery document", "topic", message.topic, "error", err)
		}
	}
}
