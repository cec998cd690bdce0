package mqtt

const (
	topicAvailability = "availability"
	topicState        = "state"
	topicSet          = "set"

	// discoveryPrefix is the Home Assistant discovery root.
	discoveryPrefix = "homeassistant"
)

// topic returns <prefix>/<name>.
func (b *Bridge) topic(name string) string {
	return b.settings.TopicPrefix + "/" + name
}
