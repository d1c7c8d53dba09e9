package amqpnotify

import (
	"github.com/savannahghi/idrclient/internal/config"
	"github.com/savannahghi/idrclient/internal/signalbus"
)

// SettingsID is this driver's entry in the §6.2 SETTINGS_INITIALIZERS list.
const SettingsID = "amqpnotify"

const defaultExchange = "idrclient.alerts"

// envSettings reads this driver's own configuration from the environment
// and builds its Notifier lazily, once Initialize has run. Leaving
// AMQPNOTIFY_URL unset disables the driver entirely: its ListenerFactory
// then returns (nil, nil), so the bus simply carries no such listener.
type envSettings struct {
	amqpURL  string
	exchange string
}

func (s *envSettings) ID() string { return SettingsID }

func (s *envSettings) Initialize(*config.Config) error {
	s.amqpURL = config.GetenvOrDefault("AMQPNOTIFY_URL", "")
	s.exchange = config.GetenvOrDefault("AMQPNOTIFY_EXCHANGE", defaultExchange)

	return nil
}

var shared = &envSettings{} //nolint:gochecknoglobals

func init() {
	config.RegisterSettingsInitializer(shared)
	signalbus.RegisterListenerFactory(func() (signalbus.Listener, error) {
		if shared.amqpURL == "" {
			return nil, nil
		}

		notifier, err := New(shared.amqpURL, shared.exchange)
		if err != nil {
			return nil, err
		}

		return notifier.Listen, nil
	})
}
