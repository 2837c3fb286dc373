// Package broker tells the MQTT broker about credential changes so it can
// drop cached auth decisions and disconnect revoked clients.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/iliyamo/iot-auth-service/internal/config"
)

// ErrPublishTimeout is returned when the broker does not acknowledge a
// notice in time.
var ErrPublishTimeout = errors.New("mqtt publish timeout")

// Notifier announces credential lifecycle changes.
type Notifier interface {
	CredentialCreated(ctx context.Context, username string, superuser bool) error
	CredentialRevoked(ctx context.Context, username string) error
	Close()
}

// NopNotifier is used when no broker URL is configured.
type NopNotifier struct{}

func (NopNotifier) CredentialCreated(context.Context, string, bool) error { return nil }
func (NopNotifier) CredentialRevoked(context.Context, string) error       { return nil }
func (NopNotifier) Close()                                                {}

// publisher is the part of pahomqtt.Client the notifier needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// MQTTNotifier publishes JSON notices to <prefix>/credentials/<username>/<action>.
type MQTTNotifier struct {
	client  publisher
	prefix  string
	qos     byte
	timeout time.Duration
}

type notice struct {
	Username    string    `json:"username"`
	Action      string    `json:"action"`
	IsSuperuser *bool     `json:"is_superuser,omitempty"`
	At          time.Time `json:"at"`
}

// Connect dials the broker with auto-reconnect enabled.
func Connect(cfg config.MQTTConfig) (*MQTTNotifier, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetMaxReconnectInterval(time.Minute).
		SetConnectTimeout(cfg.ConnectTimeout)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("connect %s: timeout after %v", cfg.BrokerURL, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.BrokerURL, err)
	}
	return newMQTTNotifier(client, cfg.TopicPrefix, cfg.QoS), nil
}

func newMQTTNotifier(client publisher, prefix string, qos byte) *MQTTNotifier {
	return &MQTTNotifier{client: client, prefix: prefix, qos: qos, timeout: 5 * time.Second}
}

func (n *MQTTNotifier) CredentialCreated(ctx context.Context, username string, superuser bool) error {
	return n.send(ctx, notice{Username: username, Action: "created", IsSuperuser: &superuser})
}

func (n *MQTTNotifier) CredentialRevoked(ctx context.Context, username string) error {
	return n.send(ctx, notice{Username: username, Action: "revoked"})
}

func (n *MQTTNotifier) Close() { n.client.Disconnect(250) }

// Topic returns the notice topic of one credential action.
func (n *MQTTNotifier) Topic(username, action string) string {
	return n.prefix + "/credentials/" + username + "/" + action
}

func (n *MQTTNotifier) send(ctx context.Context, msg notice) error {
	msg.At = time.Now().UTC()
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	timeout := n.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	token := n.client.Publish(n.Topic(msg.Username, msg.Action), n.qos, false, payload)
	if !token.WaitTimeout(timeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}
