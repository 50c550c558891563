package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/comfortclick-bridge/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// Status values carried on the status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// StatusPayload is the retained JSON document on the status topic.
type StatusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// buildClientOptions creates paho options: broker URL (tcp:// or ssl://),
// client id, credentials, clean session, auto-reconnect with backoff and TLS.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT registers the offline status the broker publishes when the
// bridge drops without a clean disconnect. QoS 1, retained.
func configureLWT(opts *pahomqtt.ClientOptions, cfg config.MQTTConfig) {
	if cfg.StatusTopic == "" {
		return
	}
	payload := buildStatusPayload(StatusOffline, cfg.Broker.ClientID, "unexpected_disconnect")
	opts.SetWill(cfg.StatusTopic, payload, 1, true)
}

func buildOnlinePayload(clientID string) string {
	return buildStatusPayload(StatusOnline, clientID, "")
}

func buildOfflinePayload(clientID string) string {
	return buildStatusPayload(StatusOffline, clientID, "graceful_shutdown")
}

func buildStatusPayload(status, clientID, reason string) string {
	data, err := json.Marshal(StatusPayload{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		// Marshal of a flat string struct cannot fail.
		return fmt.Sprintf(`{"status":%q}`, status)
	}
	return string(data)
}
