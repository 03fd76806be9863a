//go:build integration

package mqtt

import (
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Integration tests against a live broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

// subscribeRaw connects a plain paho client and subscribes to topic.
func subscribeRaw(t *testing.T, clientID, topic string) <-chan pahomqtt.Message {
	t.Helper()

	opts := pahomqtt.NewClientOptions().AddBroker("tcp://127.0.0.1:1883").SetClientID(clientID)
	sub := pahomqtt.NewClient(opts)
	if token := sub.Connect(); !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscriber connect failed: %v", token.Error())
	}
	t.Cleanup(func() { sub.Disconnect(250) })

	received := make(chan pahomqtt.Message, 8)
	token := sub.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		received <- msg
	})
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscribe failed: %v", token.Error())
	}
	return received
}

func TestIntegration_AuditRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "servicedesk-int-pub"
	cfg.TopicPrefix = "servicedesk-int"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	received := subscribeRaw(t, "servicedesk-int-sub", client.Topics().AllAudit())

	if err := client.Publish(client.Topics().Audit("login"), []byte(`{"action":"login"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg.Topic() != "servicedesk-int/audit/login" {
			t.Errorf("topic = %q", msg.Topic())
		}
		if string(msg.Payload()) != `{"action":"login"}` {
			t.Errorf("payload = %s", msg.Payload())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for audit message")
	}
}

func TestIntegration_RetainedOnlineStatus(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "servicedesk-int-status"
	cfg.TopicPrefix = "servicedesk-int-status"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	// Give the async OnConnect handler time to publish.
	time.Sleep(200 * time.Millisecond)

	received := subscribeRaw(t, "servicedesk-int-status-sub", client.Topics().SystemStatus())

	select {
	case msg := <-received:
		if !msg.Retained() {
			t.Error("status message not retained")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for retained status")
	}
}
