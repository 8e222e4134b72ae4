package mqtt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken implements pahomqtt.Token.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

// fakeClient implements pahomqtt.Client, recording publishes.
type fakeClient struct {
	pahomqtt.Client

	topic      string
	qos        byte
	retained   bool
	payload    []byte
	publishErr error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload any) pahomqtt.Token {
	c.topic = topic
	c.qos = qos
	c.retained = retained
	c.payload = payload.([]byte)
	return &fakeToken{err: c.publishErr}
}

func testSink(client pahomqtt.Client) *Sink {
	return &Sink{
		client: client,
		prefix: "homey/capability",
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSink_SetCapabilityValue(t *testing.T) {
	client := &fakeClient{}
	sink := testSink(client)

	if err := sink.SetCapabilityValue("eneco-001", "measure_temperature", 21.6); err != nil {
		t.Fatalf("SetCapabilityValue failed: %v", err)
	}

	if client.topic != "homey/capability/eneco-001/measure_temperature" {
		t.Errorf("Unexpected topic: %s", client.topic)
	}
	if client.qos != 1 {
		t.Errorf("Expected QoS 1, got %d", client.qos)
	}
	if !client.retained {
		t.Error("Expected retained message")
	}

	var msg capabilityMessage
	if err := json.Unmarshal(client.payload, &msg); err != nil {
		t.Fatalf("Failed to parse payload: %v", err)
	}
	if msg.Value != 21.6 {
		t.Errorf("Expected value 21.6, got %v", msg.Value)
	}
	if msg.UpdatedAt == "" {
		t.Error("Expected updated_at to be set")
	}
}

func TestSink_SetCapabilityValue_StringAndBool(t *testing.T) {
	client := &fakeClient{}
	sink := testSink(client)

	if err := sink.SetCapabilityValue("eneco-001", "temperature_state", "sleep"); err != nil {
		t.Fatalf("SetCapabilityValue failed: %v", err)
	}
	var msg capabilityMessage
	json.Unmarshal(client.payload, &msg)
	if msg.Value != "sleep" {
		t.Errorf("Expected value sleep, got %v", msg.Value)
	}

	if err := sink.SetCapabilityValue("eneco-001", "holiday_active", true); err != nil {
		t.Fatalf("SetCapabilityValue failed: %v", err)
	}
	json.Unmarshal(client.payload, &msg)
	if msg.Value != true {
		t.Errorf("Expected value true, got %v", msg.Value)
	}
}

func TestSink_SetCapabilityValue_PublishError(t *testing.T) {
	client := &fakeClient{publishErr: errors.New("broker gone")}
	sink := testSink(client)

	if err := sink.SetCapabilityValue("eneco-001", "measure_power", 350.0); err == nil {
		t.Error("Expected publish error to propagate")
	}
}
