//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/luki/dhtwatch/internal/feed"
)

func startBroker(t *testing.T) (string, int) {
	t.Helper()
	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp").WithStartupTimeout(30 * time.Second),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mosquitto container: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "1883/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return host, port.Int()
}

func publish(t *testing.T, host string, port int, topic, payload string) {
	t.Helper()

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", host, port)).
		SetClientID("dhtwatch-e2e-publisher")
	c := mqtt.NewClient(opts)
	if tok := c.Connect(); !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		t.Fatalf("publisher connect: %v", tok.Error())
	}
	defer c.Disconnect(100)

	tok := c.Publish(topic, 1, true, payload)
	if !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		t.Fatalf("publish: %v", tok.Error())
	}
}

func next(t *testing.T, ch <-chan feed.Event, want feed.Kind) feed.Event {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed while waiting for %s", want)
			}
			if ev.Kind == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func TestMQTTFeed_RetainedReadingAndEmpty(t *testing.T) {
	host, port := startBroker(t)
	publish(t, host, port, "sensor_data", `{"temperature": 24.2, "humidity": 51.0, "timestamp": 1750000000}`)

	f := feed.NewMQTT(feed.MQTTOptions{Broker: host, Port: port, ClientID: "dhtwatch-e2e", Topic: "sensor_data"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ch, err := f.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	link := next(t, ch, feed.KindLink)
	if !link.Connected {
		t.Fatalf("first link event reports disconnected")
	}

	ev := next(t, ch, feed.KindReading)
	if ev.Reading.Temperature != 24.2 || ev.Reading.Timestamp != 1750000000 {
		t.Fatalf("reading = %+v", ev.Reading)
	}

	publish(t, host, port, "sensor_data", "")
	next(t, ch, feed.KindEmpty)

	f.Unsubscribe()
	f.Unsubscribe()
	for range ch {
	}
}
