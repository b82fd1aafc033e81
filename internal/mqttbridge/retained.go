package mqttbridge

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// How long to wait for the broker to replay a retained message before
// concluding the key is absent.
const retainedGetTimeout = 2 * time.Second

// retainedStore implements store.RetainedStore on top of the broker's
// retained messages. Keys map to topics under <prefix>/states/. Get works
// by subscribing briefly: the broker delivers a retained payload
// immediately on subscribe, so a timeout with no message means absent.
type retainedStore struct {
	client mqtt.Client
	prefix string
	qos    byte
}

func newRetainedStore(client mqtt.Client, prefix string, qos byte) *retainedStore {
	return &retainedStore{client: client, prefix: prefix, qos: qos}
}

func (s *retainedStore) topic(key string) string {
	return s.prefix + "/" + topicStates + "/" + key
}

func (s *retainedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	topic := s.topic(key)
	ch := make(chan []byte, 1)

	token := s.client.Subscribe(topic, s.qos, func(_ mqtt.Client, m mqtt.Message) {
		select {
		case ch <- m.Payload():
		default:
		}
	})
	if !token.WaitTimeout(retainedGetTimeout) || token.Error() != nil {
		return nil, false, fmt.Errorf("subscribing to %s: %w", topic, tokenErr(token))
	}
	defer s.client.Unsubscribe(topic)

	timeout := time.NewTimer(retainedGetTimeout)
	defer timeout.Stop()
	select {
	case payload := <-ch:
		// An empty retained payload is a tombstone from a delete.
		if len(payload) == 0 {
			return nil, false, nil
		}
		return payload, true, nil
	case <-timeout.C:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (s *retainedStore) Set(ctx context.Context, key string, payload []byte) error {
	token := s.client.Publish(s.topic(key), 1, true, payload)
	return waitToken(ctx, token)
}

func (s *retainedStore) Delete(ctx context.Context, key string) error {
	// An empty retained publish clears the retained message.
	token := s.client.Publish(s.topic(key), 1, true, []byte{})
	return waitToken(ctx, token)
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-done:
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func tokenErr(token mqtt.Token) error {
	if err := token.Error(); err != nil {
		return err
	}
	return fmt.Errorf("timed out")
}
