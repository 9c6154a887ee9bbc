package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/rs/zerolog"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"gotest.tools/v3/assert"
)

type stubSession struct {
	user *domain.User
}

func (s stubSession) User() *domain.User {
	return s.user
}

// queueReader hands out queued messages, then blocks until ctx is done.
type queueReader struct {
	mu       sync.Mutex
	messages []kafkaGo.Message
	closed   bool
}

func (q *queueReader) ReadMessage(ctx context.Context) (kafkaGo.Message, error) {
	q.mu.Lock()
	if len(q.messages) > 0 {
		m := q.messages[0]
		q.messages = q.messages[1:]
		q.mu.Unlock()
		return m, nil
	}
	q.mu.Unlock()
	<-ctx.Done()
	return kafkaGo.Message{}, ctx.Err()
}

func (q *queueReader) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func filledCart(t *testing.T) *cart.Store {
	t.Helper()
	ctx := context.Background()
	c := cart.NewStore(ctx, kv.NewMemoryStore(), zerolog.Nop())
	c.AddItem(ctx, domain.Product{ID: 1, Name: "Shirt", Price: domain.PriceFromFloat(10)}, 1, "", "")
	return c
}

func event(t *testing.T, userID any) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"checkout_id":  "chId",
		"user_id":      userID,
		"total_amount": "10",
		"currency":     "usd",
	})
	require.NoError(t, err)
	return payload
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name      string
		user      *domain.User
		value     []byte
		wantEmpty bool
	}{
		{"numeric id of current user", &domain.User{ID: 123}, event(t, 123), true},
		{"string id of current user", &domain.User{ID: 123}, event(t, "123"), true},
		{"other user", &domain.User{ID: 7}, event(t, 123), false},
		{"logged out", nil, event(t, 123), false},
		{"missing id", &domain.User{ID: 123}, []byte(`{"checkout_id":"chId"}`), false},
		{"garbage id", &domain.User{ID: 123}, event(t, "abc"), false},
		{"not json", &domain.User{ID: 123}, []byte(`{{`), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := filledCart(t)
			p := &Poller{cart: c, session: stubSession{tt.user}, logger: zerolog.Nop()}

			p.handle(context.Background(), tt.value)

			assert.Equal(t, tt.wantEmpty, len(c.Items()) == 0)
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := filledCart(t)
	reader := &queueReader{messages: []kafkaGo.Message{{Value: event(t, 123)}}}
	p := &Poller{cart: c, session: stubSession{&domain.User{ID: 123}}, reader: reader, logger: zerolog.Nop(), backoff: time.Millisecond}

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(c.Items()) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}

	p.Close()
	assert.Assert(t, reader.closed)
}

type failingReader struct {
	calls int
	mu    sync.Mutex
}

func (f *failingReader) ReadMessage(context.Context) (kafkaGo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return kafkaGo.Message{}, errors.New("broker down")
}

func (f *failingReader) Close() error { return nil }

func TestRun_BacksOffOnReadError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	reader := &failingReader{}
	p := &Poller{cart: filledCart(t), session: stubSession{}, reader: reader, logger: zerolog.Nop(), backoff: 40 * time.Millisecond}

	p.Run(ctx)

	reader.mu.Lock()
	defer reader.mu.Unlock()
	assert.Assert(t, reader.calls >= 1 && reader.calls <= 4, "calls: %d", reader.calls)
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestPoller_Kafka(t *testing.T) {
	if testing.Short() {
		t.Skip("kafka container test")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker, cleanupKafka := setupKafka(t)
	defer cleanupKafka()
	createTopic(t, broker, Topic)

	c := filledCart(t)
	poller := NewPoller(c, stubSession{&domain.User{ID: 123}}, zerolog.Nop(), "test", broker)
	defer poller.Close()

	w := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(broker),
		Topic:                  Topic,
		Balancer:               &kafkaGo.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	err := w.WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte("chId"),
		Value: event(t, "123"),
		Headers: []kafkaGo.Header{
			{Key: "event_type", Value: []byte("checkout")},
		},
	})
	require.NoError(t, err)
	w.Close()

	go poller.Run(ctx)
	require.Eventually(t, func() bool {
		return len(c.Items()) == 0
	}, 30*time.Second, 500*time.Millisecond)
}
