//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/application"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/database"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/events"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/kafka"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	userDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
	adoptionEvents "github.com/Kilat-Pet-Delivery/service-adoption/internal/events"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-adoption/migrations"
)

// setupPostgres starts a PostgreSQL container, applies the migrations and returns a
// connected GORM DB.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test_adoption"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, pgContainer)
	require.NoError(t, err, "failed to start PostgreSQL container")

	url, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	log := zap.NewNop()
	require.NoError(t, database.RunMigrations(url, migrations.FS, log), "failed to run migrations")

	db, err := database.Open(url, log)
	require.NoError(t, err, "failed to connect to PostgreSQL")
	return db
}

// setupKafka starts a Kafka container with the service topics and returns its brokers.
func setupKafka(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()

	// confluent-local supports KRaft natively.
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	testcontainers.CleanupContainer(t, kafkaContainer)
	require.NoError(t, err, "failed to start Kafka container")

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, brokers, events.TopicAdoptionEvents, events.TopicPaymentEvents)
	return brokers
}

// adoptionStack holds wired-up adoption service components.
type adoptionStack struct {
	DB       *gorm.DB
	Service  *application.AdoptionService
	Consumer *adoptionEvents.PaymentEventConsumer
}

// setupAdoptionStack wires the adoption service to postgres and, when brokers are given,
// to Kafka.
func setupAdoptionStack(t *testing.T, db *gorm.DB, brokers []string) *adoptionStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	var publisher application.EventPublisher = kafka.NopPublisher{}
	if len(brokers) > 0 {
		producer := kafka.NewProducer(brokers, logger)
		t.Cleanup(func() { _ = producer.Close() })
		publisher = producer
	}

	uow := repository.NewGormUnitOfWork(db, logger)
	svc := application.NewAdoptionService(uow, repository.NewGormLedgerRepository(db), publisher, 5*time.Second, logger)

	stack := &adoptionStack{DB: db, Service: svc}
	if len(brokers) > 0 {
		groupID := fmt.Sprintf("test-adoption-%s", uuid.New().String()[:8])
		stack.Consumer = adoptionEvents.NewPaymentEventConsumer(brokers, groupID, svc, logger)
		t.Cleanup(func() { _ = stack.Consumer.Close() })
	}
	return stack
}

func seedUser(t *testing.T, db *gorm.DB, username string) *userDomain.User {
	t.Helper()
	u, err := userDomain.NewUser(username, auth.RoleCustomer, username+"@example.com", "hash")
	require.NoError(t, err)
	require.NoError(t, repository.NewGormUserRepository(db).Save(context.Background(), u))
	return u
}

func seedPet(t *testing.T, db *gorm.DB, tag string, priceCents int64) *petDomain.Pet {
	t.Helper()
	p, err := petDomain.NewPet(tag, petDomain.KindDog, 2, priceCents, petDomain.GenderMale)
	require.NoError(t, err)
	require.NoError(t, repository.NewGormPetRepository(db).Save(context.Background(), p))
	return p
}

// waitForPayMoney polls the ledger until the paid amount matches.
func waitForPayMoney(t *testing.T, db *gorm.DB, userID uuid.UUID, expectedCents int64, timeout time.Duration) {
	t.Helper()
	ledgers := repository.NewGormLedgerRepository(db)
	require.Eventually(t, func() bool {
		l, err := ledgers.FindByUserID(context.Background(), userID)
		return err == nil && l.PayMoneyCents() == expectedCents
	}, timeout, 200*time.Millisecond, "ledger pay money did not reach %d", expectedCents)
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
