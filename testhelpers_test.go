//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/runcrew/service-running/internal/application"
	"github.com/runcrew/service-running/internal/common/auth"
	"github.com/runcrew/service-running/internal/common/events"
	"github.com/runcrew/service-running/internal/common/kafka"
	"github.com/runcrew/service-running/internal/domain/course"
	runningEvents "github.com/runcrew/service-running/internal/events"
	"github.com/runcrew/service-running/internal/repository"
)

var seoul = time.FixedZone("KST", 9*60*60)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Redis        *redis.Client
	Cleanup      func()
}

// runningStack holds wired-up running service components.
type runningStack struct {
	Users           *application.UserService
	Runnings        *application.RunningService
	Courses         *application.CourseSessionService
	RunningRepo     *repository.GormRunningRepository
	Consumer        *runningEvents.RunningEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL, Kafka and Redis testcontainers.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_running",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_running sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(&repository.UserModel{}, &repository.RunningModel{}, &repository.MessageModel{}))

	redisReq := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: redisReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start Redis container")
	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(redisHost, redisPort.Port())})

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, events.TopicRunningEvents, events.TopicChatEvents)

	cleanup := func() {
		_ = rdb.Close()
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Redis:        rdb,
		Cleanup:      cleanup,
	}
}

// setupRunningStack wires up the full running service stack.
func setupRunningStack(t *testing.T, infra *testInfra) *runningStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	jwt := auth.NewJWTManager("integration-secret", 15*time.Minute, time.Hour)
	userRepo := repository.NewGormUserRepository(infra.DB)
	runningRepo := repository.NewGormRunningRepository(infra.DB)
	producer := kafka.NewProducer(infra.KafkaBrokers, logger)
	estimator := course.NewStandardPaceEstimator(0)

	users := application.NewUserService(userRepo, jwt, application.NewProfileCache(64, time.Minute), logger)
	runnings := application.NewRunningService(runningRepo, users, estimator, course.DefaultMaxWaypoints, producer, seoul, logger)
	store := repository.NewRedisCourseSessionStore(infra.Redis, time.Minute)
	courses := application.NewCourseSessionService(store, estimator, course.DefaultMaxWaypoints, logger)

	groupID := fmt.Sprintf("test-running-%s", uuid.New().String()[:8])
	consumer := runningEvents.NewRunningEventConsumer(infra.KafkaBrokers, groupID, users, logger)

	return &runningStack{
		Users:           users,
		Runnings:        runnings,
		Courses:         courses,
		RunningRepo:     runningRepo,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// registerUser creates an account and returns its ID.
func registerUser(t *testing.T, users *application.UserService, name string) uuid.UUID {
	t.Helper()
	result, err := users.Register(context.Background(), application.RegisterRequest{
		Email:           fmt.Sprintf("%s-%s@example.com", name, uuid.New().String()[:6]),
		Password:        "integration-pass",
		ConfirmPassword: "integration-pass",
		Name:            name,
	})
	require.NoError(t, err)
	return result.User.ID
}

// upcomingDate returns a running date days ahead in Seoul time.
func upcomingDate(days int) string {
	return time.Now().In(seoul).AddDate(0, 0, days).Format("2006-01-02")
}

// waitForStats polls a user's stats until the participation count matches.
func waitForStats(t *testing.T, users *application.UserService, userID uuid.UUID, count int, timeout time.Duration) *application.StatsDTO {
	t.Helper()
	var result *application.StatsDTO
	require.Eventually(t, func() bool {
		stats, err := users.GetStats(context.Background(), userID)
		if err != nil || stats.ParticipationCount != count {
			return false
		}
		result = stats
		return true
	}, timeout, 200*time.Millisecond, "participation count did not reach %d", count)
	return result
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
