//go:build integration

package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/agenthands/loregraph/internal/database"
	"github.com/agenthands/loregraph/internal/driver"
	"github.com/agenthands/loregraph/internal/store"
)

const (
	memgraphImage  = "memgraph/memgraph:2.18.1"
	postgresImage  = "postgres:16-alpine"
	migrationsPath = "../../migrations"
)

var (
	memgraphURI     string
	memgraphOnce    sync.Once
	memgraphErr     error
	postgresConnStr string
	postgresOnce    sync.Once
	postgresErr     error
)

func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port string) (string, string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to start %s: %w", req.Image, err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to get container host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return "", "", fmt.Errorf("failed to get container port: %w", err)
	}
	return host, mapped.Port(), nil
}

// memgraphBackend returns a store on a Memgraph container shared by the
// whole test run.
func memgraphBackend(t *testing.T) store.Backend {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	memgraphOnce.Do(func() {
		host, port, err := startContainer(context.Background(), testcontainers.ContainerRequest{
			Image:        memgraphImage,
			ExposedPorts: []string{"7687/tcp"},
			WaitingFor:   wait.ForListeningPort("7687/tcp").WithStartupTimeout(90 * time.Second),
		}, "7687")
		memgraphURI, memgraphErr = fmt.Sprintf("bolt://%s:%s", host, port), err
	})
	if memgraphErr != nil {
		t.Fatalf("Failed to set up Memgraph: %v", memgraphErr)
	}

	ctx := context.Background()
	logger := zap.NewNop()
	var d *driver.MemgraphDriver
	var err error
	for i := 0; i < 20; i++ {
		if d, err = driver.NewMemgraphDriver(ctx, memgraphURI, "", "", logger); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Failed to connect to Memgraph: %v", err)
	}
	if err := d.BuildIndices(ctx); err != nil {
		t.Fatalf("Failed to build indices: %v", err)
	}

	s := store.NewMemgraphStore(d, logger)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// postgresBackend returns a store on a migrated Postgres container shared
// by the whole test run.
func postgresBackend(t *testing.T) store.Backend {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	postgresOnce.Do(func() {
		host, port, err := startContainer(context.Background(), testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "loregraph",
				"POSTGRES_USER":     "loregraph",
				"POSTGRES_PASSWORD": "test_password",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		}, "5432")
		if err != nil {
			postgresErr = err
			return
		}
		postgresConnStr = fmt.Sprintf("postgres://loregraph:test_password@%s:%s/loregraph?sslmode=disable", host, port)
		postgresErr = database.Migrate(postgresConnStr, migrationsPath, zap.NewNop())
	})
	if postgresErr != nil {
		t.Fatalf("Failed to set up Postgres: %v", postgresErr)
	}

	db, err := database.NewConnection(context.Background(), &database.Config{URL: postgresConnStr, MaxConnections: 4})
	if err != nil {
		t.Fatalf("Failed to connect to Postgres: %v", err)
	}
	s := store.NewPostgresStore(db.Pool, zap.NewNop())
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}
