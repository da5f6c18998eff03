package testutil

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const postgresImage = "postgres:16-alpine"

// RunWithPostgresContainer is meant for TestMain. When TEST_DB_CONTAINER is truthy it starts a
// throwaway Postgres container, points the TEST_DB_* variables at it, runs the tests and
// terminates the container. Otherwise it just runs the tests.
func RunWithPostgresContainer(m *testing.M) int {
	if !envBool("TEST_DB_CONTAINER") {
		return m.Run()
	}

	// Ryuk is unreliable in some CI sandboxes; the container is terminated explicitly below.
	_ = os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()
	cfg := TestDBConfig{User: "bulkmove", Password: "bulkmove", DBName: "bulkmove"}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     cfg.User,
				"POSTGRES_PASSWORD": cfg.Password,
				"POSTGRES_DB":       cfg.DBName,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Printf("failed to start postgres container: %v", err)
		return 1
	}
	defer func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			log.Printf("failed to terminate postgres container: %v", termErr)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		log.Printf("failed to get container host: %v", err)
		return 1
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		log.Printf("failed to get mapped port: %v", err)
		return 1
	}

	cfg.Host, cfg.Port = host, port.Port()
	for k, v := range map[string]string{
		"TEST_DB_HOST":     cfg.Host,
		"TEST_DB_PORT":     cfg.Port,
		"TEST_DB_USER":     cfg.User,
		"TEST_DB_PASSWORD": cfg.Password,
		"TEST_DB_NAME":     cfg.DBName,
	} {
		_ = os.Setenv(k, v)
	}

	return m.Run()
}
