// Package emulators starts throwaway broker and store containers for
// integration tests.
package emulators

import (
	"context"
	"fmt"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type ImageContainer struct {
	EmulatorImage string
	EmulatorPort  string
	Cmd           []string
}

// Connection describes a running emulator.
type Connection struct {
	Host            string
	Port            int
	EmulatorAddress string
}

func startContainer(t *testing.T, ctx context.Context, cfg ImageContainer) (string, nat.Port) {
	t.Helper()
	port := nat.Port(fmt.Sprintf("%s/tcp", cfg.EmulatorPort))
	req := testcontainers.ContainerRequest{
		Image:        cfg.EmulatorImage,
		ExposedPorts: []string{string(port)},
		Cmd:          cfg.Cmd,
		WaitingFor:   wait.ForListeningPort(port),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate %s container: %v", cfg.EmulatorImage, err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)
	return host, mapped
}
