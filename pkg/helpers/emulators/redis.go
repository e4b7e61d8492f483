package emulators

import (
	"context"
	"fmt"
	"testing"
)

const (
	testRedisImage = "redis:7-alpine"
	testRedisPort  = "6379"
)

func GetDefaultRedisImageContainer() ImageContainer {
	return ImageContainer{
		EmulatorImage: testRedisImage,
		EmulatorPort:  testRedisPort,
	}
}

// SetupRedisContainer starts a Redis server. EmulatorAddress is host:port.
func SetupRedisContainer(t *testing.T, ctx context.Context, cfg ImageContainer) Connection {
	t.Helper()
	host, port := startContainer(t, ctx, cfg)
	conn := Connection{
		Host:            host,
		Port:            port.Int(),
		EmulatorAddress: fmt.Sprintf("%s:%s", host, port.Port()),
	}
	t.Logf("Redis container started, listening on: %s", conn.EmulatorAddress)
	return conn
}
