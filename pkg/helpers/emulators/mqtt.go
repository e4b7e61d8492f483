package emulators

import (
	"context"
	"fmt"
	"testing"
)

const (
	testMosquittoImage = "eclipse-mosquitto:2.0"
	testMosquittoPort  = "1883"
)

func GetDefaultMqttImageContainer() ImageContainer {
	return ImageContainer{
		EmulatorImage: testMosquittoImage,
		EmulatorPort:  testMosquittoPort,
		// 2.x refuses remote clients unless anonymous access is configured.
		Cmd: []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
	}
}

// SetupMosquittoContainer starts a Mosquitto broker. EmulatorAddress is a tcp:// broker URL.
func SetupMosquittoContainer(t *testing.T, ctx context.Context, cfg ImageContainer) Connection {
	t.Helper()
	host, port := startContainer(t, ctx, cfg)
	conn := Connection{
		Host:            host,
		Port:            port.Int(),
		EmulatorAddress: fmt.Sprintf("tcp://%s:%s", host, port.Port()),
	}
	t.Logf("Mosquitto container started, listening on: %s", conn.EmulatorAddress)
	return conn
}
