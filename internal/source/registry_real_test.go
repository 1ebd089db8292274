package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memfault/diagsdk/internal/coredump"
	"github.com/memfault/diagsdk/internal/eventlog"
	"github.com/memfault/diagsdk/internal/logring"
)

// These compile-time assertions are the real point of this file: they
// prove coredump.Source, eventlog.Store, and logring.Ring each satisfy
// this package's Source interface structurally, with no import of
// internal/source from any of those three packages.
var (
	_ Source = (*coredump.Source)(nil)
	_ Source = (*eventlog.Store)(nil)
	_ Source = (*logring.Ring)(nil)
)

// TestRegistryWithRealProducers wires an actual coredump.Source,
// eventlog.Store, and logring.Ring into one Registry, in the priority
// order the SDK uses: coredump first, then events, then logs.
func TestRegistryWithRealProducers(t *testing.T) {
	driver := coredump.NewRAMStorage(256, 0)
	require.NoError(t, coredump.Capture(driver, coredump.Inputs{
		DeviceSerial:    "DEV123",
		SoftwareType:    "main",
		SoftwareVersion: "1.0.0",
	}))

	events := eventlog.New(128)
	require.NoError(t, events.Append(1, []byte("event-a")))

	logs := logring.New(64)
	logs.Append([]byte("log line"))

	r := New()
	r.Register(coredump.NewSource(driver))
	r.Register(events)
	r.Register(logs)

	assert.True(t, r.HasMore())

	// Coredump drains first.
	data, err := r.ReadNext()
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	require.NoError(t, r.MarkSent())

	// Then the event record.
	data, err = r.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, byte(1), data[0])
	require.NoError(t, r.MarkSent())

	// Then the log line.
	data, err = r.ReadNext()
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	require.NoError(t, r.MarkSent())

	assert.False(t, r.HasMore())
}
