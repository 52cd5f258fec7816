package simulator

import (
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"devicelink/pkg/alpaca"
)

func newTestDome(t *testing.T, cfg DomeConfig) (*DomeSimulator, *time.Time) {
	t.Helper()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewDomeSimulator(0, cfg, nil, log.New())
	d.now = func() time.Time { return now }
	return d, &now
}

func TestDomeRequiresConnection(t *testing.T) {
	d, _ := newTestDome(t, DomeConfig{ParkPosition: 90})

	assert.ErrorIs(t, d.SlewToAzimuth(10), alpaca.ErrNotConnected)
	assert.ErrorIs(t, d.OpenShutter(), alpaca.ErrNotConnected)
	assert.ErrorIs(t, d.Park(), alpaca.ErrNotConnected)

	require.NoError(t, d.Connect())
	assert.True(t, d.Connected())
	assert.NoError(t, d.OpenShutter())
	assert.Equal(t, alpaca.ShutterOpen, d.Status().Shutter)

	require.NoError(t, d.Disconnect())
	assert.False(t, d.Connected())
}

func TestDomeStartsParked(t *testing.T) {
	d, _ := newTestDome(t, DomeConfig{ParkPosition: 90})

	s := d.Status()
	assert.True(t, s.AtPark)
	assert.Equal(t, 90.0, s.Azimuth)
	assert.Equal(t, alpaca.ShutterClosed, s.Shutter)
}

func TestDomeInstantSlew(t *testing.T) {
	d, _ := newTestDome(t, DomeConfig{ParkPosition: 90})
	require.NoError(t, d.Connect())

	require.NoError(t, d.SlewToAzimuth(123.4))
	s := d.Status()
	assert.False(t, s.Slewing)
	assert.False(t, s.AtPark)
	assert.Equal(t, 123.4, s.Azimuth)
}

func TestDomeTimedSlew(t *testing.T) {
	d, now := newTestDome(t, DomeConfig{ParkPosition: 350, SlewRate: 10})
	require.NoError(t, d.Connect())

	// Crosses north: 350 -> 10 is 20 degrees, two seconds.
	require.NoError(t, d.SlewToAzimuth(10))
	assert.True(t, d.Status().Slewing)

	*now = now.Add(500 * time.Millisecond)
	assert.InDelta(t, 355.0, d.Status().Azimuth, 1e-9)

	*now = now.Add(500 * time.Millisecond)
	s := d.Status()
	assert.True(t, s.Slewing)
	assert.InDelta(t, 0.0, s.Azimuth, 1e-9)

	*now = now.Add(time.Second)
	s = d.Status()
	assert.False(t, s.Slewing)
	assert.Equal(t, 10.0, s.Azimuth)
}

func TestDomeAbortAndPark(t *testing.T) {
	d, now := newTestDome(t, DomeConfig{HomePosition: 0, ParkPosition: 90, SlewRate: 10})
	require.NoError(t, d.Connect())

	require.NoError(t, d.SlewToAzimuth(130))
	*now = now.Add(2 * time.Second)
	require.NoError(t, d.AbortSlew())

	s := d.Status()
	assert.False(t, s.Slewing)
	assert.InDelta(t, 110.0, s.Azimuth, 1e-9)

	require.NoError(t, d.Park())
	*now = now.Add(time.Minute)
	s = d.Status()
	assert.True(t, s.AtPark)
	assert.Equal(t, 90.0, s.Azimuth)

	require.NoError(t, d.FindHome())
	*now = now.Add(time.Minute)
	s = d.Status()
	assert.True(t, s.AtHome)
	assert.False(t, s.AtPark)
}

func TestShortestDelta(t *testing.T) {
	assert.Equal(t, 20.0, shortestDelta(350, 10))
	assert.Equal(t, -20.0, shortestDelta(10, 350))
	assert.Equal(t, 180.0, shortestDelta(0, 180))
	assert.Equal(t, 0.0, shortestDelta(42, 42))
}

func TestSetParkPersists(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "sim.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)

	cfg, err := store.DomeConfig()
	require.NoError(t, err)
	assert.Equal(t, 90.0, cfg.ParkPosition)

	d := NewDomeSimulator(0, cfg, store, log.New())
	require.NoError(t, d.Connect())
	require.NoError(t, d.SlewToAzimuth(200))
	require.NoError(t, d.SetPark())

	cfg, err = store.DomeConfig()
	require.NoError(t, err)
	assert.Equal(t, 200.0, cfg.ParkPosition)
	assert.True(t, d.Status().AtPark)
}

func TestStoreRejectsInvalidConfig(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "sim.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)

	assert.Error(t, store.SetDomeConfig(DomeConfig{ParkPosition: 360}))
	assert.Error(t, store.SetDomeConfig(DomeConfig{HomePosition: -1}))
}
