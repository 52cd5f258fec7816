package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterSetAndTypedGetters(t *testing.T) {
	s := New()
	w := s.Acquire("indi")

	assert.True(t, w.Set("ABS_DOME_POSITION.DOME_ABSOLUTE_POSITION", 123.4))
	assert.True(t, w.Set("DOME_SHUTTER.SHUTTER_OPEN", true))
	assert.True(t, w.Set("DRIVER_INFO.DRIVER_NAME", "Dome Simulator"))
	assert.True(t, w.Set("FILTER_SLOT.FILTER_SLOT_VALUE", int64(3)))
	assert.False(t, w.Set("bad", []int{1}))

	az, ok := s.Float("ABS_DOME_POSITION.DOME_ABSOLUTE_POSITION")
	require.True(t, ok)
	assert.Equal(t, 123.4, az)

	open, ok := s.Bool("DOME_SHUTTER.SHUTTER_OPEN")
	require.True(t, ok)
	assert.True(t, open)

	name, _ := s.String("DRIVER_INFO.DRIVER_NAME")
	assert.Equal(t, "Dome Simulator", name)

	slot, ok := s.Int("FILTER_SLOT.FILTER_SLOT_VALUE")
	require.True(t, ok)
	assert.Equal(t, 3, slot)

	_, ok = s.Get("bad")
	assert.False(t, ok)
	assert.Equal(t, "indi", s.Owner())
}

func TestAcquireRevokesPreviousWriter(t *testing.T) {
	s := New()
	old := s.Acquire("indi")
	require.True(t, old.Set("A.B", 1.0))

	current := s.Acquire("alpaca")
	assert.False(t, old.Active())
	assert.False(t, old.Set("A.B", 2.0))
	assert.False(t, old.Delete("A.B"))
	assert.False(t, old.Clear())

	v, _ := s.Float("A.B")
	assert.Equal(t, 1.0, v)

	assert.True(t, current.Set("A.B", 3.0))
	v, _ = s.Float("A.B")
	assert.Equal(t, 3.0, v)
	assert.Equal(t, "alpaca", s.Owner())
}

func TestReleaseStopsWrites(t *testing.T) {
	s := New()
	w := s.Acquire("alpaca")
	w.Release()
	w.Release()

	assert.False(t, w.Set("A.B", 1.0))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, "", s.Owner())
}

func TestOnChangeOnlyFiresOnChange(t *testing.T) {
	s := New()
	var got []string
	s.OnChange(func(key string, value any) {
		got = append(got, key)
	})

	w := s.Acquire("indi")
	w.Set("A.B", 1.0)
	w.Set("A.B", 1.0)
	w.Set("A.B", 2.0)
	w.Delete("A.B")
	w.Delete("A.B")

	assert.Equal(t, []string{"A.B", "A.B", "A.B"}, got)
}

func TestClearReportsRemovedKeys(t *testing.T) {
	s := New()
	type change struct {
		key   string
		value any
	}
	var got []change
	s.OnChange(func(key string, value any) {
		got = append(got, change{key, value})
	})

	w := s.Acquire("alpaca")
	w.Set("slewing", false)
	w.Set("ABS_DOME_POSITION.DOME_ABSOLUTE_POSITION", 123.4)
	got = nil

	require.True(t, w.Clear())
	assert.Equal(t, []change{
		{"ABS_DOME_POSITION.DOME_ABSOLUTE_POSITION", nil},
		{"slewing", nil},
	}, got)

	// nothing left to report
	got = nil
	s.Clear()
	assert.Empty(t, got)

	w.Set("athome", true)
	got = nil
	s.Clear()
	assert.Equal(t, []change{{"athome", nil}}, got)
	assert.Equal(t, 0, s.Len())
}

func TestKeysAndSnapshot(t *testing.T) {
	s := New()
	w := s.Acquire("indi")
	w.Set("POWER_CONTROL.POWER_CONTROL_2", false)
	w.Set("POWER_CONTROL.POWER_CONTROL_1", true)
	w.Set("WEATHER_PARAMETERS.WEATHER_TEMPERATURE", 12.0)

	assert.Equal(t, []string{"POWER_CONTROL.POWER_CONTROL_1", "POWER_CONTROL.POWER_CONTROL_2"}, s.Keys("POWER_CONTROL."))

	snap := s.Snapshot()
	assert.Len(t, snap, 3)
	snap["X.Y"] = 1.0
	assert.Equal(t, 3, s.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	s := New()
	w := s.Acquire("alpaca")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.Float("A.B")
			}
		}()
	}
	for j := 0; j < 1000; j++ {
		w.Set("A.B", float64(j))
	}
	wg.Wait()

	v, _ := s.Float("A.B")
	assert.Equal(t, 999.0, v)
}
