package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bravia-rpc/bravia-go/pkg/credentials"
)

func TestStateStore(t *testing.T) {
	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewStateStore(filepath.Join(t.TempDir(), "state.yaml"))

		got, err := store.Load()
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "state.yaml")
		store := NewStateStore(path)

		expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
		state := &State{Devices: []DeviceRecord{
			{Host: "192.168.1.20", Name: "Living Room", PSK: "0000"},
			{Host: "192.168.1.21", Session: &credentials.Session{Name: "ctl", UUID: "u-1", Token: "tok", Expires: expires}},
		}}
		require.NoError(t, store.Save(state))

		got, err := store.Load()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, StateVersion, got.Version)
		assert.False(t, got.SavedAt.IsZero())
		require.Len(t, got.Devices, 2)
		assert.Equal(t, "Living Room", got.Devices[0].Name)
		assert.Equal(t, "tok", got.Devices[1].Session.Token)
		assert.True(t, expires.Equal(got.Devices[1].Session.Expires))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("Clear", func(t *testing.T) {
		store := NewStateStore(filepath.Join(t.TempDir(), "state.yaml"))
		require.NoError(t, store.Save(&State{}))
		require.NoError(t, store.Clear())
		require.NoError(t, store.Clear(), "clearing twice is fine")

		got, err := store.Load()
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CorruptFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.yaml")
		require.NoError(t, os.WriteFile(path, []byte("devices: [unterminated"), 0o600))

		_, err := NewStateStore(path).Load()
		assert.Error(t, err)
	})

	t.Run("NewerVersion", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: 99\n"), 0o600))

		_, err := NewStateStore(path).Load()
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})
}

func TestStateLookupUpsertRemove(t *testing.T) {
	var nilState *State
	assert.Nil(t, nilState.Lookup("x"))

	s := &State{}
	s.Upsert(DeviceRecord{Host: "TV.local", PSK: "1"})
	s.Upsert(DeviceRecord{Host: "other", PSK: "2"})
	s.Upsert(DeviceRecord{Host: "tv.local", PSK: "3"})

	require.Len(t, s.Devices, 2)
	assert.Equal(t, "3", s.Lookup("TV.LOCAL").PSK)

	assert.True(t, s.Remove("tv.local"))
	assert.False(t, s.Remove("tv.local"))
	assert.Nil(t, s.Lookup("tv.local"))
	assert.Len(t, s.Devices, 1)
}

func TestDeviceRecordCredentials(t *testing.T) {
	var nilRec *DeviceRecord
	assert.Nil(t, nilRec.Credentials())
	assert.Nil(t, (&DeviceRecord{Host: "h"}).Credentials())
	assert.Nil(t, (&DeviceRecord{Host: "h", Session: credentials.NewSession("ctl")}).Credentials(), "unpaired session")

	c := (&DeviceRecord{Host: "h", PSK: "0000"}).Credentials()
	require.NotNil(t, c)
	assert.Equal(t, "0000", c.Headers().Get(credentials.HeaderPSK))
}

func TestStateStoreUpdate(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "state.yaml"))

	var wg sync.WaitGroup
	for _, host := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Update(func(s *State) error {
				s.Upsert(DeviceRecord{Host: host})
				return nil
			}))
		}()
	}
	wg.Wait()

	got, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, got.Devices, 4)

	boom := errors.New("boom")
	err = store.Update(func(s *State) error {
		s.Devices = nil
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err = store.Load()
	require.NoError(t, err)
	assert.Len(t, got.Devices, 4, "failed update must not be saved")
}
