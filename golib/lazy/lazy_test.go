package lazy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOnce(t *testing.T) {
	var loads, unloads int
	l := NewLoader(func() error {
		loads++
		return nil
	}, func() {
		unloads++
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, l.LoadAndLock())
		l.Unlock()
	}
	require.Equal(t, 1, loads)

	l.Unload()
	require.Equal(t, 1, unloads)

	require.NoError(t, l.LoadAndLock())
	l.Unlock()
	require.Equal(t, 2, loads)
}

func TestLoadErrorSticky(t *testing.T) {
	var loads int
	l := NewLoader(func() error {
		loads++
		return errors.New("model unreachable")
	}, nil)

	require.Error(t, l.LoadAndLock())
	require.Error(t, l.LoadAndLock())
	require.Equal(t, 1, loads)

	// a failed load leaves no read lock behind, so Unload does not block
	l.Unload()
	require.Error(t, l.LoadAndLock())
	require.Equal(t, 2, loads)
}
