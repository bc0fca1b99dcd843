package persist

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novadash/engine/internal/layout"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoad(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, KeySelectedWallets, []string{"w1", "w2"}))
	require.NoError(t, s.Save(ctx, KeySelectedWallets, []string{"w3"}))

	var wallets []string
	require.NoError(t, s.Load(ctx, KeySelectedWallets, &wallets))
	assert.Equal(t, []string{"w3"}, wallets)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{KeySelectedWallets}, keys)
}

func TestLoadMissing(t *testing.T) {
	s := openTemp(t)
	var v map[string]int
	err := s.Load(context.Background(), "nope", &v)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGeometryRoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	saved := map[string]layout.Geometry{
		"wallets": {
			Position: layout.Point{X: 0}, Size: layout.Size{Width: 400, Height: 900},
			SnappedSide: layout.SideLeft, Mode: layout.ModeSnap, State: layout.StateSnapped,
			Initialized: true, SnapWidth: 400,
		},
	}
	require.NoError(t, s.Save(ctx, KeyPanelGeometry, saved))

	var loaded map[string]layout.Geometry
	require.NoError(t, s.Load(ctx, KeyPanelGeometry, &loaded))
	assert.Equal(t, saved, loaded)

	require.NoError(t, s.Delete(ctx, KeyPanelGeometry))
	assert.ErrorIs(t, s.Load(ctx, KeyPanelGeometry, &loaded), ErrNotFound)
}

func TestReopenKeepsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, KeyPresets, map[string]int{"fast": 1}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	var presets map[string]int
	require.NoError(t, s.Load(ctx, KeyPresets, &presets))
	assert.Equal(t, 1, presets["fast"])
}
