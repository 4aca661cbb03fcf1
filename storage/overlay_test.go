package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBatchWrite(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	require.NoError(t, db.Put([]byte("stale"), []byte("x")))

	batch := new(Batch)
	batch.Put([]byte("a"), []byte("1"))
	batch.Put([]byte("b"), []byte("2"))
	batch.Delete([]byte("stale"))
	require.Equal(t, 3, batch.Len())

	require.NoError(t, db.Write(batch))
	value, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)
	value, err = db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), value)
	_, err = db.Get([]byte("stale"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOverlayBuffersUntilFlush(t *testing.T) {
	base := NewMemDB()
	defer base.Close()
	require.NoError(t, base.Put([]byte("seen"), []byte("old")))

	overlay := NewOverlay(base)
	require.NoError(t, overlay.Put([]byte("seen"), []byte("new")))
	require.NoError(t, overlay.Put([]byte("fresh"), []byte("v")))
	require.NoError(t, overlay.Delete([]byte("seen")))
	require.NoError(t, overlay.Put([]byte("seen"), []byte("final")))

	// Reads go through the overlay first.
	value, err := overlay.Get([]byte("seen"))
	require.NoError(t, err)
	require.Equal(t, []byte("final"), value)
	ok, err := overlay.Has([]byte("fresh"))
	require.NoError(t, err)
	require.True(t, ok)

	// The base is untouched until Flush.
	value, err = base.Get([]byte("seen"))
	require.NoError(t, err)
	require.Equal(t, []byte("old"), value)
	_, err = base.Get([]byte("fresh"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, overlay.Flush())
	require.Equal(t, 0, overlay.Pending())
	value, err = base.Get([]byte("seen"))
	require.NoError(t, err)
	require.Equal(t, []byte("final"), value)
	value, err = base.Get([]byte("fresh"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)
}

func TestOverlayDeleteShadowsBase(t *testing.T) {
	base := NewMemDB()
	defer base.Close()
	require.NoError(t, base.Put([]byte("k"), []byte("v")))

	overlay := NewOverlay(base)
	require.NoError(t, overlay.Delete([]byte("k")))
	_, err := overlay.Get([]byte("k"))
	require.ErrorIs(t, err, ErrNotFound)
	ok, err := overlay.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, overlay.Flush())
	_, err = base.Get([]byte("k"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAbandonedOverlayLeavesBaseUntouched(t *testing.T) {
	base := NewMemDB()
	defer base.Close()

	overlay := NewOverlay(base)
	require.NoError(t, overlay.Put([]byte("k"), []byte("v")))
	require.Equal(t, 1, overlay.Pending())

	_, err := base.Get([]byte("k"))
	require.ErrorIs(t, err, ErrNotFound)
}
