package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestRegistry(t *testing.T) *BadgerRegistry {
	dir := t.TempDir()
	r, err := OpenBadgerRegistry(dir)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestGetMissingReturnsNilNil(t *testing.T) {
	r := openTestRegistry(t)

	e, err := r.Get("did:example:missing")
	require.NoError(t, err)
	require.Nil(t, e)
}

func TestPutThenGet(t *testing.T) {
	r := openTestRegistry(t)

	in := Encoder{
		EncoderID: "did:example:E1",
		Name:      "encoder-one",
		Owner:     "alice",
		IsActive:  true,
		CreatedAt: time.Now().Truncate(time.Second),
	}
	require.NoError(t, r.Put(in))

	out, err := r.Get("did:example:E1")
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Equal(t, in.EncoderID, out.EncoderID)
	require.Equal(t, in.Name, out.Name)
	require.True(t, out.IsActive)
	require.Nil(t, out.LastSeen)
}

func TestPutOverwritesExisting(t *testing.T) {
	r := openTestRegistry(t)

	require.NoError(t, r.Put(Encoder{EncoderID: "did:example:E1", Name: "v1", IsActive: true}))
	require.NoError(t, r.Put(Encoder{EncoderID: "did:example:E1", Name: "v2", IsActive: false}))

	out, err := r.Get("did:example:E1")
	require.NoError(t, err)
	require.Equal(t, "v2", out.Name)
	require.False(t, out.IsActive)
}

func TestTouchStampsLastSeen(t *testing.T) {
	r := openTestRegistry(t)
	require.NoError(t, r.Put(Encoder{EncoderID: "did:example:E1", IsActive: true}))

	now := time.Now().Truncate(time.Second)
	require.NoError(t, r.Touch("did:example:E1", now))

	out, err := r.Get("did:example:E1")
	require.NoError(t, err)
	require.NotNil(t, out.LastSeen)
	require.True(t, out.LastSeen.Equal(now))
}

func TestTouchMissingIsNoop(t *testing.T) {
	r := openTestRegistry(t)
	require.NoError(t, r.Touch("did:example:ghost", time.Now()))
}
