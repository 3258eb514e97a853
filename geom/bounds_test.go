package geom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBounds3(t *testing.T) {
	b := NewBounds3(10, 5, 1, 0, 15, -1)
	require.Equal(t, 0.0, b.MinX)
	require.Equal(t, 10.0, b.MaxX)
	require.Equal(t, -1.0, b.MinZ)
	require.True(t, b.Valid())
	require.Equal(t, 10.0, b.RangeX())
	require.Equal(t, 10.0, b.RangeY())
	require.Equal(t, 2.0, b.RangeZ())

	require.True(t, b.Contains(0, 5, 0))
	require.True(t, b.Contains(10, 15, 1))
	require.False(t, b.Contains(10.1, 5, 0))
}

func TestBounds3Grow(t *testing.T) {
	b := EmptyBounds3()
	require.False(t, b.Valid())

	b.Grow(1, 2, 3)
	b.Grow(-1, 5, 0)
	require.True(t, b.Valid())
	require.Equal(t, Bounds3{MinX: -1, MaxX: 1, MinY: 2, MaxY: 5, MinZ: 0, MaxZ: 3}, b)
}

func TestBounds3Clip(t *testing.T) {
	b := NewBounds3(-5, -5, -5, 20, 20, 20)
	b.Clip(NewBounds3(0, 0, 0, 10, 10, 10))
	require.Equal(t, NewBounds3(0, 0, 0, 10, 10, 10), b)
}

func TestBounds3Equal(t *testing.T) {
	a := NewBounds3(0, 0, 0, 1, 1, 1)
	b := NewBounds3(0, 0, 0, 1, 1, 1)
	require.True(t, a.Equal(b))

	b.MaxX += 0.001
	require.False(t, a.Equal(b))
}
