package file

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geodatakit/hspc/errs"
	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/geom"
	"github.com/geodatakit/hspc/variant"
)

func classifiedPoint(t *testing.T, class uint8) *Point {
	t.Helper()
	p := NewPoint(NewHeader(format.PointFormat1))
	require.NoError(t, p.SetValuesByID(format.FieldClassification,
		[]variant.Variant{variant.FromUint8(class)}))

	return p
}

func TestClassificationFilter(t *testing.T) {
	ground := classifiedPoint(t, 2)
	noise := classifiedPoint(t, 7)

	f := &ClassificationFilter{Classes: []uint8{2}}
	require.True(t, f.Keep(ground))
	require.False(t, f.Keep(noise))

	exclude := &ClassificationFilter{Classes: []uint8{2}, Polarity: Exclusion}
	require.False(t, exclude.Keep(ground))
	require.True(t, exclude.Keep(noise))

	empty := &ClassificationFilter{}
	require.True(t, empty.Keep(noise))
}

func TestBoundsFilter(t *testing.T) {
	p := NewPoint(NewHeader(format.PointFormat0))
	p.SetCoordinates(5, 5, 5)

	in := &BoundsFilter{Bounds: geom.NewBounds3(0, 0, 0, 10, 10, 10)}
	require.True(t, in.Keep(p))

	out := &BoundsFilter{Bounds: geom.NewBounds3(6, 0, 0, 10, 10, 10)}
	require.False(t, out.Keep(p))
}

func TestThinFilter(t *testing.T) {
	p := NewPoint(NewHeader(format.PointFormat0))
	f := &ThinFilter{Amount: 2}

	var kept []int
	for i := 0; i < 9; i++ {
		if f.Keep(p) {
			kept = append(kept, i)
		}
	}
	require.Equal(t, []int{2, 4, 6, 8}, kept)
}

func TestReturnFilter(t *testing.T) {
	p := NewPoint(NewHeader(format.PointFormat1))
	require.NoError(t, p.SetValuesByID(format.FieldReturnNumber,
		[]variant.Variant{variant.FromBitset(variant.BitsetFromUint64(2, 4))}))
	require.NoError(t, p.SetValuesByID(format.FieldNumberOfReturns,
		[]variant.Variant{variant.FromBitset(variant.BitsetFromUint64(2, 4))}))

	f := &ReturnFilter{Returns: []uint16{2}}
	require.True(t, f.Keep(p))

	f = &ReturnFilter{Returns: []uint16{1, 3}}
	require.False(t, f.Keep(p))

	last := &ReturnFilter{LastOnly: true}
	require.True(t, last.Keep(p))

	require.NoError(t, p.SetValuesByID(format.FieldNumberOfReturns,
		[]variant.Variant{variant.FromBitset(variant.BitsetFromUint64(5, 4))}))
	require.False(t, last.Keep(p))
}

func TestValueFilterExpressions(t *testing.T) {
	p := NewPoint(NewHeader(format.PointFormat1))
	require.NoError(t, p.SetValuesByID(format.FieldIntensity,
		[]variant.Variant{variant.FromUint16(100)}))

	tests := []struct {
		expr string
		keep bool
	}{
		{">=100", true},
		{">=101", false},
		{"<101", true},
		{"<=99", false},
		{"==100", true},
		{"!=100", false},
		{"> 50", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := NewValueFilter(format.FieldIntensity, tt.expr)
			require.NoError(t, err)
			require.Equal(t, tt.keep, f.Keep(p))
		})
	}
}

func TestValueFilterInvalidExpression(t *testing.T) {
	for _, expr := range []string{"", "100", ">=abc", "~5"} {
		_, err := NewValueFilter(format.FieldIntensity, expr)
		require.ErrorIs(t, err, errs.ErrInvalidExpression, "expr %q", expr)
	}
}

func TestHeaderRebindTransformFlagsHeaderCheck(t *testing.T) {
	r := NewReader("unused.hsp")
	r.SetTransforms([]Transform{&TranslationTransform{DX: 1}})
	require.False(t, r.needHeaderCheck)

	r.SetTransforms([]Transform{&HeaderRebindTransform{Header: NewHeader(format.PointFormat0)}})
	require.True(t, r.needHeaderCheck)
}
