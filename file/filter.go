package file

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/geodatakit/hspc/errs"
	"github.com/geodatakit/hspc/format"
	"github.com/geodatakit/hspc/geom"
)

// Filter decides whether a point passes through a reader or writer chain.
type Filter interface {
	Keep(p *Point) bool
}

// Transform mutates points as they stream through a chain. A transform
// that reports ModifiesHeader forces the reader to recheck the header
// binding of its reusable point on subsequent reads.
type Transform interface {
	Apply(p *Point) error
	ModifiesHeader() bool
}

// FilterFunc adapts a predicate function to the Filter interface.
type FilterFunc func(p *Point) bool

// Keep calls the wrapped predicate.
func (f FilterFunc) Keep(p *Point) bool { return f(p) }

// TransformFunc adapts a mutator function to the Transform interface. The
// adapted transform never modifies the header.
type TransformFunc func(p *Point) error

// Apply calls the wrapped mutator.
func (t TransformFunc) Apply(p *Point) error { return t(p) }

// ModifiesHeader always reports false for adapted functions.
func (t TransformFunc) ModifiesHeader() bool { return false }

// Polarity switches a filter between keeping and dropping matches.
type Polarity int

const (
	Inclusion Polarity = iota
	Exclusion
)

// ClassificationFilter keeps points whose classification code is in the
// class list (Inclusion) or out of it (Exclusion). An empty class list
// keeps everything.
type ClassificationFilter struct {
	Classes  []uint8
	Polarity Polarity
}

// Keep implements Filter.
func (f *ClassificationFilter) Keep(p *Point) bool {
	if len(f.Classes) == 0 {
		return true
	}
	values, err := p.ValuesByID(format.FieldClassification)
	if err != nil {
		return false
	}
	code, ok := values[0].Uint8()
	if !ok {
		return false
	}

	for _, c := range f.Classes {
		if c == code {
			return f.Polarity == Inclusion
		}
	}

	return f.Polarity != Inclusion
}

// BoundsFilter keeps points inside the given 3-D bounds.
type BoundsFilter struct {
	Bounds geom.Bounds3
}

// Keep implements Filter.
func (f *BoundsFilter) Keep(p *Point) bool {
	return f.Bounds.Contains(p.X(), p.Y(), p.Z())
}

// ThinFilter keeps every n-th point. It is a counter, not a spatial
// thinning.
type ThinFilter struct {
	Amount uint32
	count  uint32
}

// Keep implements Filter.
func (f *ThinFilter) Keep(_ *Point) bool {
	keep := f.count == f.Amount
	if keep {
		f.count = 0
	}
	f.count++

	return keep
}

// ReturnFilter keeps points whose return number is in the list, or only
// last returns when LastOnly is set.
type ReturnFilter struct {
	Returns  []uint16
	LastOnly bool
	Polarity Polarity
}

// Keep implements Filter.
func (f *ReturnFilter) Keep(p *Point) bool {
	if f.LastOnly {
		returns, err1 := p.ValuesByID(format.FieldNumberOfReturns)
		number, err2 := p.ValuesByID(format.FieldReturnNumber)
		if err1 != nil || err2 != nil {
			return false
		}
		total, ok1 := returns[0].Uint8()
		current, ok2 := number[0].Uint8()
		if !ok1 || !ok2 {
			return false
		}
		isLast := current == total
		if f.Polarity == Exclusion {
			return !isLast
		}

		return isLast
	}

	if len(f.Returns) == 0 {
		return true
	}
	values, err := p.ValuesByID(format.FieldReturnNumber)
	if err != nil {
		return false
	}
	r, ok := values[0].Uint16()
	if !ok {
		return false
	}
	for _, want := range f.Returns {
		if want == r {
			return f.Polarity == Inclusion
		}
	}

	return f.Polarity != Inclusion
}

// ValueFilter keeps points by comparing one field's logical value against
// a parsed comparison expression such as ">=2", "<5.5", "==3" or "!=0".
type ValueFilter struct {
	ID format.FieldID

	op        string
	threshold float64
}

// NewValueFilter parses the expression and builds the filter. Unparsable
// expressions are rejected with errs.ErrInvalidExpression.
func NewValueFilter(id format.FieldID, expression string) (*ValueFilter, error) {
	expr := strings.TrimSpace(expression)
	for _, op := range []string{">=", "<=", "==", "!=", ">", "<"} {
		rest, found := strings.CutPrefix(expr, op)
		if !found {
			continue
		}
		threshold, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errs.ErrInvalidExpression, expression)
		}

		return &ValueFilter{ID: id, op: op, threshold: threshold}, nil
	}

	return nil, fmt.Errorf("%w: %q", errs.ErrInvalidExpression, expression)
}

// Keep implements Filter.
func (f *ValueFilter) Keep(p *Point) bool {
	values, err := p.ValuesByID(f.ID)
	if err != nil {
		return false
	}
	v, ok := values[0].Float64()
	if !ok {
		return false
	}

	switch f.op {
	case ">=":
		return v >= f.threshold
	case "<=":
		return v <= f.threshold
	case "==":
		return v == f.threshold
	case "!=":
		return v != f.threshold
	case ">":
		return v > f.threshold
	case "<":
		return v < f.threshold
	default:
		return false
	}
}

// TranslationTransform shifts every point's coordinates by a constant
// vector.
type TranslationTransform struct {
	DX, DY, DZ float64
}

// Apply implements Transform.
func (t *TranslationTransform) Apply(p *Point) error {
	p.SetCoordinates(p.X()+t.DX, p.Y()+t.DY, p.Z()+t.DZ)

	return nil
}

// ModifiesHeader implements Transform.
func (t *TranslationTransform) ModifiesHeader() bool { return false }

// HeaderRebindTransform rebinds streamed points to a different header,
// re-projecting coordinates when scale or offset differ.
type HeaderRebindTransform struct {
	Header *Header
}

// Apply implements Transform.
func (t *HeaderRebindTransform) Apply(p *Point) error {
	p.SetHeader(t.Header)

	return nil
}

// ModifiesHeader implements Transform.
func (t *HeaderRebindTransform) ModifiesHeader() bool { return true }
