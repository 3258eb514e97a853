package schema

import (
	"github.com/geodatakit/hspc/errs"
	"github.com/geodatakit/hspc/format"
)

// BandCount returns the number of spectral band fields in the schema.
func (s *Schema) BandCount() int {
	return s.FieldCountByID(format.FieldBandValue)
}

// Band returns the n-th (0-based) band field.
func (s *Schema) Band(n int) (Field, bool) {
	index, ok := s.NthIndex(format.FieldBandValue, n)
	if !ok {
		return Field{}, false
	}

	return s.Field(index)
}

// BandDescAt returns the band descriptor of the n-th band field.
func (s *Schema) BandDescAt(n int) (BandDesc, bool) {
	band, ok := s.Band(n)
	if !ok {
		return BandDesc{}, false
	}

	return BandDesc{Type: band.DataType, Name: band.Name, Description: band.Description}, true
}

// BandDescs returns the descriptors of every band field in sequence order.
func (s *Schema) BandDescs() []BandDesc {
	count := s.BandCount()
	out := make([]BandDesc, 0, count)
	for i := 0; i < count; i++ {
		desc, ok := s.BandDescAt(i)
		if !ok {
			return nil
		}
		out = append(out, desc)
	}

	return out
}

// AddBands appends count band fields sharing one descriptor.
func (s *Schema) AddBands(band BandDesc, count int) error {
	for i := 0; i < count; i++ {
		if err := s.AddBand(band.Type, band.Name, band.Description); err != nil {
			return err
		}
	}

	return nil
}

// AddBandList appends one band field per descriptor.
func (s *Schema) AddBandList(bands []BandDesc) error {
	for _, b := range bands {
		if err := s.AddBand(b.Type, b.Name, b.Description); err != nil {
			return err
		}
	}

	return nil
}

// AddBand appends a single band field of the given sample type. Band
// fields are never required, so they survive a SetDataFormat skeleton
// rebuild as user fields.
func (s *Schema) AddBand(dataType format.DataType, name, description string) error {
	var bits int
	switch dataType {
	case format.TypeUint8:
		bits = 8
	case format.TypeInt16, format.TypeUint16:
		bits = 16
	case format.TypeInt32, format.TypeUint32, format.TypeFloat32:
		bits = 32
	case format.TypeInt64, format.TypeUint64, format.TypeFloat64:
		bits = 64
	default:
		return errs.ErrInvalidBandDataType
	}

	band := NewField(format.FieldBandValue, name, dataType, bits)
	if description == "" {
		description = "spectral band sample value"
	}
	band.Description = description
	band.Required = false
	band.Active = true
	band.Numeric = true
	band.Integer = dataType.IsInteger()
	band.Signed = dataType.IsSigned()
	band.Scaled = false
	band.Offseted = false
	s.AddField(band)

	return nil
}

// RemoveBand removes the n-th (0-based) band field. Removing a band that
// does not exist is a no-op reported as success, unlike RemoveField,
// which reports false for an index out of range.
func (s *Schema) RemoveBand(n int) bool {
	index, ok := s.NthIndex(format.FieldBandValue, n)
	if !ok {
		return true
	}

	return s.RemoveField(index)
}

// RemoveAllBands removes every band field.
func (s *Schema) RemoveAllBands() bool {
	for s.BandCount() > 0 {
		if !s.RemoveBand(0) {
			return false
		}
	}

	return true
}
