package schema

import (
	"github.com/geodatakit/hspc/format"
)

// The preset builders below append the required fields of each point
// format skeleton in their canonical order. X, Y and Z always store raw
// integers; the caller-visible double coordinate is raw*scale + offset
// with scale/offset drawn from the field metadata.

func (s *Schema) addXYZ() {
	x := NewField(format.FieldX, "X", format.TypeUint32, 32)
	x.Description = "x coordinate as a long integer, scaled and offset by the field metadata"
	x.Integer = true
	x.Numeric = true
	x.Signed = true
	x.Required = true
	x.Active = true
	s.AddField(x)

	y := NewField(format.FieldY, "Y", format.TypeUint32, 32)
	y.Description = "y coordinate as a long integer, scaled and offset by the field metadata"
	y.Integer = true
	y.Numeric = true
	y.Signed = true
	y.Required = true
	y.Active = true
	s.AddField(y)

	z := NewField(format.FieldZ, "Z", format.TypeUint32, 32)
	z.Description = "z coordinate as a long integer, scaled and offset by the field metadata"
	z.Integer = true
	z.Numeric = true
	z.Signed = true
	z.Required = true
	z.Active = true
	s.AddField(z)
}

func (s *Schema) addASPRSBasicFields() {
	intensity := NewField(format.FieldIntensity, "Intensity", format.TypeUint16, 16)
	intensity.Description = "integer representation of the pulse return magnitude"
	intensity.Integer = true
	intensity.Numeric = true
	s.AddField(intensity)

	returnNo := NewField(format.FieldReturnNumber, "Return Number", format.TypeBit, 4)
	returnNo.Description = "pulse return number for a given output pulse"
	returnNo.Numeric = true
	returnNo.Integer = true
	s.AddField(returnNo)

	noReturns := NewField(format.FieldNumberOfReturns, "Number of Returns", format.TypeBit, 4)
	noReturns.Description = "total number of returns for a given pulse"
	noReturns.Numeric = true
	noReturns.Integer = true
	s.AddField(noReturns)

	classFlags := NewField(format.FieldClassificationFlags, "Classification Flags", format.TypeBit, 6)
	classFlags.Description = "synthetic, key-point, withheld and overlap flags"
	classFlags.Numeric = true
	classFlags.Integer = true
	s.AddField(classFlags)

	scanDir := NewField(format.FieldScanDirectionFlag, "Scan Direction", format.TypeBit, 1)
	scanDir.Description = "direction the scanner mirror was traveling at the output pulse"
	scanDir.Numeric = true
	scanDir.Integer = true
	s.AddField(scanDir)

	edge := NewField(format.FieldEdgeOfFlightLine, "Flightline Edge", format.TypeBit, 1)
	edge.Description = "set only when the point is at the end of a scan line"
	edge.Numeric = true
	edge.Integer = true
	s.AddField(edge)

	scannerChannel := NewField(format.FieldScannerChannel, "Scanner Channel", format.TypeUint8, 8)
	scannerChannel.Description = "scanner head channel of multi-channel systems"
	scannerChannel.Numeric = true
	scannerChannel.Integer = true
	s.AddField(scannerChannel)

	classification := NewField(format.FieldClassification, "Classification", format.TypeUint8, 8)
	classification.Description = "ASPRS standard point classification"
	s.AddField(classification)

	scanAngle := NewField(format.FieldScanAngleRank, "Scan Angle Rank", format.TypeUint8, 8)
	scanAngle.Description = "signed scan angle in degrees from nadir, -90 to +90"
	scanAngle.Signed = true
	scanAngle.Integer = true
	scanAngle.Numeric = true
	s.AddField(scanAngle)

	pointSource := NewField(format.FieldPointSourceID, "Point Source ID", format.TypeUint16, 16)
	pointSource.Description = "file source id the point originated from"
	pointSource.Integer = true
	pointSource.Numeric = true
	s.AddField(pointSource)

	for i := range s.fields {
		s.fields[i].Required = true
		s.fields[i].Active = true
	}
}

func (s *Schema) addTime() {
	t := NewField(format.FieldGNSSTime, "Time", format.TypeFloat64, 64)
	t.Description = "GNSS time tag value at which the point was acquired"
	t.Required = true
	t.Active = true
	t.Numeric = true
	s.AddField(t)
}

func (s *Schema) addColor() {
	red := NewField(format.FieldRed, "Red", format.TypeUint16, 16)
	red.Description = "red image channel value associated with this point"
	red.Required = true
	red.Active = true
	red.Integer = true
	red.Numeric = true
	s.AddField(red)

	green := NewField(format.FieldGreen, "Green", format.TypeUint16, 16)
	green.Description = "green image channel value associated with this point"
	green.Required = true
	green.Active = true
	green.Integer = true
	green.Numeric = true
	s.AddField(green)

	blue := NewField(format.FieldBlue, "Blue", format.TypeUint16, 16)
	blue.Description = "blue image channel value associated with this point"
	blue.Required = true
	blue.Active = true
	blue.Integer = true
	blue.Numeric = true
	s.AddField(blue)
}

func (s *Schema) addNIR() {
	nir := NewField(format.FieldNIR, "NIR", format.TypeUint16, 16)
	nir.Description = "near infrared image channel value associated with this point"
	nir.Required = true
	nir.Active = true
	nir.Integer = true
	nir.Numeric = true
	s.AddField(nir)
}

func (s *Schema) addWaveform() {
	byteOffset := NewField(format.FieldByteOffsetToWaveformData, "WaveformOffset", format.TypeUint64, 64)
	byteOffset.Description = "byte offset of the point's waveform data, never scaled or offset"
	byteOffset.Integer = true
	byteOffset.Numeric = true
	byteOffset.Required = true
	byteOffset.Active = true
	s.AddField(byteOffset)

	size := NewField(format.FieldWaveformDataSize, "WaveformSize", format.TypeUint32, 32)
	size.Description = "waveform data size in bytes, never scaled or offset"
	size.Integer = true
	size.Numeric = true
	size.Required = true
	size.Active = true
	s.AddField(size)
}
