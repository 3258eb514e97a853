// Command hspcinfo inspects HSPCD container files: header metadata, the
// field table, waveform descriptors, and optionally the spatial index.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/geodatakit/hspc"
	"github.com/geodatakit/hspc/index"
)

func main() {
	var (
		asJSON     bool
		showFields bool
		buildIndex bool
	)

	app := &cli.Command{
		Name:      "hspcinfo",
		Usage:     "Inspect hyperspectral point-cloud container files",
		ArgsUsage: "<file.hsp>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "emit machine-readable JSON", Destination: &asJSON},
			&cli.BoolFlag{Name: "fields", Usage: "list the field table", Destination: &showFields},
			&cli.BoolFlag{Name: "index", Usage: "build (or load) the spatial index and report its shape", Destination: &buildIndex},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx
			if c.Args().Len() != 1 {
				return cli.Exit("usage: hspcinfo [--json] [--fields] [--index] <file.hsp>", 2)
			}

			return run(c.Args().First(), asJSON, showFields, buildIndex)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type fieldInfo struct {
	Name       string  `json:"name"`
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Bits       int     `json:"bits"`
	ByteOffset int     `json:"byteOffset"`
	BitOffset  int     `json:"bitOffset"`
	Scale      float64 `json:"scale,omitempty"`
	Offset     float64 `json:"offset,omitempty"`
}

type headerInfo struct {
	File           string      `json:"file"`
	Version        string      `json:"version"`
	Points         uint64      `json:"points"`
	RecordLength   uint32      `json:"recordLength"`
	DataOffset     uint64      `json:"dataOffset"`
	Returns        []uint64    `json:"pointsByReturn"`
	Min            [3]float64  `json:"min"`
	Max            [3]float64  `json:"max"`
	Bands          int         `json:"bands"`
	WaveformDescs  int         `json:"waveformDescriptors"`
	InternalWf     bool        `json:"internalWaveform"`
	SRS            string      `json:"srs,omitempty"`
	Fields         []fieldInfo `json:"fields,omitempty"`
	IndexCells     [3]uint32   `json:"indexCells,omitempty"`
	IndexAvailable bool        `json:"indexAvailable,omitempty"`
}

func run(path string, asJSON, showFields, buildIndex bool) error {
	r, err := hspc.OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	h := r.Header()
	info := headerInfo{
		File:          path,
		Version:       fmt.Sprintf("%d.%d", h.VersionMajor(), h.VersionMinor()),
		Points:        h.PointRecordsCount(),
		RecordLength:  h.DataRecordLength(),
		DataOffset:    h.DataOffset(),
		Returns:       h.PointRecordsByReturnCount(),
		Min:           [3]float64{h.MinX(), h.MinY(), h.MinZ()},
		Max:           [3]float64{h.MaxX(), h.MaxY(), h.MaxZ()},
		Bands:         h.Schema().BandCount(),
		WaveformDescs: len(h.WaveformDescriptors()),
		InternalWf:    h.InternalWaveformData(),
		SRS:           r.SRS(),
	}

	if showFields {
		s := h.Schema()
		for i := 0; i < s.FieldCount(); i++ {
			f, _ := s.Field(i)
			fi := fieldInfo{
				Name:       f.Name,
				ID:         f.ID.String(),
				Type:       f.DataType.String(),
				Bits:       f.BitSize,
				ByteOffset: f.ByteOffset,
				BitOffset:  f.BitOffset,
			}
			if f.Scaled {
				fi.Scale = f.Scale
			}
			if f.Offseted {
				fi.Offset = f.Offset
			}
			info.Fields = append(info.Fields, fi)
		}
	}

	if buildIndex {
		idx, err := hspc.BuildIndex(r,
			index.WithTempFile(path+".tmp"),
			index.WithDebug(1, os.Stderr))
		if err != nil {
			return err
		}
		cx, cy, cz := idx.CellCounts()
		info.IndexCells = [3]uint32{cx, cy, cz}
		info.IndexAvailable = idx.Ready()
	}

	if asJSON {
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))

		return nil
	}

	fmt.Printf("File:            %s\n", info.File)
	fmt.Printf("Version:         %s\n", info.Version)
	fmt.Printf("Points:          %d\n", info.Points)
	fmt.Printf("Record length:   %d bytes\n", info.RecordLength)
	fmt.Printf("Data offset:     %d\n", info.DataOffset)
	fmt.Printf("Points/return:   %v\n", info.Returns)
	fmt.Printf("Extent min:      %.3f %.3f %.3f\n", info.Min[0], info.Min[1], info.Min[2])
	fmt.Printf("Extent max:      %.3f %.3f %.3f\n", info.Max[0], info.Max[1], info.Max[2])
	fmt.Printf("Spectral bands:  %d\n", info.Bands)
	fmt.Printf("Waveform descs:  %d (internal: %v)\n", info.WaveformDescs, info.InternalWf)
	if info.SRS != "" {
		fmt.Printf("SRS:             %s\n", info.SRS)
	}
	for _, f := range info.Fields {
		fmt.Printf("  field %-24s %-8s %3d bits  at %d+%d\n",
			f.Name, f.Type, f.Bits, f.ByteOffset, f.BitOffset)
	}
	if buildIndex {
		fmt.Printf("Index:           %dx%dx%d cells (ready: %v)\n",
			info.IndexCells[0], info.IndexCells[1], info.IndexCells[2], info.IndexAvailable)
	}

	return nil
}
