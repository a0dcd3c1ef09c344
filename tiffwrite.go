package ndimg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
)

// TIFF field types.
const (
	tiffShort  = 3
	tiffLong   = 4
	tiffDouble = 12
)

// TIFF tile widths and lengths must be multiples of 16.
const (
	tiffTileEdgeMultiple = 16
	maxTIFFTileEdge      = math.MaxUint16 / tiffTileEdgeMultiple * tiffTileEdgeMultiple
)

// A TIFFWriteOption sets an option on WriteTIFF.
type TIFFWriteOption func(*tiffWriter)

type tiffWriter struct {
	tileEdge    int
	compression TIFFCompression
}

// An ifdEntry is a single TIFF field. data is encoded in little-endian order.
type ifdEntry struct {
	tag       uint16
	fieldType uint16
	count     uint32
	data      []byte
}

// WithTIFFTileEdge sets the width and length of the TIFF tiles. tileEdge must
// be a positive multiple of 16.
func WithTIFFTileEdge(tileEdge int) TIFFWriteOption {
	return func(w *tiffWriter) {
		w.tileEdge = tileEdge
	}
}

// WithTIFFCompression sets the compression scheme. Only TIFFCompressionNone
// and TIFFCompressionZSTD are supported for writing.
func WithTIFFCompression(compression TIFFCompression) TIFFWriteOption {
	return func(w *tiffWriter) {
		w.compression = compression
	}
}

// WriteTIFF writes the two-dimensional container c to w as a little-endian
// tiled TIFF. The tile edge defaults to the block edge if c is a Blocked,
// otherwise 256, limited to the larger image extent and rounded up to a
// multiple of 16. The interval's origin is recorded as a model tiepoint with
// unit pixel scale so that [OpenTIFF] restores the same interval.
func WriteTIFF(w io.Writer, c Container[float32], options ...TIFFWriteOption) error {
	interval := c.Interval()
	switch {
	case interval.NumDimensions() != 2:
		return fmt.Errorf("%d dimensions: %w", interval.NumDimensions(), errors.ErrUnsupported)
	case interval.Extent(0) > math.MaxUint16 || interval.Extent(1) > math.MaxUint16:
		return fmt.Errorf("%s: %w", interval, errors.ErrUnsupported)
	}

	tileEdge := 256
	if blocked, ok := c.(*Blocked[float32]); ok {
		tileEdge = blocked.BlockEdge()
	}
	tileEdge = min(tileEdge, max(interval.Extent(0), interval.Extent(1)))
	tw := &tiffWriter{
		tileEdge:    min((tileEdge+tiffTileEdgeMultiple-1)/tiffTileEdgeMultiple*tiffTileEdgeMultiple, maxTIFFTileEdge),
		compression: TIFFCompressionNone,
	}
	for _, option := range options {
		option(tw)
	}
	if tw.tileEdge <= 0 || tw.tileEdge > maxTIFFTileEdge || tw.tileEdge%tiffTileEdgeMultiple != 0 {
		return fmt.Errorf("%w: tile edge %d", ErrInvalidConfig, tw.tileEdge)
	}

	var encoder *zstd.Encoder
	switch tw.compression {
	case TIFFCompressionNone:
	case TIFFCompressionZSTD:
		var err error
		if encoder, err = zstd.NewWriter(nil); err != nil {
			return err
		}
		defer encoder.Close()
	default:
		return fmt.Errorf("compression %d: %w", tw.compression, errors.ErrUnsupported)
	}

	width, length := interval.Extent(0), interval.Extent(1)
	tilesAcross := (width + tw.tileEdge - 1) / tw.tileEdge
	tilesDown := (length + tw.tileEdge - 1) / tw.tileEdge
	tiles := make([][]byte, tilesAcross*tilesDown)
	randomAccess := c.RandomAccess()
	for tileIndex := range tiles {
		x0 := tw.tileEdge * (tileIndex % tilesAcross)
		y0 := tw.tileEdge * (tileIndex / tilesAcross)
		tileData := make([]byte, 4*tw.tileEdge*tw.tileEdge)
		for y := y0; y < min(y0+tw.tileEdge, length); y++ {
			for x := x0; x < min(x0+tw.tileEdge, width); x++ {
				randomAccess.SetPosition(Coord{interval.Min(0) + x, interval.Min(1) + y})
				sample, err := randomAccess.Get()
				if err != nil {
					return err
				}
				i := 4 * ((x - x0) + (y-y0)*tw.tileEdge)
				binary.LittleEndian.PutUint32(tileData[i:i+4], math.Float32bits(sample))
			}
		}
		if encoder != nil {
			tileData = encoder.EncodeAll(tileData, nil)
		}
		tiles[tileIndex] = tileData
	}

	tileOffsets := make([]uint32, len(tiles))
	tileByteCounts := make([]uint32, len(tiles))
	for i, tileData := range tiles {
		tileByteCounts[i] = uint32(len(tileData))
	}
	entries := []ifdEntry{
		shortEntry(256, uint16(width)),
		shortEntry(257, uint16(length)),
		shortEntry(258, 32),
		shortEntry(259, uint16(tw.compression)),
		shortEntry(262, 1),
		shortEntry(277, 1),
		shortEntry(284, 1),
		shortEntry(317, 1),
		shortEntry(322, uint16(tw.tileEdge)),
		shortEntry(323, uint16(tw.tileEdge)),
		longsEntry(324, tileOffsets),
		longsEntry(325, tileByteCounts),
		shortEntry(339, 3),
		doublesEntry(33550, []float64{1, 1, 0}),
		doublesEntry(33922, []float64{0, 0, 0, float64(interval.Min(0)), float64(interval.Min(1)), 0}),
	}

	// Layout: header, IFD, out-of-line field values, tile data.
	ifdOffset := 8
	extraOffset := ifdOffset + 2 + 12*len(entries) + 4
	dataOffset := extraOffset
	for _, entry := range entries {
		if len(entry.data) > 4 {
			dataOffset += len(entry.data)
		}
	}
	offset := dataOffset
	for i, tileData := range tiles {
		if uint64(offset)+uint64(len(tileData)) > math.MaxUint32 {
			return fmt.Errorf("%d bytes of tile data: %w", offset+len(tileData), errors.ErrUnsupported)
		}
		tileOffsets[i] = uint32(offset)
		offset += len(tileData)
	}
	for i, entry := range entries {
		if entry.tag == 324 {
			entries[i] = longsEntry(324, tileOffsets)
		}
	}

	buf := &bytes.Buffer{}
	buf.WriteString("II")
	_ = binary.Write(buf, binary.LittleEndian, uint16(42))
	_ = binary.Write(buf, binary.LittleEndian, uint32(ifdOffset))
	_ = binary.Write(buf, binary.LittleEndian, uint16(len(entries)))
	extra := &bytes.Buffer{}
	for _, entry := range entries {
		_ = binary.Write(buf, binary.LittleEndian, entry.tag)
		_ = binary.Write(buf, binary.LittleEndian, entry.fieldType)
		_ = binary.Write(buf, binary.LittleEndian, entry.count)
		if len(entry.data) <= 4 {
			value := make([]byte, 4)
			copy(value, entry.data)
			buf.Write(value)
		} else {
			_ = binary.Write(buf, binary.LittleEndian, uint32(extraOffset+extra.Len()))
			extra.Write(entry.data)
		}
	}
	_ = binary.Write(buf, binary.LittleEndian, uint32(0))
	buf.Write(extra.Bytes())

	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	for _, tileData := range tiles {
		if _, err := w.Write(tileData); err != nil {
			return err
		}
	}
	return nil
}

func shortEntry(tag, value uint16) ifdEntry {
	return ifdEntry{
		tag:       tag,
		fieldType: tiffShort,
		count:     1,
		data:      binary.LittleEndian.AppendUint16(nil, value),
	}
}

func longsEntry(tag uint16, values []uint32) ifdEntry {
	data := make([]byte, 0, 4*len(values))
	for _, value := range values {
		data = binary.LittleEndian.AppendUint32(data, value)
	}
	return ifdEntry{
		tag:       tag,
		fieldType: tiffLong,
		count:     uint32(len(values)),
		data:      data,
	}
}

func doublesEntry(tag uint16, values []float64) ifdEntry {
	data := make([]byte, 0, 8*len(values))
	for _, value := range values {
		data = binary.LittleEndian.AppendUint64(data, math.Float64bits(value))
	}
	return ifdEntry{
		tag:       tag,
		fieldType: tiffDouble,
		count:     uint32(len(values)),
		data:      data,
	}
}
