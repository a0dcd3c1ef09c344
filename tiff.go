package ndimg

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"runtime"
	"slices"
	"sync"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/image/tiff/lzw"
	"golang.org/x/sync/errgroup"
)

// TIFF compression schemes. TIFFCompressionZSTD is the value used by GDAL.
const (
	TIFFCompressionNone TIFFCompression = 1
	TIFFCompressionLZW  TIFFCompression = 5
	TIFFCompressionZSTD TIFFCompression = 50000
)

var errShortRead = errors.New("short read")

// A TIFFCompression is a TIFF compression scheme.
type TIFFCompression uint16

// A tiffFile is a file that github.com/google/tiff can parse.
type tiffFile interface {
	fs.File
	io.ReaderAt
	io.Seeker
}

// A TIFFImage is an open tiled TIFF file containing a single band of 32-bit
// floating point samples. Tiles are read and decompressed on demand and kept
// in a cache.
type TIFFImage struct {
	mutex           sync.Mutex
	file            tiffFile
	byteOrder       binary.ByteOrder
	interval        Interval
	imageWidth      int
	imageLength     int
	tileWidth       int
	tileLength      int
	tilesAcross     int
	tilesDown       int
	compression     TIFFCompression
	tileOffsets     []uint64
	tileByteCounts  []uint64
	tileSampleCount int
	tileCacheSize   int
	tileCache       *lru.Cache[int, []float32]
	zstdDecoder     *zstd.Decoder
}

// A TIFFOption sets an option on a TIFFImage.
type TIFFOption func(*TIFFImage)

// A tiffIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type tiffIFD struct {
	ImageWidth                uint16    `tiff:"field,tag=256"`
	ImageLength               uint16    `tiff:"field,tag=257"`
	BitsPerSample             uint16    `tiff:"field,tag=258"`
	Compression               uint16    `tiff:"field,tag=259"`
	PhotometricInterpretation uint16    `tiff:"field,tag=262"`
	SamplesPerPixel           uint16    `tiff:"field,tag=277"`
	PlanarConfiguration       uint16    `tiff:"field,tag=284"`
	Predictor                 uint16    `tiff:"field,tag=317"`
	TileWidth                 uint16    `tiff:"field,tag=322"`
	TileLength                uint16    `tiff:"field,tag=323"`
	TileOffsets               []uint64  `tiff:"field,tag=324"`
	TileByteCounts            []uint64  `tiff:"field,tag=325"`
	SampleFormat              uint16    `tiff:"field,tag=339"`
	ModelPixelScaleTag        []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag          []float64 `tiff:"field,tag=33922"`
}

// OpenTIFF opens filename in fsys.
func OpenTIFF(fsys fs.FS, filename string, options ...TIFFOption) (*TIFFImage, error) {
	var err error
	ok := false

	m := &TIFFImage{
		tileCacheSize: 64,
	}
	for _, option := range options {
		option(m)
	}

	file, err := fsys.Open(filename)
	if err != nil {
		return nil, err
	}
	if _, ok := file.(tiffFile); !ok {
		_ = file.Close()
		return nil, errors.ErrUnsupported
	}
	m.file = file.(tiffFile)
	defer func() {
		if !ok {
			_ = m.file.Close()
		}
	}()

	header := make([]byte, 2)
	if _, err := m.file.ReadAt(header, 0); err != nil {
		return nil, err
	}
	switch string(header) {
	case "II":
		m.byteOrder = binary.LittleEndian
	case "MM":
		m.byteOrder = binary.BigEndian
	default:
		return nil, fmt.Errorf("%s: not a TIFF file", filename)
	}

	tiffTIFF, err := tiff.Parse(m.file, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, err
	}

	if len(tiffTIFF.IFDs()) != 1 {
		return nil, fmt.Errorf("found %d IFDs, expected 1", len(tiffTIFF.IFDs()))
	}

	var ifd tiffIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, err
	}

	if ifd.Compression == 0 {
		ifd.Compression = uint16(TIFFCompressionNone)
	}
	if ifd.BitsPerSample != 32 ||
		ifd.SampleFormat != 3 ||
		ifd.SamplesPerPixel != 1 ||
		ifd.PlanarConfiguration > 1 ||
		ifd.Predictor > 1 ||
		ifd.TileWidth == 0 || ifd.TileLength == 0 {
		return nil, errors.ErrUnsupported
	}
	m.compression = TIFFCompression(ifd.Compression)
	switch m.compression {
	case TIFFCompressionNone, TIFFCompressionLZW:
	case TIFFCompressionZSTD:
		if m.zstdDecoder, err = zstd.NewReader(nil); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("compression %d: %w", m.compression, errors.ErrUnsupported)
	}

	m.imageWidth = int(ifd.ImageWidth)
	m.imageLength = int(ifd.ImageLength)
	m.tileWidth = int(ifd.TileWidth)
	m.tileLength = int(ifd.TileLength)
	m.tilesAcross = (m.imageWidth + m.tileWidth - 1) / m.tileWidth
	m.tilesDown = (m.imageLength + m.tileLength - 1) / m.tileLength
	tilesPerImage := m.tilesAcross * m.tilesDown
	if len(ifd.TileByteCounts) != tilesPerImage || len(ifd.TileOffsets) != tilesPerImage {
		return nil, errors.New("incorrect number of tile byte counts or offsets")
	}
	m.tileOffsets = ifd.TileOffsets
	m.tileByteCounts = ifd.TileByteCounts
	m.tileSampleCount = m.tileWidth * m.tileLength

	// A tiepoint at raster (0, 0) with unit pixel scale gives the interval
	// origin. Any other georeferencing is ignored.
	origin := []int{0, 0}
	if slices.Equal(ifd.ModelPixelScaleTag, []float64{1, 1, 0}) &&
		len(ifd.ModelTiepointTag) == 6 &&
		ifd.ModelTiepointTag[0] == 0 && ifd.ModelTiepointTag[1] == 0 && ifd.ModelTiepointTag[2] == 0 {
		x, y := ifd.ModelTiepointTag[3], ifd.ModelTiepointTag[4]
		if x == math.Trunc(x) && y == math.Trunc(y) {
			origin = []int{int(x), int(y)}
		}
	}
	if m.interval, err = NewInterval(origin, []int{
		origin[0] + m.imageWidth - 1,
		origin[1] + m.imageLength - 1,
	}); err != nil {
		return nil, err
	}

	m.tileCache, err = lru.NewWithEvict(max(m.tileCacheSize, 1), func(int, []float32) {
		tiffTileCacheEvictions.Inc()
	})
	if err != nil {
		return nil, err
	}

	ok = true
	return m, nil
}

// WithTIFFTileCacheSize sets the number of decoded tiles to cache.
func WithTIFFTileCacheSize(tileCacheSize int) TIFFOption {
	return func(m *TIFFImage) {
		m.tileCacheSize = tileCacheSize
	}
}

func (m *TIFFImage) Close() error {
	if m.zstdDecoder != nil {
		m.zstdDecoder.Close()
	}
	return m.file.Close()
}

// Interval returns the interval covered by m.
func (m *TIFFImage) Interval() Interval {
	return m.interval
}

// TileSize returns the width and length of m's tiles.
func (m *TIFFImage) TileSize() (int, int) {
	return m.tileWidth, m.tileLength
}

// Compression returns m's compression scheme.
func (m *TIFFImage) Compression() TIFFCompression {
	return m.compression
}

// Sample returns a single sample from m.
func (m *TIFFImage) Sample(ctx context.Context, coord Coord) (float32, error) {
	if err := m.interval.checkBounds(coord); err != nil {
		return 0, err
	}
	localCoord := m.localCoord(coord)
	tileSamples, err := m.getTileSamplesCached(ctx, m.tileIndex(localCoord))
	if err != nil {
		return 0, err
	}
	return m.tileSample(tileSamples, localCoord), nil
}

// Samples returns multiple samples from m. It is significantly faster than
// calling [TIFFImage.Sample] for each coordinate.
func (m *TIFFImage) Samples(ctx context.Context, coords []Coord) ([]float32, error) {
	localCoords := make([]Coord, len(coords))
	for i, coord := range coords {
		if err := m.interval.checkBounds(coord); err != nil {
			return nil, err
		}
		localCoords[i] = m.localCoord(coord)
	}

	// Group indexes by tile.
	indexesByTileIndex := make(map[int][]int)
	for index, localCoord := range localCoords {
		tileIndex := m.tileIndex(localCoord)
		indexesByTileIndex[tileIndex] = append(indexesByTileIndex[tileIndex], index)
	}

	// Populate samples one tile at a time.
	samples := make([]float32, len(coords))
	for tileIndex, indexes := range indexesByTileIndex {
		tileSamples, err := m.getTileSamplesCached(ctx, tileIndex)
		if err != nil {
			return nil, err
		}
		for _, index := range indexes {
			samples[index] = m.tileSample(tileSamples, localCoords[index])
		}
	}

	return samples, nil
}

// Load reads every tile of m into a new Blocked. Tiles are decoded
// concurrently, at most GOMAXPROCS at a time, and bypass m's tile cache.
func (m *TIFFImage) Load(ctx context.Context) (*Blocked[float32], error) {
	blocked, err := NewBlocked[float32](m.interval, min(m.tileWidth, m.tileLength), 0)
	if err != nil {
		return nil, err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for tileIndex := range m.tilesAcross * m.tilesDown {
		g.Go(func() error {
			tileSamples, err := m.getTileSamples(ctx, tileIndex)
			if err != nil {
				return err
			}
			x0 := m.tileWidth * (tileIndex % m.tilesAcross)
			y0 := m.tileLength * (tileIndex / m.tilesAcross)
			coord := make(Coord, 2)
			for y := y0; y < min(y0+m.tileLength, m.imageLength); y++ {
				for x := x0; x < min(x0+m.tileWidth, m.imageWidth); x++ {
					coord[0] = m.interval.min[0] + x
					coord[1] = m.interval.min[1] + y
					if err := blocked.Set(coord, m.tileSample(tileSamples, Coord{x, y})); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocked, nil
}

// getCompressedTileData returns the compressed data of the tile at tileIndex.
func (m *TIFFImage) getCompressedTileData(tileIndex int) ([]byte, error) {
	tileByteCount := m.tileByteCounts[tileIndex]
	tileOffset := m.tileOffsets[tileIndex]
	compressedData := make([]byte, tileByteCount)
	switch n, err := m.file.ReadAt(compressedData, int64(tileOffset)); {
	case n == int(tileByteCount):
		return compressedData, nil
	case err != nil:
		return nil, err
	default:
		return nil, errShortRead
	}
}

// decompressTileData decompresses the tile data in compressedData.
func (m *TIFFImage) decompressTileData(compressedData []byte) ([]byte, error) {
	tileByteCount := 4 * m.tileSampleCount
	switch m.compression {
	case TIFFCompressionLZW:
		tileData := make([]byte, tileByteCount)
		r := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
		defer r.Close()
		if _, err := io.ReadFull(r, tileData); err != nil {
			return nil, err
		}
		return tileData, nil
	case TIFFCompressionZSTD:
		tileData, err := m.zstdDecoder.DecodeAll(compressedData, make([]byte, 0, tileByteCount))
		if err != nil {
			return nil, err
		}
		if len(tileData) < tileByteCount {
			return nil, errShortRead
		}
		return tileData, nil
	default:
		if len(compressedData) < tileByteCount {
			return nil, errShortRead
		}
		return compressedData, nil
	}
}

// decodeTileData decodes tileData.
func (m *TIFFImage) decodeTileData(tileData []byte) []float32 {
	tileSamples := make([]float32, m.tileSampleCount)
	for i := range m.tileSampleCount {
		tileSamples[i] = math.Float32frombits(m.byteOrder.Uint32(tileData[i*4 : (i+1)*4]))
	}
	return tileSamples
}

// getTileSamples reads and decodes the tile at tileIndex.
func (m *TIFFImage) getTileSamples(ctx context.Context, tileIndex int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	compressedTileData, err := m.getCompressedTileData(tileIndex)
	if err != nil {
		return nil, err
	}
	tileData, err := m.decompressTileData(compressedTileData)
	if err != nil {
		return nil, err
	}
	return m.decodeTileData(tileData), nil
}

// getTileSamplesCached returns the tile at tileIndex, using the cache if
// possible.
func (m *TIFFImage) getTileSamplesCached(ctx context.Context, tileIndex int) ([]float32, error) {
	if tileSamples, ok := m.tileCache.Get(tileIndex); ok {
		tiffTileCacheHits.Inc()
		return tileSamples, nil
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if tileSamples, ok := m.tileCache.Get(tileIndex); ok {
		tiffTileCacheHits.Inc()
		return tileSamples, nil
	}

	tiffTileCacheMisses.Inc()

	tileSamples, err := m.getTileSamples(ctx, tileIndex)
	if err != nil {
		return nil, err
	}
	m.tileCache.Add(tileIndex, tileSamples)
	return tileSamples, nil
}

// localCoord returns the pixel coordinate of coord.
func (m *TIFFImage) localCoord(coord Coord) Coord {
	return Coord{
		coord[0] - m.interval.min[0],
		coord[1] - m.interval.min[1],
	}
}

// tileIndex returns the index of the tile containing localCoord.
func (m *TIFFImage) tileIndex(localCoord Coord) int {
	return localCoord[0]/m.tileWidth + m.tilesAcross*(localCoord[1]/m.tileLength)
}

// tileSample returns the sample from tileSamples at localCoord.
func (m *TIFFImage) tileSample(tileSamples []float32, localCoord Coord) float32 {
	return tileSamples[localCoord[0]%m.tileWidth+(localCoord[1]%m.tileLength)*m.tileWidth]
}
