package ndimg

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// writeTestTIFF writes c to a new file in a temporary directory and returns
// the directory.
func writeTestTIFF(t *testing.T, c Container[float32], options ...TIFFWriteOption) string {
	t.Helper()
	dir := t.TempDir()
	buf := &bytes.Buffer{}
	assert.NoError(t, WriteTIFF(buf, c, options...))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "test.tif"), buf.Bytes(), 0o666))
	return dir
}

func newTestTIFFContainer(t *testing.T) *Blocked[float32] {
	t.Helper()
	interval, err := NewInterval([]int{-3, 5}, []int{36, 24})
	assert.NoError(t, err)
	blocked, err := NewBlocked[float32](interval, 16, 0)
	assert.NoError(t, err)
	assert.NoError(t, blocked.Transform(t.Context(), func(coord Coord, _ float32) float32 {
		return float32(coord[0]) + 0.5*float32(coord[1])
	}))
	return blocked
}

func TestTIFFRoundTrip(t *testing.T) {
	blocked := newTestTIFFContainer(t)
	for _, tc := range []struct {
		name        string
		options     []TIFFWriteOption
		tileEdge    int
		compression TIFFCompression
	}{
		{
			name:        "default",
			tileEdge:    16,
			compression: TIFFCompressionNone,
		},
		{
			name:        "zstd",
			options:     []TIFFWriteOption{WithTIFFCompression(TIFFCompressionZSTD)},
			tileEdge:    16,
			compression: TIFFCompressionZSTD,
		},
		{
			name:        "tile_edge_32",
			options:     []TIFFWriteOption{WithTIFFTileEdge(32)},
			tileEdge:    32,
			compression: TIFFCompressionNone,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeTestTIFF(t, blocked, tc.options...)
			tiffImage, err := OpenTIFF(os.DirFS(dir), "test.tif")
			assert.NoError(t, err)
			defer func() {
				assert.NoError(t, tiffImage.Close())
			}()

			assert.True(t, blocked.Interval().Equal(tiffImage.Interval()))
			tileWidth, tileLength := tiffImage.TileSize()
			assert.Equal(t, tc.tileEdge, tileWidth)
			assert.Equal(t, tc.tileEdge, tileLength)
			assert.Equal(t, tc.compression, tiffImage.Compression())

			var coords []Coord
			var expected []float32
			for coord, value := range All[float32](blocked) {
				sample, err := tiffImage.Sample(t.Context(), coord)
				assert.NoError(t, err)
				assert.Equal(t, value, sample)
				coords = append(coords, coord)
				expected = append(expected, value)
			}
			samples, err := tiffImage.Samples(t.Context(), coords)
			assert.NoError(t, err)
			assert.Equal(t, expected, samples)

			loaded, err := tiffImage.Load(t.Context())
			assert.NoError(t, err)
			assert.Equal(t, tc.tileEdge, loaded.BlockEdge())
			for coord := range Coords(blocked.Interval()) {
				expected, err := blocked.Get(coord)
				assert.NoError(t, err)
				actual, err := loaded.Get(coord)
				assert.NoError(t, err)
				assert.Equal(t, expected, actual)
			}
		})
	}
}

func TestTIFFFlat(t *testing.T) {
	flat, err := NewFlat[float32](MustNewIntervalFromExtents(3, 2), 0)
	assert.NoError(t, err)
	copy(flat.Data(), []float32{1, 2, 3, 4, 5, 6})
	dir := writeTestTIFF(t, flat)
	tiffImage, err := OpenTIFF(os.DirFS(dir), "test.tif")
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, tiffImage.Close())
	}()
	tileWidth, _ := tiffImage.TileSize()
	assert.Equal(t, 16, tileWidth)
	samples, err := tiffImage.Samples(t.Context(), []Coord{{2, 1}, {0, 0}, {1, 1}})
	assert.NoError(t, err)
	assert.Equal(t, []float32{6, 1, 5}, samples)
	_, err = tiffImage.Sample(t.Context(), Coord{3, 0})
	assert.True(t, errors.Is(err, ErrOutOfBounds))
}

func TestTIFFTileCache(t *testing.T) {
	dir := writeTestTIFF(t, newTestTIFFContainer(t))
	tiffImage, err := OpenTIFF(os.DirFS(dir), "test.tif", WithTIFFTileCacheSize(1))
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, tiffImage.Close())
	}()

	hits := testutil.ToFloat64(tiffTileCacheHits)
	misses := testutil.ToFloat64(tiffTileCacheMisses)
	evictions := testutil.ToFloat64(tiffTileCacheEvictions)

	_, err = tiffImage.Sample(t.Context(), Coord{-3, 5})
	assert.NoError(t, err)
	_, err = tiffImage.Sample(t.Context(), Coord{-2, 5})
	assert.NoError(t, err)
	assert.Equal(t, misses+1, testutil.ToFloat64(tiffTileCacheMisses))
	assert.Equal(t, hits+1, testutil.ToFloat64(tiffTileCacheHits))

	_, err = tiffImage.Sample(t.Context(), Coord{36, 24})
	assert.NoError(t, err)
	assert.Equal(t, misses+2, testutil.ToFloat64(tiffTileCacheMisses))
	assert.Equal(t, evictions+1, testutil.ToFloat64(tiffTileCacheEvictions))
}

func TestWriteTIFFErrors(t *testing.T) {
	volume, err := NewFlat[float32](MustNewIntervalFromExtents(2, 2, 2), 0)
	assert.NoError(t, err)
	assert.True(t, errors.Is(WriteTIFF(&bytes.Buffer{}, volume), errors.ErrUnsupported))

	flat, err := NewFlat[float32](MustNewIntervalFromExtents(2, 2), 0)
	assert.NoError(t, err)
	assert.True(t, errors.Is(WriteTIFF(&bytes.Buffer{}, flat, WithTIFFCompression(TIFFCompressionLZW)), errors.ErrUnsupported))
	for _, tileEdge := range []int{-16, 0, 8, 24, 65536} {
		assert.True(t, errors.Is(WriteTIFF(&bytes.Buffer{}, flat, WithTIFFTileEdge(tileEdge)), ErrInvalidConfig), "%d", tileEdge)
	}
}

func TestWriteTIFFDefaultTileEdge(t *testing.T) {
	for _, tc := range []struct {
		name             string
		extents          []int
		blockEdge        int
		expectedTileEdge int
	}{
		{
			name:             "flat_small",
			extents:          []int{5, 3},
			expectedTileEdge: 16,
		},
		{
			name:             "flat_large",
			extents:          []int{300, 20},
			expectedTileEdge: 256,
		},
		{
			name:             "blocked_rounded_up",
			extents:          []int{100, 100},
			blockEdge:        20,
			expectedTileEdge: 32,
		},
		{
			name:             "blocked_huge_block_edge",
			extents:          []int{5, 3},
			blockEdge:        4000,
			expectedTileEdge: 16,
		},
		{
			name:             "blocked_block_edge_exceeds_tiff_limit",
			extents:          []int{40, 3},
			blockEdge:        70000,
			expectedTileEdge: 48,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			interval := MustNewIntervalFromExtents(tc.extents...)
			var c Container[float32]
			var err error
			if tc.blockEdge > 0 {
				c, err = NewBlocked[float32](interval, tc.blockEdge, 1)
			} else {
				c, err = NewFlat[float32](interval, 1)
			}
			assert.NoError(t, err)
			buf := &bytes.Buffer{}
			assert.NoError(t, WriteTIFF(buf, c))
			tilesAcross := (tc.extents[0] + tc.expectedTileEdge - 1) / tc.expectedTileEdge
			tilesDown := (tc.extents[1] + tc.expectedTileEdge - 1) / tc.expectedTileEdge
			assert.True(t, buf.Len() < 1024+4*tilesAcross*tilesDown*tc.expectedTileEdge*tc.expectedTileEdge)

			dir := t.TempDir()
			assert.NoError(t, os.WriteFile(filepath.Join(dir, "test.tif"), buf.Bytes(), 0o666))
			tiffImage, err := OpenTIFF(os.DirFS(dir), "test.tif")
			assert.NoError(t, err)
			defer func() {
				assert.NoError(t, tiffImage.Close())
			}()
			tileWidth, tileLength := tiffImage.TileSize()
			assert.Equal(t, tc.expectedTileEdge, tileWidth)
			assert.Equal(t, tc.expectedTileEdge, tileLength)
		})
	}
}

func TestOpenTIFFTestdata(t *testing.T) {
	for _, tc := range []struct {
		filename    string
		compression TIFFCompression
	}{
		{
			filename:    "bigendian.tif",
			compression: TIFFCompressionNone,
		},
		{
			filename:    "lzw.tif",
			compression: TIFFCompressionLZW,
		},
	} {
		t.Run(tc.filename, func(t *testing.T) {
			tiffImage, err := OpenTIFF(os.DirFS("testdata"), tc.filename)
			assert.NoError(t, err)
			defer func() {
				assert.NoError(t, tiffImage.Close())
			}()

			assert.Equal(t, "[-3..16, 5..22]", tiffImage.Interval().String())
			tileWidth, tileLength := tiffImage.TileSize()
			assert.Equal(t, 16, tileWidth)
			assert.Equal(t, 16, tileLength)
			assert.Equal(t, tc.compression, tiffImage.Compression())

			sample, err := tiffImage.Sample(t.Context(), Coord{-3, 5})
			assert.NoError(t, err)
			assert.Equal(t, float32(497), sample)
			samples, err := tiffImage.Samples(t.Context(), []Coord{{16, 22}, {13, 20}, {12, 21}})
			assert.NoError(t, err)
			assert.Equal(t, []float32{2216, 2013, 2112}, samples)

			loaded, err := tiffImage.Load(t.Context())
			assert.NoError(t, err)
			for coord, value := range All[float32](loaded) {
				assert.Equal(t, float32(coord[0]+100*coord[1]), value, "%v", coord)
			}
		})
	}
}

func TestOpenTIFFErrors(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "not.tif"), []byte("not a TIFF file"), 0o666))
	_, err := OpenTIFF(os.DirFS(dir), "not.tif")
	assert.Error(t, err)
	_, err = OpenTIFF(os.DirFS(dir), "missing.tif")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
