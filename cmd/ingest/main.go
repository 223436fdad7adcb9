// Command ingest parses a source raster (GRIB2, NetCDF, or GeoTIFF --
// anything GDAL reads) into the grid writer's WriteRequest shape, writes
// it through the pyramid generator (C6), and registers the result in the
// catalog (C7).
//
// Grounded on cmd/import-elevation/main.go's godal.Open + GeoTransform +
// Band.Read pattern, generalized from elevation point lookups to a
// full-band array read.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/airbusgeo/godal"

	"github.com/jcom-dev/weathergrid/internal/catalog"
	"github.com/jcom-dev/weathergrid/internal/config"
	"github.com/jcom-dev/weathergrid/internal/grid"
	"github.com/jcom-dev/weathergrid/internal/gridwriter"
	"github.com/jcom-dev/weathergrid/internal/projection"
	"github.com/jcom-dev/weathergrid/internal/store"
)

func main() {
	var (
		inputPath        = flag.String("input", "", "path to the source raster (GRIB2/NetCDF/GeoTIFF)")
		model            = flag.String("model", "", "model name, e.g. gfs")
		parameter        = flag.String("parameter", "", "parameter name, e.g. TMP")
		level            = flag.String("level", "", "vertical level, e.g. 2m")
		units            = flag.String("units", "", "parameter units")
		nativeProjection = flag.String("native-projection", "", "non-geographic native grid projection, if any")
		referenceTime    = flag.String("reference-time", "", "RFC3339 model run time")
		forecastHour     = flag.Int("forecast-hour", 0, "forecast lead hour")
		arrayPath        = flag.String("array-path", "", "storage path to write under, e.g. gfs/TMP/2m/20260730T00/f006")
	)
	flag.Parse()

	if *inputPath == "" || *model == "" || *parameter == "" || *arrayPath == "" {
		log.Fatal("ingest: -input, -model, -parameter, and -array-path are required")
	}

	refTime := time.Now().UTC()
	if *referenceTime != "" {
		t, err := time.Parse(time.RFC3339, *referenceTime)
		if err != nil {
			log.Fatalf("ingest: invalid -reference-time: %v", err)
		}
		refTime = t
	}

	cfg := config.Load()
	ctx := context.Background()

	cat, err := catalog.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("ingest: connect catalog: %v", err)
	}
	defer cat.Close()

	var st store.Store
	switch cfg.StoreKind {
	case "s3":
		st, err = store.NewS3Store(ctx, store.S3Config{Bucket: cfg.StorePath})
		if err != nil {
			log.Fatalf("ingest: build s3 store: %v", err)
		}
	default:
		st = store.NewLocalFS(cfg.StorePath)
	}

	data, width, height, bbox, err := readRaster(*inputPath)
	if err != nil {
		log.Fatalf("ingest: read raster: %v", err)
	}

	req := gridwriter.WriteRequest{
		Data: data, Width: width, Height: height, BBox: bbox,
		ChunkShape: [2]int{256, 256},
		Downsample: grid.DownsampleMean,
		Pyramid:    gridwriter.DefaultPyramidConfig(),
		Attributes: grid.Attributes{
			Model: *model, Parameter: *parameter, Level: *level, Units: *units,
			ReferenceTime: refTime, ForecastHour: *forecastHour,
			NativeProjection: *nativeProjection,
		},
	}

	if err := gridwriter.Write(ctx, st, *arrayPath, req); err != nil {
		log.Fatalf("ingest: write array: %v", err)
	}

	id, err := cat.RegisterDataset(ctx, catalog.RegisterDatasetParams{
		Model: *model, Parameter: *parameter, Level: *level,
		ReferenceTime: refTime, ForecastHour: *forecastHour,
		BBoxMinX: bbox.MinLon, BBoxMinY: bbox.MinLat, BBoxMaxX: bbox.MaxLon, BBoxMaxY: bbox.MaxLat,
		StoragePath: *arrayPath,
	})
	if err != nil {
		log.Fatalf("ingest: register dataset: %v", err)
	}

	log.Printf("ingest: wrote %s (%dx%d) as dataset %s", *arrayPath, width, height, id)
}

// readRaster opens path with GDAL, reads its first band as float32, and
// derives a geographic bbox from the dataset's geotransform.
func readRaster(path string) (data []float32, width, height int, bbox projection.BBox, err error) {
	godal.RegisterAll()

	ds, err := godal.Open(path)
	if err != nil {
		return nil, 0, 0, projection.BBox{}, err
	}
	defer ds.Close()

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, 0, 0, projection.BBox{}, err
	}

	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, 0, 0, projection.BBox{}, errNoBands
	}

	structure := ds.Structure()
	width, height = structure.SizeX, structure.SizeY

	data = make([]float32, width*height)
	if err := bands[0].Read(0, 0, data, width, height); err != nil {
		return nil, 0, 0, projection.BBox{}, err
	}

	// gt[0]/gt[3] are the origin, gt[1]/gt[5] the pixel size (gt[5] is
	// negative since rasters are stored top-to-bottom).
	minLon := gt[0]
	maxLon := gt[0] + gt[1]*float64(width)
	maxLat := gt[3]
	minLat := gt[3] + gt[5]*float64(height)

	bbox = projection.BBox{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}
	return data, width, height, bbox, nil
}

var errNoBands = errors.New("ingest: raster has no bands")
