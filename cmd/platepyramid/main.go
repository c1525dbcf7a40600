package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/pspoerri/platepyramid/internal/config"
	"github.com/pspoerri/platepyramid/internal/plate"
)

const (
	flagStore       = "store"
	flagStorePath   = "store-path"
	flagTileSize    = "tile-size"
	flagPixelType   = "pixel-type"
	flagConcurrency = "concurrency"
	flagCacheMB     = "cache-mb"
	flagVerbose     = "verbose"
	flagPreblur     = "preblur"
	flagRevision    = "revision"
	flagProj4       = "proj4"
	flagFormat      = "format"
	flagQuality     = "quality"
	flagLevel       = "level"
	flagMaxLevel    = "max-level"
	flagExport      = "export"
)

func envVars(name string) []string {
	return []string{"PLATE_" + strcase.ToScreamingSnake(name)}
}

func main() {
	defaults, err := config.New()
	if err != nil {
		log.Fatal(err)
	}

	app := cli.NewApp()
	app.Name = "platepyramid"
	app.Usage = "Build versioned Plate Carrée tile pyramids from georeferenced images"
	app.Version = versioninfo.Short()
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    flagStore,
			Usage:   "Tile store backend: sqlite or memory",
			Value:   defaults.Store,
			EnvVars: envVars(flagStore),
		},
		&cli.StringFlag{
			Name:    flagStorePath,
			Aliases: []string{"db"},
			Usage:   "SQLite database holding the pyramid",
			EnvVars: envVars(flagStorePath),
		},
		&cli.IntFlag{
			Name:    flagTileSize,
			Usage:   "Tile edge length in pixels (power of two)",
			Value:   defaults.TileSize,
			EnvVars: envVars(flagTileSize),
		},
		&cli.StringFlag{
			Name:    flagPixelType,
			Aliases: []string{"t"},
			Usage:   "Pixel type: graya8, graya16, grayaf32 or rgba8",
			Value:   defaults.PixelType,
			EnvVars: envVars(flagPixelType),
		},
		&cli.IntFlag{
			Name:    flagConcurrency,
			Aliases: []string{"j"},
			Usage:   "Parallel tile workers (0 = one per CPU)",
			EnvVars: envVars(flagConcurrency),
		},
		&cli.IntFlag{
			Name:    flagCacheMB,
			Usage:   "Tile read cache in MB (0 = derive from available memory)",
			EnvVars: envVars(flagCacheMB),
		},
		&cli.BoolFlag{
			Name:    flagVerbose,
			Aliases: []string{"v"},
			Usage:   "Debug logging and progress bars",
			EnvVars: envVars(flagVerbose),
		},
	}
	app.Before = func(c *cli.Context) error {
		if c.Bool(flagVerbose) {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	}

	revision := &cli.Int64Flag{
		Name:    flagRevision,
		Aliases: []string{"r"},
		Usage:   "Pyramid version to write or read (0 = latest, or latest+1 for ingest)",
		EnvVars: envVars(flagRevision),
	}
	preblur := &cli.BoolFlag{
		Name:    flagPreblur,
		Usage:   "Low-pass children before decimating",
		Value:   defaults.Preblur,
		EnvVars: envVars(flagPreblur),
	}
	format := &cli.StringFlag{
		Name:    flagFormat,
		Aliases: []string{"f"},
		Usage:   "Export tile format: png, jpeg, webp, tiff or terrarium",
		Value:   defaults.Format,
		EnvVars: envVars(flagFormat),
	}
	quality := &cli.IntFlag{
		Name:    flagQuality,
		Usage:   "JPEG/WebP quality 1-100",
		Value:   defaults.Quality,
		EnvVars: envVars(flagQuality),
	}

	app.Commands = []*cli.Command{
		{
			Name:      "ingest",
			Usage:     "Place images into the pyramid and regenerate the levels above them",
			ArgsUsage: "<image>...",
			Flags: []cli.Flag{
				revision, preblur, format, quality,
				&cli.StringFlag{
					Name:    flagProj4,
					Usage:   "Override the CRS of every input with this proj4 string",
					EnvVars: envVars(flagProj4),
				},
				&cli.StringFlag{
					Name:    flagExport,
					Usage:   "Also write the result to this .pmtiles archive",
					EnvVars: envVars(flagExport),
				},
			},
			Action: ingestAction,
		},
		{
			Name:  "mipmap",
			Usage: "Regenerate every level above a leaf level",
			Flags: []cli.Flag{
				revision, preblur,
				&cli.IntFlag{
					Name:     flagLevel,
					Aliases:  []string{"l"},
					Usage:    "Leaf level to build from",
					Required: true,
					EnvVars:  envVars(flagLevel),
				},
			},
			Action: mipmapAction,
		},
		{
			Name:      "export",
			Usage:     "Write the pyramid to a PMTiles archive",
			ArgsUsage: "<output.pmtiles>",
			Flags: []cli.Flag{
				revision, format, quality,
				&cli.IntFlag{
					Name:    flagMaxLevel,
					Usage:   "Deepest level to export",
					Value:   plate.MaxLevel,
					EnvVars: envVars(flagMaxLevel),
				},
			},
			Action: exportAction,
		},
		{
			Name:      "georef",
			Usage:     "Print the placement plan of images without writing tiles",
			ArgsUsage: "<image>...",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    flagProj4,
					Usage:   "Override the CRS of every input with this proj4 string",
					EnvVars: envVars(flagProj4),
				},
			},
			Action: georefAction,
		},
		{
			Name:      "info",
			Usage:     "Describe a PMTiles archive",
			ArgsUsage: "<archive.pmtiles>",
			Action:    infoAction,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
