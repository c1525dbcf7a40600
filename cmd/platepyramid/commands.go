package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/pspoerri/platepyramid/internal/config"
	"github.com/pspoerri/platepyramid/internal/encode"
	"github.com/pspoerri/platepyramid/internal/pixel"
	"github.com/pspoerri/platepyramid/internal/plate"
	"github.com/pspoerri/platepyramid/internal/pmtiles"
	"github.com/pspoerri/platepyramid/internal/store"
)

// loadConfig binds the flags of c to a validated Config. Commands that never
// open the store validate against the memory backend.
func loadConfig(c *cli.Context, withStore bool) (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	cfg.Store = c.String(flagStore)
	cfg.StorePath = c.String(flagStorePath)
	cfg.TileSize = c.Int(flagTileSize)
	cfg.PixelType = c.String(flagPixelType)
	cfg.Concurrency = c.Int(flagConcurrency)
	cfg.CacheMB = c.Int(flagCacheMB)
	cfg.Verbose = c.Bool(flagVerbose)
	if !withStore {
		cfg.Store = "memory"
	}
	if c.IsSet(flagPreblur) {
		cfg.Preblur = c.Bool(flagPreblur)
	}
	if c.IsSet(flagFormat) {
		cfg.Format = c.String(flagFormat)
	}
	if c.IsSet(flagQuality) {
		cfg.Quality = c.Int(flagQuality)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the configured backend behind a read cache. An existing
// SQLite pyramid keeps its own tile size unless one was given explicitly.
func openStore(c *cli.Context, cfg *config.Config) (store.Store, error) {
	var s store.Store
	switch cfg.Store {
	case "memory":
		s = store.NewMemoryStore(cfg.TileSize)
	case "sqlite":
		size := cfg.TileSize
		if !c.IsSet(flagTileSize) {
			if _, err := os.Stat(cfg.StorePath); err == nil {
				size = 0
			}
		}
		db, err := store.OpenSQLite(cfg.StorePath, size)
		if err != nil {
			return nil, err
		}
		s = db
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
	return store.NewCachedStore(s, cfg.CacheBytes()), nil
}

// session bundles the config, store and pixel-typed pyramid of one command.
type session struct {
	cfg   *config.Config
	store store.Store
	pyr   pyramid
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c, true)
	if err != nil {
		return nil, err
	}
	kind, err := pixel.ParseKind(cfg.PixelType)
	if err != nil {
		return nil, err
	}
	s, err := openStore(c, cfg)
	if err != nil {
		return nil, err
	}
	cfg.TileSize = s.TileSize()
	pyr, err := newPyramid(kind, s, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	return &session{cfg: cfg, store: s, pyr: pyr}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		log.WithError(err).Warn("Closing tile store")
	}
}

// revision resolves the --revision flag. For writes, 0 means one past the
// newest stored version; for reads it means the newest.
func (s *session) revision(ctx context.Context, c *cli.Context, write bool) (store.Version, error) {
	if v := c.Int64(flagRevision); v > 0 {
		return store.Version(v), nil
	}
	versions, err := s.store.Versions(ctx)
	if err != nil {
		return 0, err
	}
	var latest store.Version
	if len(versions) > 0 {
		latest = slices.Max(versions)
	}
	if write {
		return latest + 1, nil
	}
	if latest == 0 {
		return 0, errors.New("pyramid is empty")
	}
	return latest, nil
}

func ingestAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.ShowSubcommandHelp(c)
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := c.Context
	version, err := s.revision(ctx, c, true)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"version": version, "images": c.NArg()}).Info("Ingesting")
	for _, path := range c.Args().Slice() {
		if err := s.pyr.ingest(ctx, path, c.String(flagProj4), version); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	if out := c.String(flagExport); out != "" {
		return s.export(ctx, out, version, c.Int(flagMaxLevel))
	}
	return nil
}

func mipmapAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	version, err := s.revision(c.Context, c, false)
	if err != nil {
		return err
	}
	return s.pyr.rebuild(c.Context, c.Int(flagLevel), version)
}

func exportAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	version, err := s.revision(c.Context, c, false)
	if err != nil {
		return err
	}
	return s.export(c.Context, c.Args().First(), version, c.Int(flagMaxLevel))
}

func (s *session) export(ctx context.Context, out string, version store.Version, maxLevel int) error {
	if !strings.HasSuffix(out, ".pmtiles") {
		return fmt.Errorf("output %q must have the .pmtiles extension", out)
	}
	if maxLevel <= 0 {
		maxLevel = plate.MaxLevel
	}
	enc, err := encode.NewEncoder(s.cfg.Format, s.cfg.Quality)
	if err != nil {
		return err
	}
	w, err := pmtiles.NewWriter(out, pmtiles.WriterOptions{
		TileType:    enc.PMTileType(),
		TileSize:    s.cfg.TileSize,
		Description: fmt.Sprintf("%s pyramid, version %d", s.cfg.PixelType, version),
	})
	if err != nil {
		return err
	}
	stats, err := s.pyr.export(ctx, version, maxLevel, enc, w)
	if err != nil {
		w.Abort()
		return err
	}
	if stats.Tiles == 0 {
		w.Abort()
		return fmt.Errorf("no tiles visible at version %d", version)
	}
	w.SetExtent(stats.Bounds, stats.MinLevel, stats.MaxLevel)
	if err := w.Finalize(); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"output": out,
		"tiles":  stats.Tiles,
		"mb":     fmt.Sprintf("%.1f", float64(stats.Bytes)/(1<<20)),
		"levels": fmt.Sprintf("%d-%d", stats.MinLevel, stats.MaxLevel),
	}).Info("Exported")
	return nil
}

func georefAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.ShowSubcommandHelp(c)
	}
	cfg, err := loadConfig(c, false)
	if err != nil {
		return err
	}
	kind, err := pixel.ParseKind(cfg.PixelType)
	if err != nil {
		return err
	}
	pyr, err := newPyramid(kind, nil, cfg)
	if err != nil {
		return err
	}
	for _, path := range c.Args().Slice() {
		if err := pyr.describe(os.Stdout, path, c.String(flagProj4)); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func infoAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	r, err := pmtiles.OpenReader(c.Args().First())
	if err != nil {
		return err
	}
	defer r.Close()

	h := r.Header()
	fmt.Printf("File: %s\n", c.Args().First())
	fmt.Printf("Tile type: %d, clustered: %v\n", h.TileType, h.Clustered)
	fmt.Printf("Zoom: %d-%d (center %d)\n", h.MinZoom, h.MaxZoom, h.CenterZoom)
	fmt.Printf("Bounds: lon [%f, %f], lat [%f, %f]\n",
		h.Bounds.Min[0], h.Bounds.Max[0], h.Bounds.Min[1], h.Bounds.Max[1])
	fmt.Printf("Tiles: %d addressed, %d entries, %d unique\n",
		h.NumAddressedTiles, h.NumTileEntries, h.NumTileContents)
	for z := int(h.MinZoom); z <= int(h.MaxZoom); z++ {
		fmt.Printf("  level %2d: %d tiles\n", z, len(r.TilesAtZoom(z)))
	}

	meta, err := r.Metadata()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, meta[k])
	}
	return nil
}
