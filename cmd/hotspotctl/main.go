// Command hotspotctl runs the offline jobs: schema migration, snapshot
// materialization, dataset export, model training, provider syncs, event
// import and an offline heatmap over a JSON events file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"hotspot_service/internal/config"
	"hotspot_service/internal/core"
	"hotspot_service/internal/domain/model"
	"hotspot_service/internal/domain/repository"
	"hotspot_service/internal/infrastructure/modelstore"
	"hotspot_service/internal/infrastructure/openmeteo"
	"hotspot_service/internal/jobs"
	"hotspot_service/internal/logging"
)

type env struct {
	cfg config.Config
	log zerolog.Logger
}

type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"migrate":           {"create tables and indexes", runMigrate},
	"materialize":       {"score events around one date/hour into snapshots", runMaterialize},
	"materialize-range": {"materialize every listed hour of a date range", runMaterializeRange},
	"export":            {"write snapshots of a date range as a training CSV", runExport},
	"train":             {"fit a linear model on a training CSV", runTrain},
	"sync-weather":      {"fetch hourly Open-Meteo weather into the database", runSyncWeather},
	"sync-venues":       {"import OpenStreetMap venues around a point", runSyncVenues},
	"import-events":     {"load events from a CSV file", runImportEvents},
	"heatmap":           {"compute a heatmap from a JSON events file, no database", runHeatmap},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger := logging.Init(cfg.LogFormat, logging.ParseLevel(cfg.LogLevel)).
		With().
		Str("command", os.Args[1]).
		Str("run_id", uuid.NewString()).
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	if err := cmd.run(ctx, &env{cfg: cfg, log: logger}, os.Args[2:]); err != nil {
		logger.Fatal().Err(err).Msg("Command failed")
	}
	logger.Info().Dur("elapsed", time.Since(started)).Msg("Command finished")
}

func usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(os.Stderr, "usage: hotspotctl <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-18s %s\n", name, commands[name].usage)
	}
}

func (e *env) openDB(ctx context.Context) (*sqlx.DB, error) {
	db, err := repository.Connect(ctx, e.cfg.DatabaseDriver, e.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := repository.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (e *env) centerFlags(fs *flag.FlagSet) (*float64, *float64) {
	lat := fs.Float64("lat", e.cfg.Center.Lat, "reference latitude")
	lon := fs.Float64("lon", e.cfg.Center.Lon, "reference longitude")
	return lat, lon
}

func parseDay(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("-%s is required", name)
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("-%s: expected YYYY-MM-DD, got %q", name, v)
	}
	return t, nil
}

func runMigrate(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	fs.Parse(args)

	db, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	e.log.Info().Str("driver", e.cfg.DatabaseDriver).Msg("Schema ready")
	return nil
}

func (e *env) materializer(db *sqlx.DB) *jobs.Materializer {
	return jobs.NewMaterializer(
		core.NewScorer(e.cfg.Scoring),
		e.cfg.Weather,
		repository.NewEventsRepository(db),
		repository.NewWeatherRepository(db),
		repository.NewSnapshotsRepository(db),
		e.log,
	)
}

func runMaterialize(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("materialize", flag.ExitOnError)
	date := fs.String("date", "", "day, YYYY-MM-DD")
	hour := fs.Int("hour", -1, "hour 0-23")
	radius := fs.Float64("radius-km", jobs.DefaultRadiusKM, "keep events within this distance of the centre")
	lat, lon := e.centerFlags(fs)
	fs.Parse(args)

	day, err := parseDay("date", *date)
	if err != nil {
		return err
	}
	db, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = e.materializer(db).Run(ctx, day, *hour, jobs.MaterializeOptions{
		Center:   model.Point{Lat: *lat, Lon: *lon},
		RadiusKM: *radius,
	})
	return err
}

func runMaterializeRange(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("materialize-range", flag.ExitOnError)
	start := fs.String("start", "", "first day, YYYY-MM-DD")
	end := fs.String("end", "", "last day, YYYY-MM-DD")
	hoursSpec := fs.String("hours", "0-23", "hours to process, e.g. 18-23 or 18,19,20")
	radius := fs.Float64("radius-km", jobs.DefaultRadiusKM, "keep events within this distance of the centre")
	lat, lon := e.centerFlags(fs)
	fs.Parse(args)

	from, err := parseDay("start", *start)
	if err != nil {
		return err
	}
	to, err := parseDay("end", *end)
	if err != nil {
		return err
	}
	hours, err := jobs.ParseHours(*hoursSpec)
	if err != nil {
		return err
	}
	db, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = e.materializer(db).RunRange(ctx, from, to, hours, jobs.MaterializeOptions{
		Center:   model.Point{Lat: *lat, Lon: *lon},
		RadiusKM: *radius,
	})
	return err
}

func runExport(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "output CSV path")
	start := fs.String("start", "", "first day, YYYY-MM-DD")
	end := fs.String("end", "", "last day, YYYY-MM-DD")
	limit := fs.Int("limit", 0, "export at most this many rows (0 = all)")
	lat, lon := e.centerFlags(fs)
	fs.Parse(args)

	if *out == "" {
		return fmt.Errorf("-out is required")
	}
	first, err := parseDay("start", *start)
	if err != nil {
		return err
	}
	last, err := parseDay("end", *end)
	if err != nil {
		return err
	}
	from, to := jobs.DayRange(first, last)

	db, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", *out, err)
	}
	defer f.Close()

	_, err = jobs.NewExporter(repository.NewSnapshotsRepository(db), e.log).Export(ctx, f, jobs.ExportOptions{
		From:   from,
		To:     to,
		Center: model.Point{Lat: *lat, Lon: *lon},
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	return f.Close()
}

func runTrain(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	dataset := fs.String("dataset", "", "training CSV produced by export")
	target := fs.String("target", model.LeadTimeLabel, "label column to fit")
	out := fs.String("out", "", "artifact path (default <MODEL_DIR>/<model name>.json)")
	defaults := core.DefaultTrainOptions()
	epochs := fs.Int("epochs", defaults.Epochs, "gradient descent epochs")
	lr := fs.Float64("lr", defaults.LearningRate, "learning rate")
	fs.Parse(args)

	if *dataset == "" {
		return fmt.Errorf("-dataset is required")
	}
	path := *out
	if path == "" {
		path = modelstore.New(e.cfg.ModelDir, e.log, nil).Path(jobs.ModelNameFor(*target))
	}
	_, err := jobs.TrainModel(*dataset, *target, path, core.TrainOptions{Epochs: *epochs, LearningRate: *lr}, e.log)
	return err
}

func runSyncWeather(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("sync-weather", flag.ExitOnError)
	start := fs.String("start", "", "first day, YYYY-MM-DD")
	end := fs.String("end", "", "last day, YYYY-MM-DD")
	pointsSpec := fs.String("points", "", "lat,lon pairs separated by ';' (default: the configured centre)")
	concurrency := fs.Int("concurrency", 4, "parallel requests")
	fs.Parse(args)

	first, err := parseDay("start", *start)
	if err != nil {
		return err
	}
	last, err := parseDay("end", *end)
	if err != nil {
		return err
	}
	from, to := jobs.DayRange(first, last)
	points, err := parsePoints(*pointsSpec, e.cfg.Center)
	if err != nil {
		return err
	}

	db, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	sync := jobs.NewWeatherSync(openmeteo.NewClient(e.cfg.OpenMeteoURL), repository.NewWeatherRepository(db), *concurrency, e.log)
	_, err = sync.Run(ctx, points, from, to)
	return err
}

func parsePoints(spec string, fallback model.Point) ([]model.Point, error) {
	if strings.TrimSpace(spec) == "" {
		return []model.Point{fallback}, nil
	}
	var points []model.Point
	for _, pair := range strings.Split(spec, ";") {
		a, b, ok := strings.Cut(strings.TrimSpace(pair), ",")
		if !ok {
			return nil, fmt.Errorf("invalid point %q, expected lat,lon", pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in %q: %w", pair, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in %q: %w", pair, err)
		}
		points = append(points, model.Point{Lat: lat, Lon: lon})
	}
	return points, nil
}

func runSyncVenues(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("sync-venues", flag.ExitOnError)
	radius := fs.Float64("radius-km", jobs.DefaultRadiusKM, "search radius around the centre")
	lat, lon := e.centerFlags(fs)
	fs.Parse(args)

	db, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	overpassRepo := repository.NewOverpassRepository(e.cfg.OverpassURL, e.cfg.OverpassTimeout)
	sync := jobs.NewVenueSync(overpassRepo, repository.NewVenuesRepository(db), e.log)
	_, err = sync.Run(ctx, model.Point{Lat: *lat, Lon: *lon}, *radius)
	return err
}

func runImportEvents(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("import-events", flag.ExitOnError)
	file := fs.String("file", "", "events CSV")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("-file is required")
	}
	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", *file, err)
	}
	defer f.Close()

	db, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	importer := jobs.NewEventImporter(repository.NewEventsRepository(db), repository.NewVenuesRepository(db), e.log)
	_, err = importer.Import(ctx, f)
	return err
}

// fileEvents serves a fixed event list to the hotspot service.
type fileEvents []model.Event

func (f fileEvents) ListEventsForDay(ctx context.Context, day time.Time) ([]model.Event, error) {
	return f, nil
}

func (f fileEvents) ListEventsFromHour(ctx context.Context, day time.Time, fromHour int) ([]model.Event, error) {
	return f, nil
}

func runHeatmap(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("heatmap", flag.ExitOnError)
	eventsFile := fs.String("events", "", "JSON array of events")
	date := fs.String("date", "", "day, YYYY-MM-DD")
	hour := fs.Int("hour", -1, "hour 0-23")
	modeFlag := fs.String("mode", string(model.ModeHeuristic), "heuristic or ml")
	categories := fs.String("categories", "", "comma separated category filter")
	maxPoints := fs.Int("max-points", e.cfg.Scoring.MaxPoints, "maximum hotspots")
	lat, lon := e.centerFlags(fs)
	fs.Parse(args)

	if *eventsFile == "" {
		return fmt.Errorf("-events is required")
	}
	day, err := parseDay("date", *date)
	if err != nil {
		return err
	}
	mode, err := model.ParseMode(*modeFlag)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(*eventsFile)
	if err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("failed to parse events: %w", err)
	}

	var cats []string
	for _, c := range strings.Split(*categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}

	service := core.NewHotspotService(
		core.NewScorer(e.cfg.Scoring),
		e.cfg.Weather,
		fileEvents(events),
		nil,
		modelstore.New(e.cfg.ModelDir, e.log, nil),
		e.cfg.Center,
		e.log,
	)
	res, err := service.Heatmap(ctx, model.HeatmapRequest{
		Date:       day,
		Hour:       *hour,
		Lat:        lat,
		Lon:        lon,
		Mode:       mode,
		Categories: cats,
		MaxPoints:  maxPoints,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
