package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/terragen/internal/config"
	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/noise"
	"github.com/annel0/terragen/internal/storage"
	"github.com/annel0/terragen/internal/terrain"
	"github.com/gosuri/uiprogress"
)

// cliOptions: флаги командной строки поверх конфигурации
type cliOptions struct {
	configPath string
	random     bool
	pngPath    string
	rawPath    string
	save       bool
	dataPath   string
	progress   bool
	logLevel   string
}

func main() {
	var opts cliOptions
	fs := flag.NewFlagSet("terragen", flag.ExitOnError)
	fs.StringVar(&opts.configPath, "config", "", "путь к YAML конфигурации (по умолчанию $TERRAGEN_CONFIG)")
	width := fs.Int("width", 0, "ширина сетки")
	height := fs.Int("height", 0, "высота сетки")
	seed := fs.Int64("seed", 0, "сид (0: от текущего времени)")
	source := fs.String("source", "", "источник шума: perlin | simplex")
	iterations := fs.Int("iterations", -1, "итерации эрозии")
	workers := fs.Int("workers", 0, "горутины синтеза шума")
	fs.BoolVar(&opts.random, "random", false, "случайные параметры шума, как кнопка Generate в редакторе")
	fs.StringVar(&opts.pngPath, "png", "", "записать PNG превью")
	fs.StringVar(&opts.rawPath, "raw", "", "записать RAW16 (little-endian)")
	fs.BoolVar(&opts.save, "save", false, "сохранить ландшафт в BadgerDB")
	fs.StringVar(&opts.dataPath, "data", "", "каталог BadgerDB (по умолчанию storage.data_path)")
	fs.BoolVar(&opts.progress, "progress", true, "показывать прогресс эрозии")
	fs.StringVar(&opts.logLevel, "log", "warn", "уровень логов в консоли")
	fs.Parse(os.Args[1:])

	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	logging.InitConsoleLogger(level)
	defer logging.CloseDefaultLogger()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	applyFlags(fs, &cfg.Terrain, *width, *height, *seed, *source, *iterations, *workers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// applyFlags переносит явно заданные флаги в конфигурацию
func applyFlags(fs *flag.FlagSet, tc *config.TerrainConfig, width, height int, seed int64, source string, iterations, workers int) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			tc.Width = width
		case "height":
			tc.Height = height
		case "seed":
			tc.Seed = seed
		case "source":
			tc.Source = source
		case "iterations":
			tc.Erosion.Iterations = iterations
		case "workers":
			tc.Workers = workers
		}
	})
}

func run(ctx context.Context, cfg *config.Config, opts cliOptions) error {
	tc := cfg.Terrain
	if tc.Seed == 0 {
		tc.Seed = time.Now().UnixNano()
	}

	if opts.random {
		randomized, err := config.RandomizeNoise(rand.New(rand.NewSource(tc.Seed)), tc)
		if err != nil {
			return err
		}
		tc = randomized
	}

	if tc.Source == "" {
		tc.Source = noise.SourcePerlin
	}
	src, err := noise.NewSource(tc.Source, tc.Seed)
	if err != nil {
		return err
	}

	genOpts := []terrain.Option{
		terrain.WithContext(ctx),
		terrain.WithSeed(tc.Seed),
		terrain.WithSource(src),
		terrain.WithWorkers(tc.Workers),
	}

	var bar *uiprogress.Bar
	if opts.progress && tc.Erosion.Iterations > 0 {
		uiprogress.Start()
		bar = uiprogress.AddBar(tc.Erosion.Iterations).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return "эрозия"
		})
		genOpts = append(genOpts, terrain.WithProgress(func(done, total int) {
			bar.Set(done)
		}, tc.Erosion.Iterations/100))
	}

	start := time.Now()
	res, err := terrain.Generate(tc.Width, tc.Height, tc.Noise, tc.Erosion, genOpts...)
	if bar != nil {
		uiprogress.Stop()
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	stats := res.Grid.Stats()
	fmt.Printf("🏔️ Ландшафт %dx%d (seed=%d, source=%s) за %v\n", tc.Width, tc.Height, res.Seed, tc.Source, elapsed)
	fmt.Printf("   высоты: min=%.4f max=%.4f mean=%.4f\n", stats.Min, stats.Max, stats.Mean)
	fmt.Printf("   эрозия: итераций %d, переносов %d, локальных минимумов %d, ниже порога %d\n",
		res.Erosion.Iterations, res.Erosion.Transfers, res.Erosion.LocalMinima, res.Erosion.BelowThreshold)

	if opts.pngPath != "" {
		if err := writeFile(opts.pngPath, res.Grid.WritePNG); err != nil {
			return fmt.Errorf("PNG: %w", err)
		}
		fmt.Printf("🖼️  PNG: %s\n", opts.pngPath)
	}
	if opts.rawPath != "" {
		if err := writeFile(opts.rawPath, res.Grid.WriteRAW16); err != nil {
			return fmt.Errorf("RAW16: %w", err)
		}
		fmt.Printf("📦 RAW16: %s\n", opts.rawPath)
	}

	if opts.save {
		id, err := save(ctx, cfg, opts, tc, res, stats)
		if err != nil {
			return fmt.Errorf("сохранение: %w", err)
		}
		fmt.Printf("💾 Сохранено: %s\n", id)
	}
	return nil
}

func save(ctx context.Context, cfg *config.Config, opts cliOptions, tc config.TerrainConfig, res *terrain.Result, stats heightmap.Stats) (string, error) {
	dataPath := opts.dataPath
	if dataPath == "" {
		dataPath = cfg.Storage.GetDataPath()
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return "", err
	}

	repo, err := storage.NewTerrainStorage(dataPath)
	if err != nil {
		return "", err
	}
	defer repo.Close()

	rec := &storage.Record{
		Width:        tc.Width,
		Height:       tc.Height,
		Depth:        tc.Depth,
		Seed:         res.Seed,
		Source:       tc.Source,
		Noise:        tc.Noise,
		Erosion:      tc.Erosion,
		ErosionStats: res.Erosion,
		HeightStats:  stats,
	}
	if err := repo.Save(ctx, rec, res.Grid); err != nil {
		return "", err
	}
	return rec.ID, nil
}

func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
