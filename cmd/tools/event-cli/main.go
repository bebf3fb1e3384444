package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/annel0/terragen/internal/eventbus"
)

const (
	defaultNATSURL = "nats://127.0.0.1:4222"
	timeFormat     = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		natsURL    = flag.String("nats", envOr("TERRAGEN_NATS_URL", defaultNATSURL), "NATS server URL")
		prefix     = flag.String("prefix", "terragen", "Subject prefix")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		sources    = flag.String("sources", "", "Event sources filter (comma-separated)")
		limit      = flag.Int("limit", 0, "Stop after N events (0 = until Ctrl+C)")
	)
	flag.Parse()

	bus, err := eventbus.NewNATSBus(*natsURL, *prefix)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	count, err := tailEvents(ctx, bus, eventbus.Filter{
		Types:   parseStringList(*eventTypes),
		Sources: parseStringList(*sources),
	}, *limit)
	if err != nil {
		log.Fatalf("❌ Tail failed: %v", err)
	}
	fmt.Printf("\n📊 Total events: %d\n", count)
}

// tailEvents печатает события, пока не отменён контекст или не достигнут limit
func tailEvents(ctx context.Context, bus eventbus.EventBus, filter eventbus.Filter, limit int) (int, error) {
	fmt.Printf("🎬 Tailing terrain events (types: %v, limit: %d)\n", filter.Types, limit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan *eventbus.Envelope, 64)
	sub, err := bus.Subscribe(ctx, filter, func(ctx context.Context, ev *eventbus.Envelope) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	count := 0
	for {
		select {
		case <-ctx.Done():
			return count, nil
		case ev := <-events:
			printEvent(ev)
			count++
			if limit > 0 && count >= limit {
				return count, nil
			}
		}
	}
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s [%s] %s\n",
		ev.Timestamp.Format(timeFormat),
		ev.Source,
		ev.EventType,
		ev.ID)

	// Добавляем детали в зависимости от типа события
	switch ev.EventType {
	case eventbus.TerrainGenerated:
		var e eventbus.TerrainGeneratedEvent
		if err := ev.Decode(&e); err == nil {
			fmt.Printf("  Terrain: %s %dx%d seed=%d source=%s transfers=%d heights=[%.3f, %.3f] took=%v\n",
				e.ID, e.Width, e.Height, e.Seed, e.Source, e.Transfers, e.MinHeight, e.MaxHeight, e.Duration)
		}
	case eventbus.TerrainDeleted:
		var e eventbus.TerrainDeletedEvent
		if err := ev.Decode(&e); err == nil {
			fmt.Printf("  Terrain: %s\n", e.ID)
		}
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
