package eventbus

import (
	"context"

	"github.com/annel0/terragen/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог.
// Не блокирует; logger == nil пишет в глобальный логгер.
func StartLoggingListener(ctx context.Context, bus EventBus, logger *logging.Logger) (Subscription, error) {
	logf := logging.Info
	debugf := logging.Debug
	if logger != nil {
		logf, debugf = logger.Info, logger.Debug
	}

	sub, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) {
		switch ev.EventType {
		case TerrainGenerated:
			var e TerrainGeneratedEvent
			if err := ev.Decode(&e); err == nil {
				logf("📨 %s: %s %dx%d seed=%d за %v", ev.EventType, e.ID, e.Width, e.Height, e.Seed, e.Duration)
				return
			}
		case TerrainDeleted:
			var e TerrainDeletedEvent
			if err := ev.Decode(&e); err == nil {
				logf("📨 %s: %s", ev.EventType, e.ID)
				return
			}
		}
		debugf("[EventBus] %s %s src=%s size=%dB", ev.ID, ev.EventType, ev.Source, len(ev.Payload))
	})
	if err != nil {
		return nil, err
	}
	logf("🪵 LoggingListener: подписка на все события активирована")
	return sub, nil
}
