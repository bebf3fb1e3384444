package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/annel0/terragen/internal/logging"
	nats "github.com/nats-io/nats.go"
)

// NATSBus реализует EventBus поверх NATS Core.
// Событие публикуется в subject <prefix>.<event type>.
type NATSBus struct {
	nc        *nats.Conn
	prefix    string
	published uint64
	consumed  uint64
	dropped   uint64
}

// NewNATSBus подключается к NATS. url: nats://127.0.0.1:4222, prefix: "terragen".
func NewNATSBus(url, prefix string) (*NATSBus, error) {
	if prefix == "" {
		prefix = "terragen"
	}

	opts := []nats.Option{
		nats.Name("terragen"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	logging.Info("NATS event bus initialized: %s (prefix: %s)", url, prefix)
	return &NATSBus{nc: nc, prefix: prefix}, nil
}

// Subject возвращает subject для типа события.
func (nb *NATSBus) Subject(eventType string) string {
	return nb.prefix + "." + eventType
}

// Publish сериализует Envelope в JSON и публикует в subject <prefix>.<type>.
func (nb *NATSBus) Publish(ctx context.Context, ev *Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		atomic.AddUint64(&nb.dropped, 1)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := nb.nc.Publish(nb.Subject(ev.EventType), data); err != nil {
		atomic.AddUint64(&nb.dropped, 1)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	atomic.AddUint64(&nb.published, 1)
	return nil
}

// Subscribe подписывается на события. Один тип в фильтре сужает subject,
// остальные условия проверяются после декодирования.
func (nb *NATSBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subj := nb.prefix + ".>"
	if len(f.Types) == 1 {
		subj = nb.Subject(f.Types[0])
	}

	natSub, err := nb.nc.Subscribe(subj, func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			atomic.AddUint64(&nb.dropped, 1)
			logging.Warn("Некорректное событие на %s: %v", msg.Subject, err)
			return
		}
		if ev.EventType == "" {
			ev.EventType = strings.TrimPrefix(msg.Subject, nb.prefix+".")
		}
		if !matchFilter(&ev, f) {
			return
		}
		h(ctx, &ev)
		atomic.AddUint64(&nb.consumed, 1)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	sub := &natsSub{natSub}
	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()
	return sub, nil
}

// Flush дожидается отправки буфера клиента на сервер.
func (nb *NATSBus) Flush() error {
	return nb.nc.Flush()
}

// Metrics возвращает текущие метрики.
func (nb *NATSBus) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&nb.published),
		Consumed:  atomic.LoadUint64(&nb.consumed),
		Dropped:   atomic.LoadUint64(&nb.dropped),
	}
}

// Close сбрасывает буфер и закрывает соединение.
func (nb *NATSBus) Close() error {
	if err := nb.nc.Drain(); err != nil {
		nb.nc.Close()
		return err
	}
	return nil
}

// natsSub обёртка вокруг *nats.Subscription чтобы удовлетворить наш интерфейс.
type natsSub struct {
	s *nats.Subscription
}

func (n *natsSub) Unsubscribe() {
	_ = n.s.Unsubscribe()
}
