package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"maskan/internal/logger"
	"maskan/internal/model"
	"maskan/internal/repository"
)

const (
	dispatchTimeout = 20 * time.Second
	logBatchSize    = 10
	logFlushEvery   = time.Second
)

var deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notification_deliveries_total",
	Help: "Notification delivery attempts by channel and outcome.",
}, []string{"channel", "status"})

// Gateway routes messages to channel senders. Each channel sits behind its
// own circuit breaker and every attempt is appended to the delivery log.
type Gateway struct {
	senders  map[Channel]Sender
	breakers map[Channel]*gobreaker.CircuitBreaker
	logRepo  repository.NotificationLogRepository
	logger   *zap.Logger
	timeout  time.Duration

	logChannel chan model.NotificationLog
	done       chan struct{}
	closeOnce  sync.Once
}

var _ Dispatcher = (*Gateway)(nil)

// NewGateway creates a gateway. logRepo may be nil, in which case attempts are
// only written to the process log.
func NewGateway(logRepo repository.NotificationLogRepository, log *zap.Logger, senders ...Sender) *Gateway {
	g := &Gateway{
		senders:  make(map[Channel]Sender, len(senders)),
		breakers: make(map[Channel]*gobreaker.CircuitBreaker, len(senders)),
		logRepo:  logRepo,
		logger:   log,
		timeout:  dispatchTimeout,
		done:     make(chan struct{}),
	}

	for _, s := range senders {
		ch := s.Channel()
		g.senders[ch] = s
		g.breakers[ch] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(ch),
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Info("notification circuit breaker state",
					zap.String("channel", name), zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
	}

	if logRepo != nil {
		g.logChannel = make(chan model.NotificationLog, 100)
		go g.logWorker()
	} else {
		close(g.done)
	}

	return g
}

// Dispatch sends msg and reports the outcome. It never fails the caller.
func (g *Gateway) Dispatch(ctx context.Context, msg Message) Delivery {
	d := Delivery{ID: uuid.NewString(), Channel: msg.Channel}

	sender, ok := g.senders[msg.Channel]
	switch {
	case !ok || !sender.Configured():
		d.Status = model.NotificationStatusSkipped
		d.Error = ErrNotConfigured.Error()
	default:
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		_, err := g.breakers[msg.Channel].Execute(func() (interface{}, error) {
			return nil, sender.Send(ctx, msg)
		})
		cancel()

		if err != nil {
			d.Status = model.NotificationStatusFailed
			d.Error = deliveryError(err)
			g.logger.Warn("notification failed",
				zap.String("notification_id", d.ID),
				zap.String("channel", string(msg.Channel)),
				zap.String("kind", msg.Kind),
				zap.String("to", maskDestination(msg)),
				zap.Error(err),
			)
		} else {
			d.Status = model.NotificationStatusSent
		}
	}

	deliveriesTotal.WithLabelValues(string(d.Channel), string(d.Status)).Inc()
	g.record(msg, d)
	return d
}

// deliveryError is the client facing reason, without provider detail.
func deliveryError(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "channel temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "delivery timed out"
	default:
		return "delivery failed"
	}
}

func maskDestination(msg Message) string {
	if msg.Channel == ChannelEmail {
		return logger.MaskEmail(msg.To)
	}
	return logger.MaskPhone(msg.To)
}

// record queues a log entry; when the queue is full it writes synchronously.
func (g *Gateway) record(msg Message, d Delivery) {
	if g.logRepo == nil {
		return
	}

	id, _ := uuid.Parse(d.ID)
	entry := model.NotificationLog{
		ID:           id,
		UserID:       msg.UserID,
		Channel:      string(msg.Channel),
		Kind:         msg.Kind,
		Destination:  maskDestination(msg),
		Status:       d.Status,
		ErrorMessage: d.Error,
		CreatedAt:    time.Now().UTC(),
	}

	defer func() {
		// The queue is closed during shutdown; fall back to a direct write.
		if recover() != nil {
			g.writeBatch([]model.NotificationLog{entry})
		}
	}()

	select {
	case g.logChannel <- entry:
	default:
		g.writeBatch([]model.NotificationLog{entry})
	}
}

// logWorker batches log entries and flushes them by size or on a ticker.
func (g *Gateway) logWorker() {
	defer close(g.done)

	batch := make([]model.NotificationLog, 0, logBatchSize)
	ticker := time.NewTicker(logFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-g.logChannel:
			if !ok {
				g.writeBatch(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= logBatchSize {
				g.writeBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				g.writeBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (g *Gateway) writeBatch(batch []model.NotificationLog) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.logRepo.CreateBatch(ctx, batch); err != nil {
		g.logger.Warn("write notification log", zap.Int("entries", len(batch)), zap.Error(err))
	}
}

// History returns the caller's recent delivery attempts.
func (g *Gateway) History(ctx context.Context, userID string, limit int) ([]model.NotificationLog, error) {
	if g.logRepo == nil {
		return []model.NotificationLog{}, nil
	}
	return g.logRepo.ListByUser(ctx, userID, limit)
}

// Close flushes queued log entries and stops the worker.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() {
		if g.logChannel != nil {
			close(g.logChannel)
		}
	})
	<-g.done
}
