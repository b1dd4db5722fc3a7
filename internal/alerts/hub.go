package alerts

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
	"github.com/Sourav19o7/ppe-detector-sub000/pkg/logger"
)

// subscriberBuffer bounds the per-connection queue; a subscriber that cannot
// keep up drops alerts rather than blocking the prediction pipeline.
const subscriberBuffer = 16

// Hub fans emitted risk alerts out to connected websocket subscribers.
// It satisfies the prediction service's alert sink.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan *models.AlertRecord]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[chan *models.AlertRecord]struct{}),
	}
}

// Notify delivers an alert to every subscriber without blocking the caller.
func (h *Hub) Notify(alert *models.AlertRecord) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- alert:
		default:
			logger.Warn("Dropping alert for slow websocket subscriber",
				zap.String("alert_id", alert.ID),
			)
		}
	}
}

func (h *Hub) subscribe() chan *models.AlertRecord {
	ch := make(chan *models.AlertRecord, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan *models.AlertRecord) {
	h.mu.Lock()
	delete(h.subscribers, ch)
	h.mu.Unlock()
}

// SubscriberCount reports the number of open alert streams.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// HandleConnection streams alerts to one websocket client until it
// disconnects. An optional mine_id filter limits what the client receives.
func (h *Hub) HandleConnection(c *websocket.Conn) {
	mineFilter := c.Query("mine_id")

	logger.Info("Alert stream connected", zap.String("mine_id", mineFilter))

	ch := h.subscribe()
	defer func() {
		h.unsubscribe(ch)
		c.Close()
		logger.Info("Alert stream closed")
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case alert := <-ch:
			if mineFilter != "" && alert.MineID != mineFilter {
				continue
			}
			if err := h.sendAlert(c, alert); err != nil {
				logger.Error("Failed to write alert to stream", zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) sendAlert(c *websocket.Conn, alert *models.AlertRecord) error {
	msg := map[string]interface{}{
		"type":       "alert",
		"alert_id":   alert.ID,
		"alert_type": alert.AlertType,
		"severity":   alert.Severity,
		"message":    alert.Message,
		"worker_id":  alert.WorkerID,
		"mine_id":    alert.MineID,
		"zone_id":    alert.ZoneID,
		"metadata":   alert.Metadata,
		"created_at": alert.CreatedAt,
	}

	return c.WriteJSON(msg)
}
