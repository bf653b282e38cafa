package chat

import (
	"go.uber.org/zap"

	"socialchat/logger"
	"socialchat/service/metrics"
)

// Fanout copies one encoded frame into many send queues. Delivery is
// fire-and-forget: a client whose queue is full misses the frame. Frames
// are enqueued in call order, so two broadcasts from one handler reach each
// client in that order.
type Fanout struct{}

func NewFanout() *Fanout { return &Fanout{} }

func (f *Fanout) Broadcast(conns []*Client, payload []byte) int {
	if len(conns) == 0 || len(payload) == 0 {
		return 0
	}
	delivered := 0
	for _, c := range conns {
		if c.Enqueue(payload) {
			delivered++
			continue
		}
		metrics.FramesDropped.Inc()
		logger.Warn("[WS] slow client, frame dropped", zap.String("conn", c.ConnID), zap.String("user", c.UserID))
	}
	return delivered
}
