package chat

import (
	"time"

	"go.uber.org/zap"

	"socialchat/logger"
	"socialchat/service/metrics"
	"socialchat/tools/errs"
)

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h ...Handler) {
	for _, x := range h {
		d.handlers[x.Event()] = x
	}
}

func (d *Dispatcher) GetHandler(event string) Handler {
	return d.handlers[event]
}

// Dispatch runs the handler for frame and always produces an ack. Errors
// and panics become failure acks; nothing escapes to the connection.
func (d *Dispatcher) Dispatch(ctx *ChatContext, frame *InboundFrame) (ack *Ack) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := errs.ErrPanic(r)
			logger.Error("[WS] handler panic", zap.String("event", frame.Event), zap.Error(err), zap.Stack("stack"))
			ack = Fail(err)
		}
		metrics.EventsHandled.WithLabelValues(frame.Event, ack.codeLabel()).Inc()
		metrics.EventDuration.WithLabelValues(frame.Event).Observe(time.Since(start).Seconds())
	}()

	h := d.GetHandler(frame.Event)
	if h == nil {
		return Fail(errs.ErrValidation.WrapMsg("unknown event " + frame.Event))
	}
	if _, err := ctx.UserID(); err != nil {
		return Fail(err)
	}

	res, err := h.Handle(ctx, frame.Data)
	if err != nil {
		code := errs.Code(err)
		if code == errs.ServerInternalError {
			logger.Error("[WS] handler failed", zap.String("event", frame.Event), zap.String("user", ctx.Client.UserID), zap.Error(err))
		} else {
			logger.Debug("[WS] handler rejected", zap.String("event", frame.Event), zap.String("user", ctx.Client.UserID), zap.String("code", errs.Name(code)), zap.Error(err))
		}
		return Fail(err)
	}
	if res == nil {
		res = OK(nil)
	}
	return res
}

func (a *Ack) codeLabel() string {
	if a == nil || a.Success {
		return "OK"
	}
	if a.Code == "" {
		return errs.Name(errs.ServerInternalError)
	}
	return a.Code
}

func errUnauthorized() error {
	return errs.ErrUnauthorized.WrapMsg("Unauthorized")
}
