package chat

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"socialchat/global"
	"socialchat/logger"
	midsec "socialchat/middleware/security"
	"socialchat/module/chat/model"
	"socialchat/service/metrics"
	"socialchat/tools/errs"
)

const (
	authFailedMessage = "Authentication failed"
	initFailedMessage = "Failed to initialize connection"
)

// HandleWS upgrades the request and runs the connection until it closes.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrader already wrote the HTTP error
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}

	userID, err := s.authenticate(midsec.Credential(c))
	if err != nil {
		metrics.HandshakeFailures.Inc()
		logger.Info("[HandleWS] handshake rejected", zap.String("remote", c.ClientIP()), zap.Error(err))
		s.reject(ws, authFailedMessage, websocket.ClosePolicyViolation)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := s.connect(ctx, userID, ws)
	if err != nil {
		logger.Error("[HandleWS] connect failed", zap.String("user", userID), zap.Error(err))
		s.reject(ws, initFailedMessage, websocket.CloseInternalServerErr)
		return
	}
	defer s.disconnect(client)

	s.readLoop(ctx, client)
}

func (s *Server) authenticate(token string) (string, error) {
	if token == "" {
		return "", errs.ErrUnauthorized.WrapMsg("missing credential")
	}
	return s.verifier.VerifyToken(token)
}

// reject writes an error push and closes a socket that never got a writer.
func (s *Server) reject(ws *websocket.Conn, message string, closeCode int) {
	defer ws.Close()
	deadline := time.Now().Add(s.opts.WriteWait)
	if frame, err := EncodeFrame(EventError, "", &ErrorEvent{Message: message}); err == nil {
		_ = ws.SetWriteDeadline(deadline)
		_ = ws.WriteMessage(websocket.TextMessage, frame)
	}
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, message), deadline)
}

// connect registers the connection first, so conversations created while
// the list loads still find it, then joins one room per conversation. A
// failed load undoes the registration without any broadcast.
func (s *Server) connect(ctx context.Context, userID string, ws *websocket.Conn) (*Client, error) {
	client := NewClient(newConnID(), userID, ws, s.opts.SendQueue)
	s.conns.Add(client)
	first := s.registry.Register(userID, client.ConnID)

	loadCtx, cancel := context.WithTimeout(ctx, s.opts.HandlerTimeout)
	convs, err := s.chat.ListConversations(loadCtx, userID)
	cancel()
	if err != nil {
		s.conns.Remove(client.ConnID)
		s.rooms.LeaveAll(client.ConnID)
		s.registry.Drop(userID, client.ConnID)
		client.Close()
		return nil, err
	}

	for _, conv := range convs {
		s.rooms.Join(global.RoomKey(conv.ID), client.ConnID)
	}
	go client.writePump(s.opts.PingInterval, s.opts.WriteWait)

	metrics.WSConnections.Inc()
	metrics.OnlineUsers.Set(float64(s.registry.OnlineCount()))
	logger.Info("[HandleWS] connected",
		zap.String("user", userID), zap.String("conn", client.ConnID),
		zap.Int("rooms", len(convs)), zap.Bool("first", first))

	s.mirror(true, client)
	if first {
		s.BroadcastAll(EventUserOnline, &PresenceEvent{UserID: userID, Timestamp: time.Now().UTC()})
		s.Publish(model.NewEvent(model.EventUserOnline, userID))
	}
	return client, nil
}

func (s *Server) readLoop(ctx context.Context, client *Client) {
	ws := client.WS
	pongWait := s.opts.pongWait()
	ws.SetReadLimit(s.opts.MaxMessageBytes)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	cctx := &ChatContext{Context: ctx, S: s, Client: client}
	limit := s.opts.limiter()
	for {
		mt, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.Info("[HandleWS] read failed", zap.String("conn", client.ConnID), zap.String("user", client.UserID), zap.Error(err))
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, err := ParseFrameJSON(raw)
		if err != nil {
			s.pushTo(client, EventError, &ErrorEvent{Message: errs.Message(err)})
			continue
		}
		if limit != nil && !limit.Allow() {
			metrics.EventsHandled.WithLabelValues(frame.Event, errs.Name(errs.TooManyRequestsError)).Inc()
			s.ack(client, frame, Fail(errs.ErrTooManyRequests.WrapMsg("Too many events, slow down")))
			continue
		}
		s.serve(cctx, frame)
	}
}

// serve runs one event to completion and writes its ack before the next
// frame is read, so acks keep the order of requests.
func (s *Server) serve(cctx *ChatContext, frame *InboundFrame) {
	ctx, cancel := context.WithTimeout(cctx.Context, s.opts.HandlerTimeout)
	defer cancel()

	s.ack(cctx.Client, frame, s.disp.Dispatch(&ChatContext{Context: ctx, S: s, Client: cctx.Client}, frame))
}

func (s *Server) ack(client *Client, frame *InboundFrame, ack *Ack) {
	b, err := EncodeFrame(EventAck, frame.ID, ack)
	if err != nil {
		logger.Error("[HandleWS] encode ack", zap.String("event", frame.Event), zap.Error(err))
		b, _ = EncodeFrame(EventAck, frame.ID, Fail(err))
	}
	if !client.EnqueueWait(b, s.opts.WriteWait) {
		metrics.FramesDropped.Inc()
		logger.Warn("[HandleWS] ack dropped", zap.String("conn", client.ConnID), zap.String("event", frame.Event))
	}
}

func (s *Server) pushTo(client *Client, event string, data any) {
	s.push([]*Client{client}, event, data)
}

// disconnect is the close transition: unregister, announce offline on the
// last connection and stop every typing indicator the user held.
func (s *Server) disconnect(client *Client) {
	client.Close()
	s.conns.Remove(client.ConnID)
	s.rooms.LeaveAll(client.ConnID)
	last, stopped := s.registry.Unregister(client.UserID, client.ConnID)

	metrics.WSConnections.Dec()
	metrics.OnlineUsers.Set(float64(s.registry.OnlineCount()))
	logger.Info("[HandleWS] disconnected",
		zap.String("user", client.UserID), zap.String("conn", client.ConnID),
		zap.Bool("last", last), zap.Duration("age", time.Since(client.CreatedAt)))

	if last {
		s.BroadcastAll(EventUserOffline, &PresenceEvent{UserID: client.UserID, Timestamp: time.Now().UTC()})
		s.Publish(model.NewEvent(model.EventUserOffline, client.UserID))
	}
	for _, convID := range stopped {
		s.BroadcastConversation(convID, EventTypingStop, &TypingEvent{ConversationID: convID, UserID: client.UserID}, "")
	}
	s.mirror(false, client)
}
