package chat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"socialchat/global"
	"socialchat/logger"
	"socialchat/middleware"
	"socialchat/module/chat/model"
	chatsvc "socialchat/module/chat/service"
	"socialchat/service/metrics"
	"socialchat/tools/ids"
	"socialchat/tools/safe"
)

// TokenVerifier turns a bearer credential into a user id.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// ChatService is the domain service the gateway drives.
type ChatService interface {
	CreateConversation(ctx context.Context, callerID string, participantIDs []string) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error)
	GetConversation(ctx context.Context, callerID, conversationID string) (*model.Conversation, error)
	ListMessages(ctx context.Context, callerID, conversationID string, limit, offset int) ([]*model.Message, error)
	SendMessage(ctx context.Context, callerID string, in chatsvc.SendInput) (*model.Message, error)
	MarkRead(ctx context.Context, callerID, messageID string) (*model.Message, error)
	DeleteMessage(ctx context.Context, callerID, messageID string) (*model.Message, error)
	FindUser(ctx context.Context, id string) (*model.User, error)
}

// Publisher hands domain events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, evt *model.Event) error
}

// PresenceMirror copies presence transitions to a shared store.
type PresenceMirror interface {
	Online(ctx context.Context, userID, connID string) error
	Offline(ctx context.Context, userID, connID string) error
}

type Options struct {
	Path            string
	SendQueue       int
	PingInterval    time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
	AllowedOrigins  []string
	// HandlerTimeout bounds the store work of one inbound event.
	HandlerTimeout time.Duration
	// EventRate limits inbound events per connection, per second. Negative
	// disables the limit.
	EventRate  float64
	EventBurst int
}

func (o *Options) norm() {
	if o.Path == "" {
		o.Path = "/ws"
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 256
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 << 10
	}
	if o.HandlerTimeout <= 0 {
		o.HandlerTimeout = 15 * time.Second
	}
	if o.EventRate == 0 {
		o.EventRate = 30
	}
	if o.EventBurst <= 0 {
		o.EventBurst = 60
	}
}

// limiter is nil when inbound events are not limited.
func (o *Options) limiter() *rate.Limiter {
	if o.EventRate < 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(o.EventRate), o.EventBurst)
}

// pongWait must exceed the ping interval so one late pong is tolerated.
func (o *Options) pongWait() time.Duration {
	return o.PingInterval*2 + o.WriteWait
}

// Server is the realtime gateway: it authenticates connections, keeps the
// registry and rooms, dispatches events and fans out pushes.
type Server struct {
	opts     Options
	verifier TokenVerifier
	chat     ChatService
	events   Publisher
	presence PresenceMirror

	registry *Registry
	rooms    *Rooms
	conns    *ConnManager
	disp     *Dispatcher
	fanout   *Fanout
	upgrader websocket.Upgrader

	wg sync.WaitGroup
}

type Option func(*Server)

func WithPublisher(p Publisher) Option {
	return func(s *Server) { s.events = p }
}

func WithPresenceMirror(p PresenceMirror) Option {
	return func(s *Server) { s.presence = p }
}

func NewServer(opts Options, verifier TokenVerifier, chat ChatService, options ...Option) *Server {
	opts.norm()
	safe.MustNotNil(verifier, "verifier")
	safe.MustNotNil(chat, "chat service")

	s := &Server{
		opts:     opts,
		verifier: verifier,
		chat:     chat,
		registry: NewRegistry(),
		rooms:    NewRooms(),
		conns:    NewConnManager(),
		disp:     NewDispatcher(),
		fanout:   NewFanout(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.opts.AllowedOrigins) == 0 {
				return true
			}
			return middleware.OriginAllowed(s.opts.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	for _, o := range options {
		o(s)
	}
	return s
}

func (s *Server) Registry() *Registry    { return s.registry }
func (s *Server) Rooms() *Rooms          { return s.rooms }
func (s *Server) Chat() ChatService      { return s.chat }
func (s *Server) Handle(h ...Handler)    { s.disp.Register(h...) }
func (s *Server) ActiveConnections() int { return s.conns.Len() }

// Mount registers the WebSocket route. The credential middleware runs in
// optional mode so that a missing token is reported over the socket.
func (s *Server) Mount(r gin.IRoutes) {
	middleware.GET(r, s.opts.Path, s.HandleWS, middleware.RouteOpt{IsAuth: true, AuthOptional: true})
}

// JoinUser joins every open connection of userID to room.
func (s *Server) JoinUser(userID, room string) {
	for _, connID := range s.registry.ConnectionsOf(userID) {
		s.rooms.Join(room, connID)
	}
}

// BroadcastRoom pushes event to the room, skipping exceptConn when set.
func (s *Server) BroadcastRoom(room, event string, data any, exceptConn string) {
	s.push(s.conns.Lookup(s.rooms.Members(room), exceptConn), event, data)
}

// BroadcastConversation is BroadcastRoom on the conversation's room.
func (s *Server) BroadcastConversation(conversationID, event string, data any, exceptConn string) {
	s.BroadcastRoom(global.RoomKey(conversationID), event, data, exceptConn)
}

// BroadcastAll pushes event to every open connection.
func (s *Server) BroadcastAll(event string, data any) {
	s.push(s.conns.All(""), event, data)
}

func (s *Server) push(conns []*Client, event string, data any) {
	if len(conns) == 0 {
		return
	}
	frame, err := EncodeFrame(event, "", data)
	if err != nil {
		logger.Error("[WS] encode push", zap.String("event", event), zap.Error(err))
		return
	}
	s.fanout.Broadcast(conns, frame)
}

// StopTyping clears the typing flag and tells the room when it changed.
func (s *Server) StopTyping(conversationID, userID, exceptConn string) bool {
	if !s.registry.ClearTyping(conversationID, userID) {
		return false
	}
	s.BroadcastConversation(conversationID, EventTypingStop,
		&TypingEvent{ConversationID: conversationID, UserID: userID}, exceptConn)
	return true
}

// Publish emits evt in the background; bus failures are logged, never
// returned to the client.
func (s *Server) Publish(evt *model.Event) {
	if s.events == nil || evt == nil {
		return
	}
	s.wg.Add(1)
	safe.SafeGo("publish "+evt.Type, func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.events.Publish(ctx, evt); err != nil {
			metrics.DomainEventsPublished.WithLabelValues(evt.Type, "error").Inc()
			logger.Warn("[events] publish failed", zap.String("type", evt.Type), zap.Error(err))
			return
		}
		metrics.DomainEventsPublished.WithLabelValues(evt.Type, "ok").Inc()
	})
}

func (s *Server) mirror(online bool, client *Client) {
	if s.presence == nil {
		return
	}
	s.wg.Add(1)
	safe.SafeGo("presence mirror", func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		var err error
		if online {
			defer close(client.mirrored)
			err = s.presence.Online(ctx, client.UserID, client.ConnID)
		} else {
			// offline must land after online for the same connection
			select {
			case <-client.mirrored:
			case <-ctx.Done():
			}
			err = s.presence.Offline(ctx, client.UserID, client.ConnID)
		}
		if err != nil {
			logger.Warn("[presence] mirror failed", zap.String("user", client.UserID), zap.Bool("online", online), zap.Error(err))
		}
	})
}

// Shutdown closes every connection and waits for their disconnect handling
// and background publishes, or for ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.conns.CloseAll()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newConnID() string {
	return ids.GenerateString()
}
