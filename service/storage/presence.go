package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"socialchat/logger"
	"socialchat/tools/errs"
)

// PresenceConfig controls the shared presence mirror.
type PresenceConfig struct {
	// TTL bounds how long an entry survives without a refresh, so a crashed
	// node's users age out.
	TTL time.Duration
	// NodeID is stored as the member prefix so entries show which node owns them.
	NodeID string
	// Channel receives "ONLINE:<user>" and "OFFLINE:<user>" on transitions; empty disables it.
	Channel string
}

// presence key: im:presence:<user>
// Sorted set of <node>:<conn> scored by expiry unix seconds.
func presenceKey(user string) string { return "im:presence:" + user }

func presenceMember(node, conn string) string { return node + ":" + conn }

// KEYS[1] = presence key
// ARGV[1] = member, ARGV[2] = expireAtUnix, ARGV[3] = ttlSeconds, ARGV[4] = nowUnix
// Returns 1 when the user had no live entry before.
const luaPresenceOnline = `
local k = KEYS[1]
redis.call("ZREMRANGEBYSCORE", k, "-inf", ARGV[4])
local before = redis.call("ZCARD", k)
redis.call("ZADD", k, ARGV[2], ARGV[1])
redis.call("EXPIRE", k, ARGV[3])
if before == 0 then
  return 1
end
return 0
`

// KEYS[1] = presence key
// ARGV[1] = member, ARGV[2] = nowUnix
// Returns the number of live entries left; the key is deleted at zero.
const luaPresenceOffline = `
local k = KEYS[1]
redis.call("ZREM", k, ARGV[1])
redis.call("ZREMRANGEBYSCORE", k, "-inf", ARGV[2])
local left = redis.call("ZCARD", k)
if left == 0 then
  redis.call("DEL", k)
end
return left
`

// KEYS[1] = presence key
// ARGV[1] = nowUnix
const luaPresenceCount = `
local k = KEYS[1]
redis.call("ZREMRANGEBYSCORE", k, "-inf", ARGV[1])
return redis.call("ZCARD", k)
`

// Presence mirrors this node's connections into Redis so other services
// can ask whether a user is online. The in-process registry stays the
// source of truth for the gateway itself.
type Presence struct {
	rdb  redis.UniversalClient
	conf PresenceConfig

	luaOnline  *redis.Script
	luaOffline *redis.Script
	luaCount   *redis.Script

	mu    sync.Mutex
	local map[string]map[string]struct{} // user -> conn ids held by this node
	// closed remembers connections already taken offline, so a late Online
	// for the same connection is ignored.
	closed map[string]time.Time
}

func NewPresence(rdb redis.UniversalClient, conf PresenceConfig) *Presence {
	if conf.TTL <= 0 {
		conf.TTL = 90 * time.Second
	}
	if conf.NodeID == "" {
		conf.NodeID = "node"
	}
	return &Presence{
		rdb:        rdb,
		conf:       conf,
		luaOnline:  redis.NewScript(luaPresenceOnline),
		luaOffline: redis.NewScript(luaPresenceOffline),
		luaCount:   redis.NewScript(luaPresenceCount),
		local:      make(map[string]map[string]struct{}),
		closed:     make(map[string]time.Time),
	}
}

func (p *Presence) Online(ctx context.Context, userID, connID string) error {
	if !p.track(userID, connID, true) {
		return nil
	}
	first, err := p.touch(ctx, userID, connID)
	if err != nil {
		return err
	}
	if first {
		p.publish(ctx, "ONLINE:"+userID)
	}
	return nil
}

func (p *Presence) Offline(ctx context.Context, userID, connID string) error {
	p.track(userID, connID, false)
	left, err := p.luaOffline.Run(ctx, p.rdb,
		[]string{presenceKey(userID)},
		presenceMember(p.conf.NodeID, connID), time.Now().Unix(),
	).Int64()
	if err != nil {
		return errs.WrapMsg(err, "presence offline", "user", userID)
	}
	if left == 0 {
		p.publish(ctx, "OFFLINE:"+userID)
	}
	return nil
}

// IsOnline reports whether any node holds a live connection for userID.
func (p *Presence) IsOnline(ctx context.Context, userID string) (bool, int64, error) {
	n, err := p.luaCount.Run(ctx, p.rdb, []string{presenceKey(userID)}, time.Now().Unix()).Int64()
	if err != nil {
		return false, 0, errs.WrapMsg(err, "presence count", "user", userID)
	}
	return n > 0, n, nil
}

// Run refreshes every entry this node holds at half the TTL until ctx ends.
func (p *Presence) Run(ctx context.Context) {
	ticker := time.NewTicker(p.conf.TTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(time.Now().Add(-2 * p.conf.TTL))
			p.refresh(ctx)
		}
	}
}

func (p *Presence) refresh(ctx context.Context) {
	for user, conns := range p.snapshot() {
		for _, conn := range conns {
			if _, err := p.touch(ctx, user, conn); err != nil {
				logger.Warn("[presence] refresh failed", zap.String("user", user), zap.String("conn", conn), zap.Error(err))
			}
		}
	}
}

func (p *Presence) touch(ctx context.Context, userID, connID string) (bool, error) {
	now := time.Now()
	rc, err := p.luaOnline.Run(ctx, p.rdb,
		[]string{presenceKey(userID)},
		presenceMember(p.conf.NodeID, connID),
		now.Add(p.conf.TTL).Unix(),
		int64(p.conf.TTL/time.Second),
		now.Unix(),
	).Int64()
	if err != nil {
		return false, errs.WrapMsg(err, "presence online", "user", userID)
	}
	return rc == 1, nil
}

func (p *Presence) publish(ctx context.Context, msg string) {
	if p.conf.Channel == "" {
		return
	}
	if err := p.rdb.Publish(ctx, p.conf.Channel, msg).Err(); err != nil {
		logger.Warn("[presence] publish failed", zap.String("msg", msg), zap.Error(err))
	}
}

// track adds or removes a local connection. Adding reports false when the
// connection has already gone offline.
func (p *Presence) track(userID, connID string, add bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	conns := p.local[userID]
	if add {
		if _, gone := p.closed[connID]; gone {
			return false
		}
		if conns == nil {
			conns = make(map[string]struct{})
			p.local[userID] = conns
		}
		conns[connID] = struct{}{}
		return true
	}
	p.closed[connID] = time.Now()
	delete(conns, connID)
	if len(conns) == 0 {
		delete(p.local, userID)
	}
	return true
}

// prune forgets closed connections recorded before cutoff.
func (p *Presence) prune(cutoff time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for conn, at := range p.closed {
		if at.Before(cutoff) {
			delete(p.closed, conn)
		}
	}
}

func (p *Presence) snapshot() map[string][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string][]string, len(p.local))
	for user, conns := range p.local {
		for c := range conns {
			out[user] = append(out[user], c)
		}
	}
	return out
}

// ExtractUser returns the user id of a presence key, or "".
func ExtractUser(key string) string {
	if !strings.HasPrefix(key, "im:presence:") {
		return ""
	}
	return strings.TrimPrefix(key, "im:presence:")
}
