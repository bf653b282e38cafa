package mgo

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"socialchat/data/database/mgo/mongoutil"
	"socialchat/logger"
	"socialchat/tools/errs"
)

// MongoManager keeps one client alive: it connects with backoff, pings
// periodically and reconnects after repeated failures.
type MongoManager struct {
	cfg *mongoutil.Config

	mu        sync.RWMutex
	client    *mongoutil.Client
	readyCh   chan struct{}
	readyOnce sync.Once

	lastErr atomic.Value // error
}

func NewManager(cfg *mongoutil.Config) *MongoManager {
	return &MongoManager{cfg: cfg, readyCh: make(chan struct{})}
}

// StartAsync runs until ctx is done. Ready is closed on the first successful connect.
func (m *MongoManager) StartAsync(ctx context.Context) {
	go func() {
		const (
			baseBackoff = 200 * time.Millisecond
			maxBackoff  = 5 * time.Second
			healthEvery = 10 * time.Second
			failThresh  = 3
		)

		for {
			attempt := 0
			for {
				if ctx.Err() != nil {
					return
				}
				cli, err := mongoutil.NewMongoDB(ctx, m.cfg)
				if err == nil {
					m.mu.Lock()
					m.client = cli
					m.mu.Unlock()
					m.readyOnce.Do(func() { close(m.readyCh) })
					logger.Infof("mongo connected, db=%s", m.cfg.Database)
					break
				}
				m.lastErr.Store(err)
				logger.Warnf("mongo connect failed (attempt %d): %v", attempt+1, err)

				backoff := baseBackoff << attempt
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				jitter := time.Duration(rand.Int63n(int64(backoff / 5)))
				timer := time.NewTimer(backoff - jitter/2)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				if attempt < 6 {
					attempt++
				}
			}

			if !m.watch(ctx, healthEvery, failThresh) {
				return
			}
		}
	}()
}

// watch pings until the connection is considered lost (returns true) or ctx ends (false).
func (m *MongoManager) watch(ctx context.Context, every time.Duration, failThresh int) bool {
	fail := 0
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.drop()
			return false
		case <-ticker.C:
			db, ok := m.TryGetDB()
			if !ok {
				return true
			}
			if err := db.Client().Ping(ctx, nil); err != nil {
				fail++
				m.lastErr.Store(err)
				if fail >= failThresh {
					logger.Warnf("mongo lost after %d failed pings: %v", fail, err)
					m.drop()
					return true
				}
			} else {
				fail = 0
			}
		}
	}
}

func (m *MongoManager) drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		_ = m.client.Disconnect(context.Background())
		m.client = nil
	}
}

// Err is the most recent connect or ping error.
func (m *MongoManager) Err() error {
	if v := m.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (m *MongoManager) TryGetDB() (*mongo.Database, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, false
	}
	return m.client.GetDB(), true
}

// WaitReady blocks until the first connection succeeds.
func (m *MongoManager) WaitReady(ctx context.Context) (*mongo.Database, error) {
	if db, ok := m.TryGetDB(); ok {
		return db, nil
	}
	select {
	case <-m.readyCh:
		if db, ok := m.TryGetDB(); ok {
			return db, nil
		}
		return nil, errs.New("mongo not ready")
	case <-ctx.Done():
		if last := m.Err(); last != nil {
			return nil, errs.WrapMsg(last, "mongo not ready")
		}
		return nil, errs.Wrap(ctx.Err())
	}
}

// Close disconnects; the StartAsync loop stops with its ctx.
func (m *MongoManager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(ctx)
	m.client = nil
	return err
}
