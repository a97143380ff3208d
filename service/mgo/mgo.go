package mgo

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	mgo "NapChat/data/database/mgo/mongoutil"

	"go.mongodb.org/mongo-driver/mongo"
)

// 连接名：主库 + 两套遗留身份库。
const (
	ConnPrimary = "primary"
	ConnLegacyA = "legacyA"
	ConnLegacyB = "legacyB"
)

// conn 单条连接的状态。首次连上时 close readyCh，后续掉线会自动重连。
type conn struct {
	mu        sync.RWMutex
	client    *mgo.Client
	readyCh   chan struct{}
	readyOnce sync.Once

	lastErr atomic.Value // error
}

// Registry 具名 Mongo 连接表。在 main() 构造一次，显式传给需要的组件，
// 不再走全局单例。
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*conn)}
}

// StartAsync 注册并异步启动一条连接；一直运行到 ctx.Done()。
func (r *Registry) StartAsync(ctx context.Context, name string, cfg *mgo.Config) {
	c := &conn{readyCh: make(chan struct{})}
	r.mu.Lock()
	r.conns[name] = c
	r.mu.Unlock()

	go func() {
		const (
			baseBackoff = 200 * time.Millisecond
			maxBackoff  = 5 * time.Second
			healthEvery = 10 * time.Second // 健康检查周期
			failThresh  = 3                // 连续失败阈值
		)

		for {
			// ===== 连接阶段（带退避重试） =====
			attempt := 0
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				cli, err := mgo.NewMongoDB(ctx, cfg)
				if err == nil {
					c.mu.Lock()
					c.client = cli
					c.mu.Unlock()

					// 只在“首次”成功时通知就绪
					c.readyOnce.Do(func() { close(c.readyCh) })
					break
				}

				c.lastErr.Store(err)

				// 退避 + 抖动
				backoff := baseBackoff << attempt
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				jitter := time.Duration(rand.Int63n(int64(backoff / 5)))
				sleep := backoff - jitter/2

				timer := time.NewTimer(sleep)
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

			// ===== 健康检查阶段（保持/掉线→重连）=====
			fail := 0
			healthTicker := time.NewTicker(healthEvery)
			func() {
				defer healthTicker.Stop()
				for {
					select {
					case <-ctx.Done():
						c.mu.Lock()
						if c.client != nil {
							_ = c.client.GetClient().Disconnect(context.Background())
							c.client = nil
						}
						c.mu.Unlock()
						return
					case <-healthTicker.C:
						c.mu.RLock()
						cur := c.client
						c.mu.RUnlock()

						if cur == nil {
							return
						}
						if err := cur.GetClient().Ping(ctx, nil); err != nil {
							fail++
							c.lastErr.Store(err)
							if fail >= failThresh {
								c.mu.Lock()
								if c.client != nil {
									_ = c.client.GetClient().Disconnect(context.Background())
									c.client = nil
								}
								c.mu.Unlock()
								return
							}
						} else {
							fail = 0
						}
					}
				}
			}() // 健康循环结束后回到外层 for 重连
		}
	}()
}

// WaitReady 阻塞等待某条连接首次就绪。
func (r *Registry) WaitReady(ctx context.Context, name string) error {
	c := r.get(name)
	if c == nil {
		return fmt.Errorf("mongo conn %q not started", name)
	}
	c.mu.RLock()
	clientNil := c.client == nil
	c.mu.RUnlock()
	if !clientNil {
		return nil
	}
	select {
	case <-c.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DB 取某条连接的 Database；未就绪返回 nil（调用方按“该库不可用”处理）。
func (r *Registry) DB(name string) *mongo.Database {
	c := r.get(name)
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil
	}
	return c.client.GetDB()
}

// Err 某条连接最近一次错误。
func (r *Registry) Err(name string) error {
	c := r.get(name)
	if c == nil {
		return nil
	}
	if v := c.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Ready 某条连接是否已就绪。
func (r *Registry) Ready(name string) bool {
	return r.DB(name) != nil
}

func (r *Registry) get(name string) *conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[name]
}
