// Package session 向导会话：HTTP 接口按 id 查找各自的向导实例。
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"railcat/internal/wizard"
)

// ErrNotFound 会话不存在或已过期
var ErrNotFound = errors.New("会话不存在或已过期")

// Factory 创建新的向导实例（未 Open）
type Factory func() *wizard.Wizard

type entry struct {
	w          *wizard.Wizard
	lastAccess time.Time
}

// Registry 内存会话表
type Registry struct {
	factory Factory
	ttl     time.Duration
	log     *zap.Logger
	now     func() time.Time

	sessions map[string]*entry
	mu       sync.RWMutex
}

// NewRegistry 创建会话表；ttl 为空闲过期时间，<=0 表示不过期
func NewRegistry(factory Factory, ttl time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		factory:  factory,
		ttl:      ttl,
		log:      logger.Named("session"),
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// SetClock 替换时间来源（测试用）
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Create 新建会话并加载模板列表
func (r *Registry) Create(ctx context.Context) (string, *wizard.Wizard, error) {
	w := r.factory()
	if err := w.Open(ctx); err != nil {
		w.Close()
		return "", nil, err
	}

	id := uuid.NewString()
	r.mu.Lock()
	r.sessions[id] = &entry{w: w, lastAccess: r.now()}
	r.mu.Unlock()

	r.log.Debug("session created", zap.String("id", id))
	return id, w, nil
}

// Get 获取会话并刷新访问时间
func (r *Registry) Get(id string) (*wizard.Wizard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastAccess = r.now()
	return e.w, nil
}

// Delete 关闭并移除会话
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	e.w.Close()
	r.log.Debug("session closed", zap.String("id", id))
	return nil
}

// Sweep 关闭空闲超过 ttl 的会话，返回关闭数量
func (r *Registry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}

	var expired []*entry
	r.mu.Lock()
	for id, e := range r.sessions {
		if now.Sub(e.lastAccess) > r.ttl {
			expired = append(expired, e)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	// 关闭会等待后台保存，放在锁外
	for _, e := range expired {
		e.w.Close()
	}
	if len(expired) > 0 {
		r.log.Info("expired sessions closed", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run 按 interval 定期清理，直到 ctx 结束
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.mu.RLock()
			now := r.now()
			r.mu.RUnlock()
			r.Sweep(now)
		}
	}
}

// Count 当前会话数量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close 关闭全部会话
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range sessions {
		e.w.Close()
	}
}
