package clock

import (
	"sync"
	"time"
)

// Mock 是手动推进的模拟时钟：只有调用 Advance / Set 时时间才前进，
// 到期的 AfterFunc 回调按到期先后顺序同步执行。用于确定性的延迟测试。
type Mock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

type mockTimer struct {
	when time.Time
	fn   func()
}

// NewMock 创建模拟时钟，初始时间为一个固定的纪元点。
func NewMock() *Mock {
	return &Mock{now: time.Unix(0, 0)}
}

func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Mock) AfterFunc(d time.Duration, f func()) {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	m.timers = append(m.timers, &mockTimer{when: m.now.Add(d), fn: f})
	m.mu.Unlock()
}

// Sleep 等价于 Advance：模拟时钟上没有别的协程可以推进时间。
func (m *Mock) Sleep(d time.Duration) {
	m.Advance(d)
}

// Advance 将时钟前进 d，依次触发窗口内到期的回调。
// 回调在锁外执行，因此回调里可以继续注册新的定时器；
// 新注册且仍在窗口内的定时器同样会在本次 Advance 中触发。
func (m *Mock) Advance(d time.Duration) {
	m.Set(m.Now().Add(d))
}

// Set 将时钟直接设置到 t（不允许回拨）。
func (m *Mock) Set(t time.Time) {
	for {
		next := m.popDue(t)
		if next == nil {
			break
		}
		next.fn()
	}
	m.mu.Lock()
	if t.After(m.now) {
		m.now = t
	}
	m.mu.Unlock()
}

// popDue 取出 deadline 不超过 t 的最早定时器，并把 now 推进到该 deadline。
func (m *Mock) popDue(t time.Time) *mockTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, tm := range m.timers {
		if tm.when.After(t) {
			continue
		}
		if idx < 0 || tm.when.Before(m.timers[idx].when) {
			idx = i
		}
	}
	if idx < 0 {
		return nil
	}

	tm := m.timers[idx]
	m.timers = append(m.timers[:idx], m.timers[idx+1:]...)
	if tm.when.After(m.now) {
		m.now = tm.when
	}
	return tm
}
