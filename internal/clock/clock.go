package clock

import "time"

// Clock 抽象本项目用到的 time 能力（当前时间、一次性延迟回调、睡眠），
// 便于在单元测试中注入可控的模拟时钟，而不是绑死在全局真实时钟上。
type Clock interface {
	Now() time.Time
	// AfterFunc 在至少 d 之后调用 f（一次性、不可取消）。
	// d 是下界：受调度影响，实际触发可能晚于 d，但不会早于 d。
	AfterFunc(d time.Duration, f func())
	Sleep(d time.Duration)
}

// New 返回基于真实时间的 Clock。
func New() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

func (realClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
