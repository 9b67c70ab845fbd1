package ledger

import (
	"math"
	"sync"

	"github.com/OdoTrack/OdoTrack/internal/clock"
	"github.com/OdoTrack/OdoTrack/internal/common/errs"
	"github.com/OdoTrack/OdoTrack/internal/common/logger"
)

// Vehicle 行驶台账：两个不可变标识（make / model）加一个只增的里程累加器。
// odometer 只会被 Drive / DriveAsync 显式传入的里程增加，不推断、不衰减。
//
// 原始模型假设单线程事件循环里回调天然串行；Go 里 AfterFunc 回调跑在独立
// goroutine 上，因此用互斥锁保证并发行程对 odometer 的修改串行化。
type Vehicle struct {
	make  string
	model string

	mu       sync.Mutex
	odometer float64

	clk   clock.Clock
	delay DelayFunc
	log   logger.Logger
}

// Option 构造选项。
type Option func(*Vehicle)

// WithClock 注入时钟（测试注入 clock.Mock 获得确定性延迟）。
func WithClock(c clock.Clock) Option {
	return func(v *Vehicle) {
		if c != nil {
			v.clk = c
		}
	}
}

// WithDelayFunc 注入等待公式。
func WithDelayFunc(fn DelayFunc) Option {
	return func(v *Vehicle) {
		if fn != nil {
			v.delay = fn
		}
	}
}

// WithLogger 注入日志；不注入则不打日志。
func WithLogger(l logger.Logger) Option {
	return func(v *Vehicle) {
		v.log = l
	}
}

// New 创建 Vehicle，odometer 从 0 开始。
func New(make, model string, opts ...Option) *Vehicle {
	v := &Vehicle{
		make:  make,
		model: model,
		clk:   clock.New(),
		delay: DefaultDelay,
	}
	for _, apply := range opts {
		if apply != nil {
			apply(v)
		}
	}
	return v
}

func (v *Vehicle) Make() string {
	return v.make
}

func (v *Vehicle) Model() string {
	return v.model
}

// Odometer 返回当前累计里程。
func (v *Vehicle) Odometer() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.odometer
}

// Drive 立即记账：distance = sum(legs)，累加进 odometer 并同步返回。
// legs 为空或含非法值时返回 invalid_argument，odometer 不变。
func (v *Vehicle) Drive(legs ...float64) (float64, error) {
	const op = "ledger.Drive"

	distance, err := sumLegs(op, legs)
	if err != nil {
		return 0, err
	}

	total := v.add(distance)
	if v.log != nil {
		v.log.WithFields(map[string]interface{}{
			"make":     v.make,
			"model":    v.model,
			"distance": distance,
			"odometer": total,
		}).Debug("drive recorded")
	}
	return distance, nil
}

// add 串行化地把 distance 累加进 odometer，返回累加后的总里程。
func (v *Vehicle) add(distance float64) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.odometer += distance
	return v.odometer
}

// sumLegs 校验并求和。空序列不按 0 处理，而是显式报错：
// 原始行为对空入参未定义，这里收敛为 invalid_argument。
func sumLegs(op string, legs []float64) (float64, error) {
	if len(legs) == 0 {
		return 0, errs.New(errs.KindInvalidArgument, op, "at least one leg required")
	}
	var sum float64
	for i, leg := range legs {
		if leg < 0 || math.IsNaN(leg) || math.IsInf(leg, 0) {
			return 0, errs.Newf(errs.KindInvalidArgument, op,
				"leg[%d] must be a non-negative finite number, got %v", i, leg)
		}
		sum += leg
	}
	return sum, nil
}
