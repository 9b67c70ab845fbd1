package ledger

import (
	"context"
	"math"
	"time"

	"github.com/OdoTrack/OdoTrack/internal/common/errs"
	"github.com/google/uuid"
)

// Status 行程状态。只有两个状态：定时器已上膛 / 已触发。
// 没有取消态：行程一旦发起就不可撤销，超时控制由调用方在 Wait 上施加。
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Trip 延迟记账的句柄。DriveAsync 返回后立即可用；
// 里程入账和结果值都只在句柄完成后可观测。
type Trip struct {
	id       string
	distance float64
	eta      time.Duration
	started  time.Time

	done chan struct{}
}

// DriveAsync 延迟记账：distance = sum(legs)，等待 delay(distance, speed)
// 之后才把 distance 累加进 odometer 并使句柄完成。等待是下界，不是精确值。
// speed <= 0 返回 invalid_argument，定时器不会上膛。
func (v *Vehicle) DriveAsync(speed float64, legs ...float64) (*Trip, error) {
	const op = "ledger.DriveAsync"

	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return nil, errs.Newf(errs.KindInvalidArgument, op,
			"speed must be a positive finite number, got %v", speed)
	}
	distance, err := sumLegs(op, legs)
	if err != nil {
		return nil, err
	}

	wait := v.delay(distance, speed)
	if wait < 0 {
		wait = 0
	}

	t := &Trip{
		id:       uuid.NewString(),
		distance: distance,
		eta:      wait,
		started:  v.clk.Now(),
		done:     make(chan struct{}),
	}

	v.clk.AfterFunc(wait, func() {
		// 先入账，再放行观察者：句柄一旦完成，odometer 必已更新。
		total := v.add(distance)
		close(t.done)
		if v.log != nil {
			v.log.WithFields(map[string]interface{}{
				"make":     v.make,
				"model":    v.model,
				"trip_id":  t.id,
				"distance": distance,
				"odometer": total,
			}).Debug("trip completed")
		}
	})

	if v.log != nil {
		v.log.WithFields(map[string]interface{}{
			"trip_id": t.id,
			"eta":     wait.String(),
		}).Debug("trip started")
	}
	return t, nil
}

// ID 行程标识。
func (t *Trip) ID() string {
	return t.id
}

// ETA 发起时刻计算出的最小等待时长。
func (t *Trip) ETA() time.Duration {
	return t.eta
}

// StartedAt 发起时刻（按 Vehicle 的时钟）。
func (t *Trip) StartedAt() time.Time {
	return t.started
}

// Done 返回完成信号通道，可用于 select 组合外部超时。
func (t *Trip) Done() <-chan struct{} {
	return t.done
}

// Status 返回当前状态。
func (t *Trip) Status() Status {
	select {
	case <-t.done:
		return StatusCompleted
	default:
		return StatusPending
	}
}

// Distance 返回本次行程的里程；完成前第二个返回值为 false。
func (t *Trip) Distance() (float64, bool) {
	select {
	case <-t.done:
		return t.distance, true
	default:
		return 0, false
	}
}

// Wait 阻塞到行程完成并返回里程；ctx 先到期则返回 ctx 的错误。
// 组件本身不提供超时，调用方通过 ctx 与句柄赛跑实现外部超时。
func (t *Trip) Wait(ctx context.Context) (float64, error) {
	select {
	case <-t.done:
		return t.distance, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
