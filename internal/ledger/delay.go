package ledger

import "time"

// DelayFunc 把一次行程的 (distance, speed) 映射为完成前的等待时长。
// 纯函数、可注入：测试或运维可以替换缩放系数，而不必换算真实单位。
type DelayFunc func(distance, speed float64) time.Duration

// DefaultWaitScaleMillis 默认缩放系数：distance/speed 的比值按毫秒折算。
// 公式对单位不做任何物理解释，调用方若要真实单位语义需自行预缩放输入。
const DefaultWaitScaleMillis = 3_600_000

// DefaultDelay 默认等待公式：wait = distance / speed * 3_600_000 毫秒。
func DefaultDelay(distance, speed float64) time.Duration {
	return ScaledDelay(DefaultWaitScaleMillis)(distance, speed)
}

// ScaledDelay 返回自定义缩放系数的等待公式：
// wait = distance / speed * scaleMillis 毫秒。scaleMillis <= 0 时取默认值。
func ScaledDelay(scaleMillis float64) DelayFunc {
	if scaleMillis <= 0 {
		scaleMillis = DefaultWaitScaleMillis
	}
	return func(distance, speed float64) time.Duration {
		millis := distance / speed * scaleMillis
		return time.Duration(millis * float64(time.Millisecond))
	}
}
