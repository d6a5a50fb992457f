package types

import "fmt"

// Qos 投递策略
type Qos struct {
	Priority    Priority    `json:"priority"`
	Reliability Reliability `json:"reliability"`
}

// DefaultQos 默认投递策略：普通优先级、尽力投递
var DefaultQos = Qos{Priority: PriorityLow, Reliability: ReliabilityBestEffort}

// String 返回 "priority/reliability" 形式
func (q Qos) String() string {
	return fmt.Sprintf("%s/%s", q.Priority, q.Reliability)
}
