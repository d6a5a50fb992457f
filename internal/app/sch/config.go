package sch

import (
	"errors"
	"fmt"
	"time"

	"github.com/flightbus/go-flightbus/config"
	"github.com/flightbus/go-flightbus/pkg/types"
)

// MaxEntries 调度表最大条目数
const MaxEntries = 32

// Entry 调度表条目
type Entry struct {
	MsgID      types.MsgID
	PacketRate int
	FcnCode    uint16
}

// Config 调度应用配置
type Config struct {
	Enable    bool
	TickRate  int
	SyncMsgID types.MsgID
	Entries   []Entry
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromUnified(nil)
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("sch: tick rate must be positive, got %d", c.TickRate)
	}
	if len(c.Entries) > MaxEntries {
		return fmt.Errorf("sch: %d entries exceeds %d", len(c.Entries), MaxEntries)
	}
	for i, e := range c.Entries {
		if e.PacketRate < 0 {
			return fmt.Errorf("sch: entry %d has negative packet rate", i)
		}
		if e.PacketRate > 0 && e.MsgID == types.InvalidMsgID {
			return errors.New("sch: active entry with invalid msg id")
		}
	}
	return nil
}

// Period 返回节拍周期
func (c Config) Period() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// ConfigFromUnified 从统一配置创建调度配置
func ConfigFromUnified(cfg *config.Config) Config {
	sc := config.DefaultSchedulerConfig()
	if cfg != nil {
		sc = cfg.Scheduler
	}
	out := Config{
		Enable:    sc.Enable,
		TickRate:  sc.TickRate,
		SyncMsgID: types.InvalidMsgID,
		Entries:   make([]Entry, 0, len(sc.Entries)),
	}
	if sc.SyncMsgID != 0 {
		out.SyncMsgID = types.MsgID(sc.SyncMsgID)
	}
	for _, e := range sc.Entries {
		out.Entries = append(out.Entries, Entry{
			MsgID:      types.MsgID(e.MsgID),
			PacketRate: e.PacketRate,
			FcnCode:    e.FcnCode,
		})
	}
	return out
}
