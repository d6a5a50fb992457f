package ci

import (
	"errors"
	"net"
	"os"
	"time"
)

// Source 上行数据源，每次读取返回一个数据报
//
// net.PacketConn 实现该接口。
type Source interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	SetReadDeadline(t time.Time) error
	LocalAddr() net.Addr
	Close() error
}

// Listener 打开上行数据源
type Listener func(addr string) (Source, error)

// ListenUDP 在 addr 上监听 UDP
func ListenUDP(addr string) (Source, error) {
	return net.ListenPacket("udp", addr)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
