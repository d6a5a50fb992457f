package to

import (
	"io"
	"net"
)

// Dialer 打开下行输出
type Dialer func(addr string) (io.WriteCloser, error)

// DialUDP 打开 UDP 下行输出，每次写入发送一个数据报
func DialUDP(addr string) (io.WriteCloser, error) {
	return net.Dial("udp", addr)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return io.Discard.Write(p) }
func (discard) Close() error                { return nil }
