package sb

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/flightbus/go-flightbus/internal/core/msg"
	"github.com/flightbus/go-flightbus/pkg/types"
)

// HK 遥测字段号
const (
	HKCommandCounter         protowire.Number = 1
	HKCommandErrorCounter    protowire.Number = 2
	HKNoSubscribersCounter   protowire.Number = 3
	HKMsgSendErrorCounter    protowire.Number = 4
	HKMsgReceiveErrorCounter protowire.Number = 5
	HKInternalErrorCounter   protowire.Number = 6
	HKCreatePipeErrorCounter protowire.Number = 7
	HKSubscribeErrorCounter  protowire.Number = 8
	HKPipeOverflowErrCounter protowire.Number = 9
	HKMsgLimitErrorCounter   protowire.Number = 10
	HKDuplicateSubsCounter   protowire.Number = 11
	HKGetPipeIDByNameErrors  protowire.Number = 12
	HKMemInUse               protowire.Number = 13
	HKUnmarkedMem            protowire.Number = 14
)

// 统计遥测字段号
const (
	StatsMsgIDsInUse        protowire.Number = 1
	StatsPeakMsgIDsInUse    protowire.Number = 2
	StatsMaxMsgIDs          protowire.Number = 3
	StatsPipesInUse         protowire.Number = 4
	StatsPeakPipesInUse     protowire.Number = 5
	StatsMaxPipes           protowire.Number = 6
	StatsMemInUse           protowire.Number = 7
	StatsPeakMemInUse       protowire.Number = 8
	StatsMaxMem             protowire.Number = 9
	StatsSubscriptionsInUse protowire.Number = 10
	StatsPeakSubscriptions  protowire.Number = 11
	StatsBuffersInUse       protowire.Number = 12
	StatsPeakBuffersInUse   protowire.Number = 13
	StatsMaxBuffers         protowire.Number = 14
	// StatsPipeDepth 重复的嵌套字段，每个管道一条
	StatsPipeDepth protowire.Number = 15
)

// 管道深度嵌套字段号
const (
	PipeDepthPipeID  protowire.Number = 1
	PipeDepthDepth   protowire.Number = 2
	PipeDepthCurrent protowire.Number = 3
	PipeDepthPeak    protowire.Number = 4
)

// 路由指令负载字段号
const (
	RouteCmdMsgID  protowire.Number = 1
	RouteCmdPipeID protowire.Number = 2
)

// EncodeHK 编码 HK 遥测负载
func EncodeHK(cmdCount, cmdErrCount uint64, st types.BusStats) []byte {
	var b []byte
	b = msg.AppendUint(b, HKCommandCounter, cmdCount)
	b = msg.AppendUint(b, HKCommandErrorCounter, cmdErrCount)
	b = msg.AppendUint(b, HKNoSubscribersCounter, st.NoSubscribers)
	b = msg.AppendUint(b, HKMsgSendErrorCounter, st.MsgSendErrors)
	b = msg.AppendUint(b, HKMsgReceiveErrorCounter, st.MsgReceiveErrors)
	b = msg.AppendUint(b, HKInternalErrorCounter, st.InternalErrors)
	b = msg.AppendUint(b, HKCreatePipeErrorCounter, st.CreatePipeErrors)
	b = msg.AppendUint(b, HKSubscribeErrorCounter, st.SubscribeErrors)
	b = msg.AppendUint(b, HKPipeOverflowErrCounter, st.PipeOverflowErrors)
	b = msg.AppendUint(b, HKMsgLimitErrorCounter, st.MsgLimitErrors)
	b = msg.AppendUint(b, HKDuplicateSubsCounter, st.DuplicateSubscriptions)
	b = msg.AppendUint(b, HKGetPipeIDByNameErrors, st.GetPipeIDByNameErrors)
	b = msg.AppendUint(b, HKMemInUse, uint64(st.MemInUse))
	b = msg.AppendUint(b, HKUnmarkedMem, uint64(st.BufferCount-st.BuffersInUse))
	return b
}

// EncodeStats 编码统计遥测负载
func EncodeStats(st types.BusStats, bufferSize int, pipes []types.PipeInfo) []byte {
	var b []byte
	b = msg.AppendUint(b, StatsMsgIDsInUse, uint64(st.RoutesInUse))
	b = msg.AppendUint(b, StatsPeakMsgIDsInUse, uint64(st.PeakRoutesInUse))
	b = msg.AppendUint(b, StatsMaxMsgIDs, uint64(st.MaxRoutes))
	b = msg.AppendUint(b, StatsPipesInUse, uint64(st.PipesInUse))
	b = msg.AppendUint(b, StatsPeakPipesInUse, uint64(st.PeakPipesInUse))
	b = msg.AppendUint(b, StatsMaxPipes, uint64(st.MaxPipes))
	b = msg.AppendUint(b, StatsMemInUse, uint64(st.MemInUse))
	b = msg.AppendUint(b, StatsPeakMemInUse, uint64(st.PeakMemInUse))
	b = msg.AppendUint(b, StatsMaxMem, uint64(st.BufferCount*bufferSize))
	b = msg.AppendUint(b, StatsSubscriptionsInUse, uint64(st.SubscriptionsInUse))
	b = msg.AppendUint(b, StatsPeakSubscriptions, uint64(st.PeakSubscriptions))
	b = msg.AppendUint(b, StatsBuffersInUse, uint64(st.BuffersInUse))
	b = msg.AppendUint(b, StatsPeakBuffersInUse, uint64(st.PeakBuffersInUse))
	b = msg.AppendUint(b, StatsMaxBuffers, uint64(st.BufferCount))

	for _, p := range pipes {
		var nested []byte
		nested = msg.AppendUint(nested, PipeDepthPipeID, uint64(p.ID))
		nested = msg.AppendUint(nested, PipeDepthDepth, uint64(p.Depth))
		nested = msg.AppendUint(nested, PipeDepthCurrent, uint64(p.CurrentDepth))
		nested = msg.AppendUint(nested, PipeDepthPeak, uint64(p.PeakDepth))
		b = protowire.AppendTag(b, StatsPipeDepth, protowire.BytesType)
		b = protowire.AppendBytes(b, nested)
	}
	return b
}

// EncodeRouteCmd 编码 ENABLE_ROUTE / DISABLE_ROUTE 指令负载
func EncodeRouteCmd(msgID types.MsgID, pipeID types.PipeID) []byte {
	var b []byte
	b = msg.AppendUint(b, RouteCmdMsgID, uint64(msgID))
	b = msg.AppendUint(b, RouteCmdPipeID, uint64(pipeID))
	return b
}

// decodeRouteCmd 解码路由指令负载
func decodeRouteCmd(payload []byte) (types.MsgID, types.PipeID, error) {
	f, err := msg.ParseUints(payload)
	if err != nil {
		return types.InvalidMsgID, types.InvalidPipeID, err
	}
	id, ok1 := f[RouteCmdMsgID]
	pid, ok2 := f[RouteCmdPipeID]
	if !ok1 || !ok2 || id > uint64(types.InvalidMsgID) || pid > uint64(types.InvalidPipeID) {
		return types.InvalidMsgID, types.InvalidPipeID, ErrBadArgument
	}
	return types.MsgID(id), types.PipeID(pid), nil
}
