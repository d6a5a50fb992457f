package routing

import "errors"

var (
	// ErrRouteTableFull 不同 MsgID 数量达到上限
	ErrRouteTableFull = errors.New("route table full")

	// ErrMaxDestinations 单个 MsgID 的目的地数量达到上限
	ErrMaxDestinations = errors.New("max destinations per message id exceeded")

	// ErrNoSuchRoute 路由或目的地不存在
	ErrNoSuchRoute = errors.New("no such route")
)
