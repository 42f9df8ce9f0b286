package gateway

import (
	"go.uber.org/fx"
)

// Module provides the read API's HTTP server lifecycle for fx.
var Module = fx.Options(
	fx.Provide(NewServer),
)
