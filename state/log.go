package state

import (
	cosmoslog "cosmossdk.io/log"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// treeLogger lets iavl write through the node's logger.
type treeLogger struct {
	cmtlog.Logger
}

func newTreeLogger(lg cmtlog.Logger) cosmoslog.Logger {
	return treeLogger{Logger: lg.With("module", "iavl")}
}

// Warn has no cometbft level; it is logged at info with a marker.
func (l treeLogger) Warn(msg string, keyVals ...any) {
	l.Logger.Info(msg, append(keyVals, "level", "warn")...)
}

func (l treeLogger) With(keyVals ...any) cosmoslog.Logger {
	return treeLogger{Logger: l.Logger.With(keyVals...)}
}

func (l treeLogger) Impl() any {
	return l.Logger
}
