package logger

import (
	"os"

	"go.uber.org/zap"
)

// Log 默认空实现,进程入口调用 Init 替换为真实 logger
var Log = zap.NewNop().Sugar()

func Init() {
	var base *zap.Logger
	var err error
	if os.Getenv("PARTYROOM_DEV") != "" {
		base, err = zap.NewDevelopment()
	} else {
		base, err = zap.NewProduction()
	}
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = base.Sugar()
}

// Sync flushes buffered log entries; call on shutdown.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
