package bot

import "go.uber.org/zap"

// Notifier pushes user-facing progress messages. The live binary wires the
// Telegram service here; backtests use LogNotifier.
type Notifier interface {
	Notify(text string)
	Notifyf(format string, args ...interface{})
}

// LogNotifier writes notifications to the log instead of a chat.
type LogNotifier struct {
	Logger *zap.SugaredLogger
}

func (n *LogNotifier) Notify(text string) {
	n.Logger.Info(text)
}

func (n *LogNotifier) Notifyf(format string, args ...interface{}) {
	n.Logger.Infof(format, args...)
}
