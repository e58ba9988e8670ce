package whatsapp

import (
	"github.com/sirupsen/logrus"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// logger routes whatsmeow's logging into logrus.
type logger struct {
	entry *logrus.Entry
}

func newLogger(module string) waLog.Logger {
	return logger{entry: logrus.WithField("module", module)}
}

func (l logger) Debugf(msg string, args ...interface{}) { l.entry.Debugf(msg, args...) }
func (l logger) Infof(msg string, args ...interface{})  { l.entry.Infof(msg, args...) }
func (l logger) Warnf(msg string, args ...interface{})  { l.entry.Warnf(msg, args...) }
func (l logger) Errorf(msg string, args ...interface{}) { l.entry.Errorf(msg, args...) }

func (l logger) Sub(module string) waLog.Logger {
	if parent, ok := l.entry.Data["module"].(string); ok {
		module = parent + "/" + module
	}
	return logger{entry: l.entry.WithField("module", module)}
}
