package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxEventLogger routes fx lifecycle events into the package logger.
// Container wiring is logged at DEBUG; hook and start failures at ERROR.
type FxEventLogger struct{}

// NewFxEventLogger returns the fxevent.Logger used by fx.WithLogger.
func NewFxEventLogger() fxevent.Logger {
	return &FxEventLogger{}
}

// LogEvent implements fxevent.Logger.
func (l *FxEventLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			Errorf("OnStart hook %s failed after %s: %v", hookName(e.FunctionName), e.Runtime, e.Err)
			return
		}
		Debugf("OnStart hook %s done in %s", hookName(e.FunctionName), e.Runtime)
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			Errorf("OnStop hook %s failed after %s: %v", hookName(e.FunctionName), e.Runtime, e.Err)
			return
		}
		Debugf("OnStop hook %s done in %s", hookName(e.FunctionName), e.Runtime)
	case *fxevent.Provided:
		if e.Err != nil {
			Errorf("Provide %s failed: %v", e.ConstructorName, e.Err)
			return
		}
		for _, t := range e.OutputTypeNames {
			Debugf("Provided: %s", t)
		}
	case *fxevent.Supplied:
		if e.Err != nil {
			Errorf("Supply %s failed: %v", e.TypeName, e.Err)
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			Errorf("Invoke %s failed: %v", e.FunctionName, e.Err)
		}
	case *fxevent.Stopping:
		Infof("Received %s, stopping.", strings.ToUpper(e.Signal.String()))
	case *fxevent.Stopped:
		if e.Err != nil {
			Errorf("Stop failed: %v", e.Err)
		}
	case *fxevent.RollingBack:
		Errorf("Start failed, rolling back: %v", e.StartErr)
	case *fxevent.RolledBack:
		if e.Err != nil {
			Errorf("Rollback failed: %v", e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("Start failed: %v", e.Err)
			return
		}
		Debugf("Application started.")
	}
}

// hookName strips the anonymous function suffix (".func1") fx reports for closures.
func hookName(funcName string) string {
	if idx := strings.LastIndex(funcName, ".func"); idx != -1 {
		return funcName[:idx]
	}
	return funcName
}
