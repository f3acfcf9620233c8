package logger

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx/fxevent"
)

type fxLogger struct {
	l zerolog.Logger
}

var _ fxevent.Logger = (*fxLogger)(nil)

func Fx() fxevent.Logger {
	return &fxLogger{
		l: log.Logger.
			With().
			Str("evt.name", "fx.init").
			Logger(),
	}
}

func (l *fxLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			l.l.Error().Err(e.Err).Str("callee", e.FunctionName).Str("caller", e.CallerName).Msg("OnStart hook failed")
			return
		}
		l.l.Debug().Str("callee", e.FunctionName).Str("runtime", e.Runtime.String()).Msg("OnStart hook executed")
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			l.l.Error().Err(e.Err).Str("callee", e.FunctionName).Msg("OnStop hook failed")
			return
		}
		l.l.Debug().Str("callee", e.FunctionName).Str("runtime", e.Runtime.String()).Msg("OnStop hook executed")
	case *fxevent.Provided:
		if e.Err != nil {
			l.l.Error().Err(e.Err).Str("constructor", e.ConstructorName).Msg("error encountered while applying options")
			return
		}
		l.l.Trace().Str("constructor", e.ConstructorName).Str("types", strings.Join(e.OutputTypeNames, ", ")).Str("module", e.ModuleName).Msg("provided")
	case *fxevent.Invoked:
		if e.Err != nil {
			l.l.Error().Err(e.Err).Str("function", e.FunctionName).Str("stack", e.Trace).Msg("invoke failed")
			return
		}
		l.l.Trace().Str("function", e.FunctionName).Str("module", e.ModuleName).Msg("invoked")
	case *fxevent.Started:
		if e.Err != nil {
			l.l.Error().Err(e.Err).Msg("start failed")
			return
		}
		l.l.Info().Msg("started")
	case *fxevent.Stopped:
		if e.Err != nil {
			l.l.Error().Err(e.Err).Msg("stop failed")
			return
		}
		l.l.Info().Msg("stopped")
	case *fxevent.RollingBack:
		l.l.Error().Err(e.StartErr).Msg("start failed, rolling back")
	}
}
