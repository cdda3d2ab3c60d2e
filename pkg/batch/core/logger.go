package core

// Logger is the logging capability inner packages depend on, keeping them
// decoupled from the concrete logging library.
type Logger interface {
	Info() LogEvent
	Debug() LogEvent
	Warn() LogEvent
	Error() LogEvent
	Trace() LogEvent
}

// LogEvent builds one structured log line.
type LogEvent interface {
	Str(key, val string) LogEvent
	Int(key string, val int) LogEvent
	Err(err error) LogEvent
	Bool(key string, val bool) LogEvent
	Dur(key string, val interface{}) LogEvent
	Interface(key string, val interface{}) LogEvent
	Msg(msg string)
}

// NopLogger discards everything. Used when a caller passes a nil logger.
type NopLogger struct{}

func (NopLogger) Info() LogEvent { return nopEvent{} }
func (NopLogger) Debug() LogEvent { return nopEvent{} }
func (NopLogger) Warn() LogEvent { return nopEvent{} }
func (NopLogger) Error() LogEvent { return nopEvent{} }
func (NopLogger) Trace() LogEvent { return nopEvent{} }

type nopEvent struct{}

func (e nopEvent) Str(string, string) LogEvent { return e }
func (e nopEvent) Int(string, int) LogEvent { return e }
func (e nopEvent) Err(error) LogEvent { return e }
func (e nopEvent) Bool(string, bool) LogEvent { return e }
func (e nopEvent) Dur(string, interface{}) LogEvent { return e }
func (e nopEvent) Interface(string, interface{}) LogEvent { return e }
func (e nopEvent) Msg(string) {}
