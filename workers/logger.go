package workers

// LogFunc receives one line per worker pass
type LogFunc func(source, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(source, message string) {}
