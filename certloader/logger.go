package certloader

// Logger interface used to log information
type Logger interface {
	Printf(format string, v ...interface{})
}
