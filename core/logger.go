package core

// Logger is any service that can report application events.
// args may hold errors, maps of extra data or a LogUser.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogUser identifies the staff member behind a logged event.
type LogUser struct {
	ID       string
	Username string
	Email    string
}
