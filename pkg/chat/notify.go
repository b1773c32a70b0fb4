package chat

// Notifier surfaces transient, toast-style feedback to the user. Every error
// in the chat flow is converted to a notification at the boundary of the
// component that raised it; none propagate unhandled. Implementations must
// not block and may fail silently (a blocked audio cue must never abort
// message handling).
type Notifier interface {
	Success(msg string)
	Error(msg string)
	// Cue plays an incoming-message cue for messages authored by the other
	// party.
	Cue()
}

// NopNotifier drops all notifications.
type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string)   {}
func (NopNotifier) Cue()           {}
