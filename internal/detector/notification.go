package detector

// NotificationType is the canonical, high-level change kind the detector
// emits to its subscriber (§6 "Events to subscribers"). It mirrors
// history.EventType plus the Idle quiescence signal, which has no
// corresponding File Event.
type NotificationType string

// Notification types published by the detector.
const (
	Created NotificationType = "created"
	Changed NotificationType = "changed"
	Renamed NotificationType = "renamed"
	Deleted NotificationType = "deleted"
	Idle    NotificationType = "idle"
)

// Notification is one canonical, debounced change, timestamped with a
// strictly increasing `when` (§4.C5). OldName is set only for Renamed.
type Notification struct {
	Type        NotificationType
	Name        string
	OldName     string
	IsDirectory bool
	SHA1        string
	Size        int64
	When        int64
}
