package appmix

const (
	propApplicationName      = "application.name"
	propApplicationID        = "application.id"
	propApplicationProcessID = "application.process.id"

	// UnknownName is the display name of a stream that carries no usable name property
	UnknownName = "Unknown"
)

// DisplayName picks a human-readable label from a stream's property bag:
// the application name, then the application id, then UnknownName.
func DisplayName(props map[string]string) string {
	for _, key := range []string{propApplicationName, propApplicationID} {
		if name := props[key]; name != "" {
			return name
		}
	}

	return UnknownName
}
