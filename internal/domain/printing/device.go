package printing

// Device is a named print destination known to the print subsystem
type Device struct {
	Name    string `json:"name"`
	Default bool   `json:"default"`
}
