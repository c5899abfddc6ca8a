package model

// AllLabelsID is the selection value that means "no label filter".
// The server treats it as a search across every labelled message.
const AllLabelsID = "0"

// Label is a mail label as reported by the download server.
type Label struct {
	// ID is the server's opaque identifier for the label.
	ID string `json:"id"`

	// Name is the display name shown in the picker.
	Name string `json:"name"`
}

// LabelName returns the display name for a selection value. The sentinel
// maps to "All mail"; unknown ids fall back to the id itself.
func LabelName(labels []Label, id string) string {
	if id == AllLabelsID || id == "" {
		return "All mail"
	}
	for _, l := range labels {
		if l.ID == id {
			return l.Name
		}
	}
	return id
}
