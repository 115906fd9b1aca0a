package types

// SupportRecord holds emergency contact numbers for a place.
type SupportRecord struct {
	Ambulance string `json:"ambulance"`
	Police    string `json:"police"`
	General   string `json:"general"`
	Notes     string `json:"notes,omitempty"`
}
