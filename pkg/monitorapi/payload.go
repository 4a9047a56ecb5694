package monitorapi

import (
	"github.com/openfroyo/monitor-provider/pkg/model"
)

// MonitorPayload is the control-plane wire representation of a monitor.
type MonitorPayload struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	URI          string   `json:"uri"`
	Type         string   `json:"type"`
	Frequency    *int     `json:"frequency,omitempty"`
	Status       string   `json:"status"`
	Locations    []string `json:"locations"`
	SLAThreshold *float64 `json:"slaThreshold,omitempty"`
}

// PayloadFromModel builds the request body for a monitor. The API key is
// never part of the body.
func PayloadFromModel(m model.Monitor) MonitorPayload {
	m = m.Clone()
	return MonitorPayload{
		ID:           m.ID,
		Name:         m.Name,
		URI:          m.URI,
		Type:         m.Kind,
		Frequency:    m.Frequency,
		Status:       m.Status,
		Locations:    m.Locations,
		SLAThreshold: m.SLAThreshold,
	}
}

// Model converts the payload into a resource state value.
func (p MonitorPayload) Model() model.Monitor {
	return model.Monitor{
		ID:           p.ID,
		Name:         p.Name,
		URI:          p.URI,
		Kind:         p.Type,
		Frequency:    p.Frequency,
		Status:       p.Status,
		Locations:    p.Locations,
		SLAThreshold: p.SLAThreshold,
	}.Clone()
}
