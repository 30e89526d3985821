package relay

import "github.com/goodmartian/beacon/internal/mesh"

// Outbound composition. One method per kind, each building a message
// with the kind's defaults (hop budget overridable from config) and
// handing it to the self-originated path. A device's own messages go
// through the same ledger as relayed ones: its SOS will be heard back
// from neighbours, and without the record step the origin would re-relay
// its own flood indefinitely.

// SendSOS composes and originates an SOS with the device's position.
func (e *Engine) SendSOS(lat, lon float64, note string) (mesh.Message, error) {
	return e.send(mesh.NewSOS(e.self, e.selfName, lat, lon, note))
}

// SendMedical composes and originates a medical-status message.
func (e *Engine) SendMedical(status mesh.MedicalStatus, detail string) (mesh.Message, error) {
	return e.send(mesh.NewMedical(e.self, e.selfName, status, detail))
}

// SendText composes and originates a free-text message.
func (e *Engine) SendText(text string) (mesh.Message, error) {
	return e.send(mesh.NewText(e.self, e.selfName, text))
}

// SendLocation composes and originates a position report.
func (e *Engine) SendLocation(lat, lon float64) (mesh.Message, error) {
	return e.send(mesh.NewLocation(e.self, e.selfName, lat, lon))
}

// SendBattery composes and originates a battery-level report.
func (e *Engine) SendBattery(percent uint8) (mesh.Message, error) {
	return e.send(mesh.NewBattery(e.self, e.selfName, percent))
}

// SendPing composes and originates a liveness probe.
func (e *Engine) SendPing() (mesh.Message, error) {
	return e.send(mesh.NewPing(e.self, e.selfName))
}

// SendHazard composes and originates a hazard advisory.
func (e *Engine) SendHazard(category string, severity uint8, lat, lon float64) (mesh.Message, error) {
	return e.send(mesh.NewHazard(e.self, e.selfName, category, severity, lat, lon))
}

func (e *Engine) send(m mesh.Message) (mesh.Message, error) {
	if budget, ok := e.hopBudgets[m.Kind]; ok {
		m = m.WithHopBudget(budget)
	}
	if err := e.Originate(m); err != nil {
		return mesh.Message{}, err
	}
	return m, nil
}
