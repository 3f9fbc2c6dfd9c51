package core

// TelemetryTable is the dashboard surface the scheduler and subsystems
// publish to. dashboard.Table satisfies it; so does any table that can
// hold strings and float64 slices.
type TelemetryTable interface {
	SetString(key, value string)
	SetStringArray(key string, values []string)
	SetNumberArray(key string, values []float64)
	NumberArray(key string) []float64
}

// Telemetry keys the scheduler maintains. Names and Ids are parallel
// arrays describing the running set; Cancel is written by the dashboard
// side and drained by the scheduler every publish.
const (
	NamesKey  = "Names"
	IdsKey    = "Ids"
	CancelKey = "Cancel"
)

// BindTelemetry attaches the table the scheduler publishes to. The
// running list is republished on the first tick after binding.
func (s *Scheduler) BindTelemetry(t TelemetryTable) {
	s.telemetry = t
}

// publishTelemetry is the final tick phase: apply dashboard-requested
// cancels, then republish the running list if it changed.
func (s *Scheduler) publishTelemetry() {
	if s.telemetry == nil {
		return
	}

	// Cancels requested through the table land here, in the same tick
	// they are observed, before the list is republished.
	if toCancel := s.telemetry.NumberArray(CancelKey); len(toCancel) > 0 {
		snapshot := append([]Command(nil), s.running...)
		for _, cmd := range snapshot {
			for _, id := range toCancel {
				if float64(cmd.ID()) == id {
					cmd.Cancel()
					s.remove(cmd)
					break
				}
			}
		}
		s.telemetry.SetNumberArray(CancelKey, nil)
	}

	if !s.runningChanged {
		return
	}
	s.runningChanged = false

	names := make([]string, 0, len(s.running))
	ids := make([]float64, 0, len(s.running))
	for _, cmd := range s.running {
		names = append(names, cmd.Name())
		ids = append(ids, float64(cmd.ID()))
	}
	s.telemetry.SetStringArray(NamesKey, names)
	s.telemetry.SetNumberArray(IdsKey, ids)
}
