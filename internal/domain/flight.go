package domain

type FlightStatus string

const (
	FlightStatusOnTime    FlightStatus = "ON_TIME"
	FlightStatusDelayed   FlightStatus = "DELAYED"
	FlightStatusCancelled FlightStatus = "CANCELLED"
)

// UnknownValue is the placeholder for facts the lookup could not establish.
const UnknownValue = "Unknown"

func (s FlightStatus) Valid() bool {
	switch s {
	case FlightStatusOnTime, FlightStatusDelayed, FlightStatusCancelled:
		return true
	}
	return false
}

// FlightRecord is the normalized view of one flight instance.
// For CANCELLED flights DelayDurationMinutes may be anything, including values
// below the delay threshold.
type FlightRecord struct {
	FlightNumber           string       `json:"flight_number"`
	Date                   string       `json:"date"`
	Airline                string       `json:"airline"`
	Departure              string       `json:"departure"`
	Arrival                string       `json:"arrival"`
	Status                 FlightStatus `json:"status"`
	DelayDurationMinutes   int          `json:"delay_duration_minutes"`
	DistanceKm             int          `json:"distance_km"`
	ScheduledDepartureTime string       `json:"scheduled_departure_time,omitempty"`
	ScheduledArrivalTime   string       `json:"scheduled_arrival_time,omitempty"`
	DelayReason            string       `json:"delay_reason,omitempty"`

	// LookupFailed marks the fallback record produced when the status check
	// could not be completed. All other fields still hold the fallback values.
	LookupFailed bool `json:"lookup_failed"`
}

// HasKnownDelayReason reports whether a reason worth arguing against was found.
func (f FlightRecord) HasKnownDelayReason() bool {
	return f.DelayReason != "" && f.DelayReason != UnknownValue
}
