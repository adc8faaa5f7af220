package flights

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Domenick1991/claimjet/internal/domain"
	"github.com/Domenick1991/claimjet/internal/llm"
)

const (
	defaultAirline = "Unknown Airline"
)

// FlightSchema is the shape the extraction phase must return.
var FlightSchema = llm.Schema{
	Name: "FlightDetails",
	Fields: []llm.Field{
		{Name: "airline", Type: llm.FieldString, Required: true},
		{Name: "departure", Type: llm.FieldString, Required: true},
		{Name: "arrival", Type: llm.FieldString, Required: true},
		{
			Name:     "status",
			Type:     llm.FieldString,
			Enum:     []string{string(domain.FlightStatusOnTime), string(domain.FlightStatusDelayed), string(domain.FlightStatusCancelled)},
			Required: true,
		},
		{Name: "delayDurationMinutes", Type: llm.FieldInteger, Required: true},
		{Name: "distanceKm", Type: llm.FieldInteger, Required: true},
		{Name: "scheduledDepartureTime", Type: llm.FieldString, Description: "Format HH:MM"},
		{Name: "scheduledArrivalTime", Type: llm.FieldString, Description: "Format HH:MM"},
		{Name: "delayReason", Type: llm.FieldString, Description: "Reason or 'Unknown'"},
	},
}

var errNotObject = errors.New("extraction payload is not a JSON object")

// normalize maps the extraction payload onto a FlightRecord. Missing or
// mistyped fields take their defaults; only a payload that is not a JSON
// object at all is an error. An empty payload counts as {}.
func normalize(raw []byte, flightNumber, date string) (domain.FlightRecord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.FlightRecord{}, fmt.Errorf("decode extraction: %w", err)
	}
	if data == nil {
		return domain.FlightRecord{}, errNotObject
	}

	status := domain.FlightStatus(strings.ToUpper(stringField(data, "status")))
	if !status.Valid() {
		status = domain.FlightStatusOnTime
	}

	return domain.FlightRecord{
		FlightNumber:           strings.ToUpper(strings.TrimSpace(flightNumber)),
		Date:                   date,
		Airline:                orDefault(stringField(data, "airline"), defaultAirline),
		Departure:              orDefault(stringField(data, "departure"), domain.UnknownValue),
		Arrival:                orDefault(stringField(data, "arrival"), domain.UnknownValue),
		Status:                 status,
		DelayDurationMinutes:   intField(data, "delayDurationMinutes"),
		DistanceKm:             intField(data, "distanceKm"),
		ScheduledDepartureTime: stringField(data, "scheduledDepartureTime"),
		ScheduledArrivalTime:   stringField(data, "scheduledArrivalTime"),
		DelayReason:            stringField(data, "delayReason"),
	}, nil
}

func stringField(data map[string]json.RawMessage, key string) string {
	v, ok := data[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// intField accepts JSON numbers and numeric strings; anything else, and any
// negative value, is 0.
func intField(data map[string]json.RawMessage, key string) int {
	v, ok := data[key]
	if !ok {
		return 0
	}

	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
	}
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
