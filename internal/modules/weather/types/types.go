package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"weatherapi-server/internal/apperr"
	"weatherapi-server/internal/utils"
)

// Reading is one sensor report from a weather station.
type Reading struct {
	ID                  string    `json:"id"`
	DeviceName          string    `json:"deviceName"`
	Precipitation       float64   `json:"precipitation"`
	AtmosphericPressure float64   `json:"atmosphericPressure"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	Temperature         float64   `json:"temperature"`
	Time                time.Time `json:"time"`
	Humidity            float64   `json:"humidity"`
	MaxWindSpeed        float64   `json:"maxWindSpeed"`
	SolarRadiation      float64   `json:"solarRadiation"`
	VaporPressure       float64   `json:"vaporPressure"`
	WindDirection       float64   `json:"windDirection"`
}

// ReadingInput is a reading as received from a client. Nil fields were absent.
type ReadingInput struct {
	DeviceName          *string  `json:"deviceName"`
	Precipitation       *float64 `json:"precipitation"`
	AtmosphericPressure *float64 `json:"atmosphericPressure"`
	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	Temperature         *float64 `json:"temperature"`
	Time                *string  `json:"time"`
	Humidity            *float64 `json:"humidity"`
	MaxWindSpeed        *float64 `json:"maxWindSpeed"`
	SolarRadiation      *float64 `json:"solarRadiation"`
	VaporPressure       *float64 `json:"vaporPressure"`
	WindDirection       *float64 `json:"windDirection"`
}

// Reading validates the input. An absent deviceName takes defaultDevice when
// it is non-empty.
func (in ReadingInput) Reading(defaultDevice string) (Reading, error) {
	var missing []string
	num := func(name string, v *float64) float64 {
		if v == nil {
			missing = append(missing, name)
			return 0
		}
		return *v
	}

	r := Reading{
		Precipitation:       num("precipitation", in.Precipitation),
		AtmosphericPressure: num("atmosphericPressure", in.AtmosphericPressure),
		Latitude:            num("latitude", in.Latitude),
		Longitude:           num("longitude", in.Longitude),
		Temperature:         num("temperature", in.Temperature),
		Humidity:            num("humidity", in.Humidity),
		MaxWindSpeed:        num("maxWindSpeed", in.MaxWindSpeed),
		SolarRadiation:      num("solarRadiation", in.SolarRadiation),
		VaporPressure:       num("vaporPressure", in.VaporPressure),
		WindDirection:       num("windDirection", in.WindDirection),
	}

	switch {
	case in.DeviceName != nil && strings.TrimSpace(*in.DeviceName) != "":
		r.DeviceName = strings.TrimSpace(*in.DeviceName)
	case defaultDevice != "":
		r.DeviceName = defaultDevice
	default:
		missing = append([]string{"deviceName"}, missing...)
	}

	if in.Time == nil || strings.TrimSpace(*in.Time) == "" {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return Reading{}, apperr.InvalidInput("missing required fields: %s", strings.Join(missing, ", "))
	}
	t, err := utils.ParseDate(*in.Time)
	if err != nil {
		return Reading{}, apperr.InvalidInput("time must be a date (YYYY-MM-DD or RFC 3339)")
	}
	r.Time = t
	return r, nil
}

// DecodeReadings accepts one reading object or a non-empty array of them.
func DecodeReadings(data []byte) ([]ReadingInput, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, apperr.InvalidInput("request body is required")
	}
	var out []ReadingInput
	if data[0] == '[' {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, apperr.InvalidInput("invalid JSON body: %v", err)
		}
		if len(out) == 0 {
			return nil, apperr.InvalidInput("at least one reading is required")
		}
		return out, nil
	}
	var one ReadingInput
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, apperr.InvalidInput("invalid JSON body: %v", err)
	}
	return append(out, one), nil
}

// ValidateAll converts every input, prefixing errors with the reading index
// when there is more than one.
func ValidateAll(inputs []ReadingInput, defaultDevice string) ([]Reading, error) {
	out := make([]Reading, 0, len(inputs))
	for i, in := range inputs {
		r, err := in.Reading(defaultDevice)
		if err != nil {
			if len(inputs) > 1 {
				return nil, apperr.InvalidInput("reading %d: %s", i, messageOf(err))
			}
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func messageOf(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

type MaxPrecipitation struct {
	DeviceName       string    `json:"deviceName"`
	MaxPrecipitation float64   `json:"maxPrecipitation"`
	Time             time.Time `json:"time"`
}

type ReadingSnapshot struct {
	Temperature         float64 `json:"temperature"`
	AtmosphericPressure float64 `json:"atmosphericPressure"`
	SolarRadiation      float64 `json:"solarRadiation"`
	Precipitation       float64 `json:"precipitation"`
}

type MaxTemperature struct {
	DeviceName     string  `json:"deviceName"`
	MaxTemperature float64 `json:"maxTemperature"`
}

type PrecipitationPatch struct {
	Precipitation *float64 `json:"precipitation"`
}
