package types

import (
	"testing"
	"time"

	"weatherapi-server/internal/apperr"
)

const fullReading = `{"deviceName":"woombye","precipitation":0.2,"atmosphericPressure":1011,
"latitude":-26.66,"longitude":152.97,"temperature":24.1,"time":"2021-05-01T06:00:00Z",
"humidity":55,"maxWindSpeed":6.1,"solarRadiation":620,"vaporPressure":1.9,"windDirection":270}`

func TestDecodeReadings(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{"single object", fullReading, 1, false},
		{"array", "[" + fullReading + "," + fullReading + "]", 2, false},
		{"empty array", "[]", 0, true},
		{"empty body", "  ", 0, true},
		{"malformed", `{"deviceName":`, 0, true},
		{"wrong type", `{"temperature":"hot"}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeReadings([]byte(tt.body))
			if tt.wantErr {
				if apperr.KindOf(err) != apperr.KindInvalidInput {
					t.Fatalf("err = %v; want invalid_input", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeReadings: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d; want %d", len(got), tt.want)
			}
		})
	}
}

func TestReadingInput_Reading(t *testing.T) {
	inputs, err := DecodeReadings([]byte(fullReading))
	if err != nil {
		t.Fatalf("DecodeReadings: %v", err)
	}
	r, err := inputs[0].Reading("")
	if err != nil {
		t.Fatalf("Reading: %v", err)
	}
	if r.DeviceName != "woombye" || r.Temperature != 24.1 || r.WindDirection != 270 {
		t.Errorf("reading = %+v", r)
	}
	if want := time.Date(2021, 5, 1, 6, 0, 0, 0, time.UTC); !r.Time.Equal(want) {
		t.Errorf("time = %v; want %v", r.Time, want)
	}

	t.Run("zero values are present values", func(t *testing.T) {
		zero := 0.0
		in := inputs[0]
		in.Precipitation = &zero
		if _, err := in.Reading(""); err != nil {
			t.Errorf("zero precipitation rejected: %v", err)
		}
	})

	t.Run("missing fields listed", func(t *testing.T) {
		in := inputs[0]
		in.Humidity = nil
		in.Time = nil
		_, err := in.Reading("")
		e, ok := err.(*apperr.Error)
		if !ok || e.Message != "missing required fields: humidity, time" {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("default device", func(t *testing.T) {
		in := inputs[0]
		in.DeviceName = nil
		got, err := in.Reading("nambour")
		if err != nil || got.DeviceName != "nambour" {
			t.Errorf("Reading = %+v, %v", got, err)
		}
		if _, err := in.Reading(""); apperr.KindOf(err) != apperr.KindInvalidInput {
			t.Errorf("no device: err = %v", err)
		}
	})

	t.Run("bad time", func(t *testing.T) {
		in := inputs[0]
		bad := "last tuesday"
		in.Time = &bad
		if _, err := in.Reading(""); apperr.KindOf(err) != apperr.KindInvalidInput {
			t.Errorf("err = %v", err)
		}
	})
}

func TestValidateAll_PrefixesIndex(t *testing.T) {
	inputs, err := DecodeReadings([]byte("[" + fullReading + `,{"deviceName":"x"}]`))
	if err != nil {
		t.Fatalf("DecodeReadings: %v", err)
	}
	_, err = ValidateAll(inputs, "")
	e, ok := err.(*apperr.Error)
	if !ok || e.Kind != apperr.KindInvalidInput {
		t.Fatalf("err = %v", err)
	}
	if want := "reading 1: "; len(e.Message) < len(want) || e.Message[:len(want)] != want {
		t.Errorf("message = %q; want prefix %q", e.Message, want)
	}
}
