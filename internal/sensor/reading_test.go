package sensor

import (
	"encoding/json"
	"testing"
	"time"
)

func TestReadingUnmarshal(t *testing.T) {
	local, err := time.ParseInLocation(BackendTimeLayout, "2025-06-01 12:30:00", time.Local)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		input   string
		want    Reading
		wantErr bool
	}{
		{
			name:  "integer seconds",
			input: `{"temperature": 24.5, "humidity": 61, "timestamp": 1748781000}`,
			want:  Reading{Temperature: 24.5, Humidity: 61, Timestamp: 1748781000},
		},
		{
			name:  "float seconds",
			input: `{"temperature": 24, "humidity": 60.2, "timestamp": 1748781000.75}`,
			want:  Reading{Temperature: 24, Humidity: 60.2, Timestamp: 1748781000},
		},
		{
			name:  "backend string",
			input: `{"success": true, "temperature": 21.3, "humidity": 55.1, "timestamp": "2025-06-01 12:30:00"}`,
			want:  Reading{Temperature: 21.3, Humidity: 55.1, Timestamp: local.Unix()},
		},
		{
			name:  "numeric string",
			input: `{"temperature": 1, "humidity": 2, "timestamp": "1748781000"}`,
			want:  Reading{Temperature: 1, Humidity: 2, Timestamp: 1748781000},
		},
		{name: "missing humidity", input: `{"temperature": 20, "timestamp": 1}`, wantErr: true},
		{name: "missing timestamp", input: `{"temperature": 20, "humidity": 40}`, wantErr: true},
		{name: "garbage timestamp", input: `{"temperature": 20, "humidity": 40, "timestamp": "yesterday"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Reading
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReadingAge(t *testing.T) {
	r := Reading{Timestamp: 1000}
	now := time.Unix(1045, 0)

	if got := r.Age(now); got != 45*time.Second {
		t.Errorf("Age = %v, want 45s", got)
	}
	if got := r.Age(time.Unix(900, 0)); got != 0 {
		t.Errorf("future sample Age = %v, want 0", got)
	}
}

func TestBreaches(t *testing.T) {
	tests := []struct {
		name string
		r    Reading
		want []Breach
	}{
		{"normal", Reading{Temperature: 22, Humidity: 50}, nil},
		{"at limits", Reading{Temperature: 35, Humidity: 80}, nil},
		{"hot", Reading{Temperature: 35.1, Humidity: 50}, []Breach{HighTemperature}},
		{"freezing", Reading{Temperature: -0.5, Humidity: 50}, []Breach{LowTemperature}},
		{"hot and humid", Reading{Temperature: 40, Humidity: 92}, []Breach{HighTemperature, HighHumidity}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultThresholds.Breaches(tt.r)
			if len(got) != len(tt.want) {
				t.Fatalf("Breaches = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Breaches[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
