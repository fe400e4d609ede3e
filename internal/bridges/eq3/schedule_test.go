package eq3

import (
	"encoding/hex"
	"errors"
	"reflect"
	"testing"
)

func TestDecodeSchedule(t *testing.T) {
	// Monday: 17C until 06:00, 21C until 08:00, 17C until 24:00
	data := mustHex(t, "210222242a302290")

	got, err := DecodeSchedule(data)
	if err != nil {
		t.Fatalf("DecodeSchedule() error = %v", err)
	}

	want := ScheduleDay{
		Day:             Monday,
		BaseTemperature: 17.0,
		NextChangeAt:    ScheduleTime{Hour: 6},
		Periods: []SchedulePeriod{
			{Temperature: 21.0, NextChangeAt: ScheduleTime{Hour: 8}},
			{Temperature: 17.0, NextChangeAt: EndOfDay},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeSchedule() = %+v, want %+v", got, want)
	}
}

func TestDecodeSchedule_AcceptsQueryEcho(t *testing.T) {
	got, err := DecodeSchedule(mustHex(t, "20002290"))
	if err != nil {
		t.Fatalf("DecodeSchedule() error = %v", err)
	}
	if got.Day != Saturday || !got.NextChangeAt.IsEndOfDay() || len(got.Periods) != 0 {
		t.Errorf("DecodeSchedule() = %+v", got)
	}
}

func TestDecodeSchedule_DanglingByteIgnored(t *testing.T) {
	got, err := DecodeSchedule(mustHex(t, "210322242a9022"))
	if err != nil {
		t.Fatalf("DecodeSchedule() error = %v", err)
	}
	if len(got.Periods) != 1 {
		t.Errorf("Periods = %d, want 1", len(got.Periods))
	}
}

func TestDecodeSchedule_Malformed(t *testing.T) {
	tests := []struct {
		name string
		hex  string
	}{
		{"too short", "210222"},
		{"wrong tag", "22022224"},
		{"bad day", "21072224"},
		{"bad first time", "21022291"},
		{"bad period time", "210222242a91"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeSchedule(mustHex(t, tt.hex)); !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("DecodeSchedule(%s) error = %v, want ErrMalformedPayload", tt.hex, err)
			}
		})
	}
}

func TestEncodeSchedule(t *testing.T) {
	sched := ScheduleDay{
		Day:             Friday,
		BaseTemperature: 17.0,
		NextChangeAt:    ScheduleTime{Hour: 6, Minute: 30},
		Periods: []SchedulePeriod{
			{Temperature: 21.0, NextChangeAt: ScheduleTime{Hour: 22}},
			{Temperature: 17.0, NextChangeAt: EndOfDay},
		},
	}

	got, err := EncodeSchedule(sched)
	if err != nil {
		t.Fatalf("EncodeSchedule() error = %v", err)
	}
	if want := "210622272a842290"; hex.EncodeToString(got) != want {
		t.Errorf("EncodeSchedule() = %x, want %s", got, want)
	}

	back, err := DecodeSchedule(got)
	if err != nil {
		t.Fatalf("DecodeSchedule() error = %v", err)
	}
	if !reflect.DeepEqual(back, sched) {
		t.Errorf("DecodeSchedule(EncodeSchedule()) = %+v, want %+v", back, sched)
	}

	if _, err := EncodeSchedule(ScheduleDay{Day: 7}); !errors.Is(err, ErrInvalidDay) {
		t.Errorf("EncodeSchedule(day 7) error = %v, want ErrInvalidDay", err)
	}
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in      string
		want    Weekday
		wantErr bool
	}{
		{"sat", Saturday, false},
		{"MON", Monday, false},
		{"6", Friday, false},
		{"0", Saturday, false},
		{"7", 0, true},
		{"monday", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseWeekday(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidDay) {
				t.Errorf("ParseWeekday(%q) error = %v, want ErrInvalidDay", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseWeekday(%q) = %s, %v, want %s", tt.in, got, err, tt.want)
		}
	}
}

func TestScheduleDay_Intervals(t *testing.T) {
	sched := ScheduleDay{
		BaseTemperature: 17.0,
		NextChangeAt:    ScheduleTime{Hour: 6},
		Periods: []SchedulePeriod{
			{Temperature: 21.0, NextChangeAt: ScheduleTime{Hour: 22}},
			{Temperature: 17.0, NextChangeAt: EndOfDay},
			{Temperature: 4.5, NextChangeAt: EndOfDay},
		},
	}

	var got []string
	for _, iv := range sched.Intervals() {
		got = append(got, iv.String())
	}
	want := []string{"[00:00-06:00] 17.0", "[06:00-22:00] 21.0", "[22:00-24:00] 17.0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Intervals() = %v, want %v", got, want)
	}
}
