package cli

import (
	"testing"
	"time"
)

func TestHistoryRange(t *testing.T) {
	now := time.Date(2017, 3, 15, 9, 30, 0, 0, time.UTC)
	day := func(s string) time.Time {
		d, _ := time.Parse(time.DateOnly, s)
		return d
	}

	tests := []struct {
		name       string
		start, end string
		wantStart  time.Time
		wantEnd    time.Time
		wantErr    bool
	}{
		{"defaults to yesterday", "", "", day("2017-03-14"), day("2017-03-15"), false},
		{"explicit range", "20170301", "20170305", day("2017-03-01"), day("2017-03-05"), false},
		{"single day", "20170301", "20170301", day("2017-03-01"), day("2017-03-01"), false},
		{"start only", "20170310", "", day("2017-03-10"), day("2017-03-15"), false},
		{"bad start", "2017/03/10", "", time.Time{}, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			historyStart, historyEnd = tt.start, tt.end
			defer func() { historyStart, historyEnd = "", "" }()

			start, end, err := historyRange(now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("historyRange error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !start.Equal(tt.wantStart) || !end.Equal(tt.wantEnd) {
				t.Errorf("historyRange = %v..%v, want %v..%v", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
