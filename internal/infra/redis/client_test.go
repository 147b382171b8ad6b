package redis

import "testing"

func TestKeys(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{lockKey("weather_history", 102), "weatherload:lock:weather_history:102"},
		{progressKey("weather_forecast", 104), "weatherload:progress:weather_forecast:104"},
		{failedLoadKey("abc"), "weatherload:failed:abc"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
