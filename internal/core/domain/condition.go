package domain

// Sky condition codes stored in the sky/sky_state columns.
const (
	SkyOther         = 0
	SkyClear         = 1
	SkyPartlyCloudy  = 2
	SkyCloudy        = 3
	SkyPrecipitation = 4
)

// conditionCodes maps provider condition labels to sky codes.
var conditionCodes = map[string]int{
	"Clear":        SkyClear,
	"Haze":         SkyClear,
	"Mostly Sunny": SkyClear,
	"Sunny":        SkyClear,

	"Scattered Clouds": SkyPartlyCloudy,
	"Partly Sunny":     SkyPartlyCloudy,
	"Partly Cloudy":    SkyPartlyCloudy,

	"Overcast":      SkyCloudy,
	"Cloudy":        SkyCloudy,
	"Mostly Cloudy": SkyCloudy,

	"Chance of Flurries":       SkyPrecipitation,
	"Chance of Rain":           SkyPrecipitation,
	"Chance Rain":              SkyPrecipitation,
	"Chance of Freezing Rain":  SkyPrecipitation,
	"Chance of Sleet":          SkyPrecipitation,
	"Chance of Snow":           SkyPrecipitation,
	"Chance of Thunderstorms":  SkyPrecipitation,
	"Chance of a Thunderstorm": SkyPrecipitation,
	"Flurries":                 SkyPrecipitation,
	"Freezing Rain":            SkyPrecipitation,
	"Rain":                     SkyPrecipitation,
	"Sleet":                    SkyPrecipitation,
	"Snow":                     SkyPrecipitation,
	"Thunderstorms":            SkyPrecipitation,
	"Thunderstorm":             SkyPrecipitation,
	"Light Freezing Rain":      SkyPrecipitation,
	"Light Freezing Drizzle":   SkyPrecipitation,
	"Light Drizzle":            SkyPrecipitation,

	"Fog":     SkyOther,
	"Unknown": SkyOther,
}

// ConditionCode returns the sky code for a condition label. ok is false for
// labels outside the known set; such rows store a null code.
func ConditionCode(label string) (code int, ok bool) {
	code, ok = conditionCodes[label]
	return code, ok
}
