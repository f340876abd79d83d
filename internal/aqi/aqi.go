// Package aqi maps PM2.5 concentrations to air-quality categories.
package aqi

// Level identifies an air-quality band.
type Level string

const (
	Good                        Level = "good"
	Moderate                    Level = "moderate"
	UnhealthyForSensitiveGroups Level = "unhealthy_for_sensitive_groups"
	Unhealthy                   Level = "unhealthy"
	VeryUnhealthy               Level = "very_unhealthy"
	Hazardous                   Level = "hazardous"
)

// OutdoorLimit is the concentration (µg/m³) above which outdoor activity should be avoided.
const OutdoorLimit = 35.4

// Category is the classification of one PM2.5 value.
type Category struct {
	Level        Level  `json:"level"`
	AvoidOutdoor bool   `json:"avoid_outdoor"`
	Advice       string `json:"advice"`
}

var bands = []struct {
	upper float64
	level Level
}{
	{12, Good},
	{35.4, Moderate},
	{55.4, UnhealthyForSensitiveGroups},
	{150.4, Unhealthy},
	{250.4, VeryUnhealthy},
}

// Classify returns the category of a PM2.5 concentration. Band upper bounds are inclusive.
func Classify(pm25 float64) Category {
	level := Hazardous
	for _, b := range bands {
		if pm25 <= b.upper {
			level = b.level
			break
		}
	}

	c := Category{Level: level, AvoidOutdoor: pm25 > OutdoorLimit}
	if c.AvoidOutdoor {
		c.Advice = "avoid outdoor activities"
	} else {
		c.Advice = "air quality is suitable for outdoor activities"
	}
	return c
}
