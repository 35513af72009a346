package structs

import (
	"fmt"
	"strings"
)

// StatusCode is the status of a flight reported by the oracles
type StatusCode uint8

const (
	StatusUnknown       StatusCode = 0
	StatusOnTime        StatusCode = 10
	StatusLateAirline   StatusCode = 20
	StatusLateWeather   StatusCode = 30
	StatusLateTechnical StatusCode = 40
	StatusLateOther     StatusCode = 50
)

// StatusCodes is the fixed set of codes an oracle can report
var StatusCodes = []StatusCode{
	StatusUnknown,
	StatusOnTime,
	StatusLateAirline,
	StatusLateWeather,
	StatusLateTechnical,
	StatusLateOther,
}

var statusNames = map[StatusCode]string{
	StatusUnknown:       "UNKNOWN",
	StatusOnTime:        "ON_TIME",
	StatusLateAirline:   "LATE_AIRLINE",
	StatusLateWeather:   "LATE_WEATHER",
	StatusLateTechnical: "LATE_TECHNICAL",
	StatusLateOther:     "LATE_OTHER",
}

func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", uint8(s))
}

// Valid returns true if the code is part of the known status set
func (s StatusCode) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// ParseStatusCode parses either the name or the numeric value of a status code
func ParseStatusCode(str string) (StatusCode, error) {
	str = strings.ToUpper(strings.TrimSpace(str))
	for code, name := range statusNames {
		if name == str || fmt.Sprintf("%d", uint8(code)) == str {
			return code, nil
		}
	}
	return 0, fmt.Errorf("status code '%s' not found", str)
}
