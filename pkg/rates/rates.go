// Package rates defines the bounded tuple domain the proxy serves rates for,
// canonical cache key encoding, and request validation.
package rates

import (
	"fmt"
	"strings"
)

// Allowed values for each tuple field. The domain is deliberately small;
// the whole key space fits in a single upstream batch request.
var (
	Periods = []string{"Summer", "Autumn", "Winter", "Spring"}
	Hotels  = []string{"FloatingPointResort", "GitawayHotel", "RecursionRetreat"}
	Rooms   = []string{"SingletonRoom", "BooleanTwin", "RestfulKing"}
)

// Validate checks the three request fields against the allowed enumerations.
// It returns a map of field name to human-readable messages, or nil when all
// fields are valid.
func Validate(period, hotel, room string) map[string][]string {
	errs := make(map[string][]string)

	if !contains(Periods, period) {
		errs["period"] = []string{enumMessage("period", Periods)}
	}
	if !contains(Hotels, hotel) {
		errs["hotel"] = []string{enumMessage("hotel", Hotels)}
	}
	if !contains(Rooms, room) {
		errs["room"] = []string{enumMessage("room", Rooms)}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func enumMessage(field string, allowed []string) string {
	return fmt.Sprintf("The %s field must be one of: %s.", field, strings.Join(allowed, ", "))
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// Domain returns every tuple in the bounded domain, period-major.
func Domain() []Tuple {
	tuples := make([]Tuple, 0, len(Periods)*len(Hotels)*len(Rooms))
	for _, p := range Periods {
		for _, h := range Hotels {
			for _, r := range Rooms {
				tuples = append(tuples, Tuple{Period: p, Hotel: h, Room: r})
			}
		}
	}
	return tuples
}
