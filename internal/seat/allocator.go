// Package seat picks seat numbers out of a cabin's inventory.
package seat

import "strings"

// RowWidth is the number of seats per row; the first and last position of a
// row are window seats.
const RowWidth = 6

type Preference string

const (
	PreferenceAny    Preference = "Any"
	PreferenceWindow Preference = "Window"
	// PreferenceAisle is accepted from booking forms but is served like Any.
	PreferenceAisle Preference = "Aisle"
)

func ParsePreference(s string) Preference {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "window":
		return PreferenceWindow
	case "aisle":
		return PreferenceAisle
	default:
		return PreferenceAny
	}
}

func IsWindow(seat int) bool {
	pos := (seat-1)%RowWidth + 1
	return pos == 1 || pos == RowWidth
}

// Taken builds the occupied-seat set from a list of confirmed seat numbers.
func Taken(seats []int) map[int]struct{} {
	taken := make(map[int]struct{}, len(seats))
	for _, s := range seats {
		taken[s] = struct{}{}
	}
	return taken
}

// FindWindow returns the lowest free window seat in 1..total.
func FindWindow(total int, taken map[int]struct{}) (int, bool) {
	for s := 1; s <= total; s++ {
		if _, ok := taken[s]; !ok && IsWindow(s) {
			return s, true
		}
	}
	return 0, false
}

// FindAny returns the lowest free seat in 1..total.
func FindAny(total int, taken map[int]struct{}) (int, bool) {
	for s := 1; s <= total; s++ {
		if _, ok := taken[s]; !ok {
			return s, true
		}
	}
	return 0, false
}

// Assign picks the next seat for pref. A window request that cannot be met
// falls back to any free seat. The result only depends on the arguments.
func Assign(total int, taken map[int]struct{}, pref Preference) (int, bool) {
	if pref == PreferenceWindow {
		if s, ok := FindWindow(total, taken); ok {
			return s, true
		}
	}
	return FindAny(total, taken)
}
