package housing

import (
	"sort"
	"strconv"
	"strings"
)

// SortBuildings orders buildings by display order, then name, then id.
func SortBuildings(buildings []Building) {
	sort.SliceStable(buildings, func(i, j int) bool {
		return buildingLess(buildings[i], buildings[j])
	})
}

func buildingLess(a, b Building) bool {
	if a.DisplayOrder != b.DisplayOrder {
		return a.DisplayOrder < b.DisplayOrder
	}
	if !strings.EqualFold(a.Name, b.Name) {
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	}
	return a.ID < b.ID
}

// SortRoomViews orders rooms by building display order, floor, then room number.
func SortRoomViews(views []RoomView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.Building.ID != b.Building.ID {
			return buildingLess(a.Building, b.Building)
		}
		if a.Room.Floor != b.Room.Floor {
			return a.Room.Floor < b.Room.Floor
		}
		if c := CompareRoomNumbers(a.Room.Number, b.Room.Number); c != 0 {
			return c < 0
		}
		return a.Room.ID < b.Room.ID
	})
}

// CompareRoomNumbers compares room numbers in natural order so that "9" sorts
// before "10" and "A2" before "A10".
func CompareRoomNumbers(a, b string) int {
	for a != "" && b != "" {
		ca, cb := a[0], b[0]
		if isDigit(ca) && isDigit(cb) {
			na, restA := leadingNumber(a)
			nb, restB := leadingNumber(b)
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
			a, b = restA, restB
			continue
		}
		la, lb := lowerASCII(ca), lowerASCII(cb)
		if la != lb {
			if la < lb {
				return -1
			}
			return 1
		}
		a, b = a[1:], b[1:]
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

func leadingNumber(s string) (uint64, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	n, err := strconv.ParseUint(s[:i], 10, 64)
	if err != nil {
		n = ^uint64(0)
	}
	return n, s[i:]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func lowerASCII(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
