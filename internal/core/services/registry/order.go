package registry

import "sort"

// compareServices orders services most preferred first: higher order, then
// favorites, then stronger signal. It returns a negative value when a sorts
// before b and zero when the keys are equal.
func compareServices(a, b *Service) int {
	if a.order > b.order {
		return -1
	}
	if a.order < b.order {
		return 1
	}

	if a.favorite && !b.favorite {
		return -1
	}
	if !a.favorite && b.favorite {
		return 1
	}

	return int(b.strength) - int(a.strength)
}

// insertSorted places s after every service it does not sort strictly
// before, so equal keys keep their relative order.
func insertSorted(list []*Service, s *Service) []*Service {
	pos := sort.Search(len(list), func(i int) bool {
		return compareServices(s, list[i]) < 0
	})
	list = append(list, nil)
	copy(list[pos+1:], list[pos:])
	list[pos] = s
	return list
}

func removeService(list []*Service, s *Service) ([]*Service, bool) {
	for i, cur := range list {
		if cur == s {
			copy(list[i:], list[i+1:])
			list[len(list)-1] = nil
			return list[:len(list)-1], true
		}
	}
	return list, false
}

// resort moves s to its position after one of its sort keys changed.
func resort(list []*Service, s *Service) []*Service {
	list, ok := removeService(list, s)
	if !ok {
		return list
	}
	return insertSorted(list, s)
}
