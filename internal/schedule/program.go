package schedule

// StationsPerBoard is the number of stations on one expansion board.
const StationsPerBoard = 8

// Canonicalize turns a command into one duration per station.
//
// The result always has exactly stations entries. Names in a NamedCommand
// that match no station are returned in unknown, in payload order.
func Canonicalize(cmd Command, names []string, stations int) (values []int, unknown []string) {
	if stations < 0 {
		stations = 0
	}
	values = make([]int, stations)

	switch c := cmd.(type) {
	case SequenceCommand:
		copy(values, c.Values)

	case NamedCommand:
		index := make(map[string]int, len(names))
		for i, name := range names {
			if i >= stations {
				break
			}
			if _, dup := index[name]; !dup {
				index[name] = i
			}
		}

		order := c.Order
		if len(order) != len(c.Values) {
			order = order[:0:0]
			for name := range c.Values {
				order = append(order, name)
			}
		}
		for _, name := range order {
			v, ok := c.Values[name]
			if !ok {
				continue
			}
			i, known := index[name]
			if !known {
				unknown = append(unknown, name)
				continue
			}
			values[i] = v
		}
	}

	return values, unknown
}

// StationMask packs active stations into one byte per board.
// Bit n of byte b is station b*8+n.
func StationMask(values []int, boards int) []byte {
	if boards < 0 {
		boards = 0
	}
	mask := make([]byte, boards)
	for i, v := range values {
		if v == 0 {
			continue
		}
		b := i / StationsPerBoard
		if b >= boards {
			break
		}
		mask[b] |= 1 << (i % StationsPerBoard)
	}
	return mask
}

// anyActive reports whether any station has a non-zero duration.
func anyActive(values []int) bool {
	for _, v := range values {
		if v != 0 {
			return true
		}
	}
	return false
}
