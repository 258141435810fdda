package cfb

// walkChain follows table[start] -> table[table[start]] -> ... until
// endOfChain, returning the visited sector indices in order. Cycles are
// detected with a tortoise-and-hare cursor so a malformed chain fails
// fast instead of looping forever. loopKind is the error kind raised on
// a detected cycle (ErrNormalLoop or ErrMasterLoop depending on the caller).
func walkChain(start uint32, table []uint32, loopKind ErrorKind, d *diagnostics, warnSector uint32) ([]uint32, error) {
	if start == endOfChain || start == freeSect {
		return nil, nil
	}

	next := func(sn uint32) uint32 {
		if sn >= uint32(len(table)) {
			return endOfChain
		}
		return table[sn]
	}

	var out []uint32
	slow, fast := start, start
	for sn := start; sn != endOfChain && sn != freeSect; sn = next(sn) {
		if sn >= uint32(len(table)) {
			if d != nil {
				d.warn(WarnTruncated, -1, warnSector, "chain runs past end of table; treating as end-of-chain")
			}
			break
		}
		out = append(out, sn)

		// the tortoise advances one step per iteration (the same rate as
		// the primary cursor); the hare advances two. If they ever meet
		// again mid-chain, the chain cycles back on itself.
		slow = next(slow)
		if fast != endOfChain && fast != freeSect {
			fast = next(fast)
		}
		if fast != endOfChain && fast != freeSect {
			fast = next(fast)
		}
		if slow != endOfChain && slow != freeSect && slow == fast {
			return nil, newErr(loopKind, "cycle detected in chain")
		}
	}
	return out, nil
}
