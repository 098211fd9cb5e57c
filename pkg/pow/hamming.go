// Package pow implements the nonce search: a bit-sliced Curl transform runs
// 64 nonce candidates per iteration and accepts the first lane whose rate
// has a vanishing hamming weight at exactly the requested security level.
package pow

import (
	"github.com/gohornet/mam/pkg/curl"
	"github.com/gohornet/mam/pkg/signing"
	"github.com/gohornet/mam/pkg/trinary"
)

const (
	// NonceLength is the nonce length in trits.
	NonceLength = curl.HashLength / 3

	allBits uint64 = 0xFFFFFFFFFFFFFFFF
)

// Lane seeds enumerating distinct 4-trit prefixes across the 64 lanes.
var (
	laneLow = [4]uint64{
		0xDB6DB6DB6DB6DB6D,
		0xF1F8FC7E3F1F8FC7,
		0x7FFFE00FFFFC01FF,
		0xFFC0000007FFFFFF,
	}
	laneHigh = [4]uint64{
		0xB6DB6DB6DB6DB6DB,
		0x8FC7E3F1F8FC7E3F,
		0xFFC01FFFF803FFFF,
		0x003FFFFFFFFFFFFF,
	}
)

// searchState is the bit-sliced sponge state: bit l of low[i] and high[i]
// together encode the trit of lane l at slot i. (1,1) is zero, (0,1) is one
// and (1,0) is minus one.
type searchState struct {
	low  [curl.StateLength]uint64
	high [curl.StateLength]uint64
}

// newSearchState packs a trit state and plants the lane seeds at the first
// four nonce slots.
func newSearchState(state trinary.Trits, offset int) *searchState {
	s := &searchState{}
	for i := 0; i < curl.StateLength && i < len(state); i++ {
		switch state[i] {
		case 0:
			s.low[i] = allBits
			s.high[i] = allBits
		case 1:
			s.low[i] = 0
			s.high[i] = allBits
		default:
			s.low[i] = allBits
			s.high[i] = 0
		}
	}
	for i := 0; i < len(laneLow); i++ {
		s.low[offset+i] = laneLow[i]
		s.high[offset+i] = laneHigh[i]
	}
	return s
}

// transform runs the 27-round bit-sliced Curl permutation on a scratch copy,
// leaving the pre-permutation state untouched.
func (s *searchState) transform() *searchState {
	out := &searchState{low: s.low, high: s.high}
	var scratchLow, scratchHigh [curl.StateLength]uint64
	idx := 0
	for round := 0; round < curl.NumRoundsP27; round++ {
		scratchLow = out.low
		scratchHigh = out.high
		for i := 0; i < curl.StateLength; i++ {
			alpha := scratchLow[idx]
			beta := scratchHigh[idx]
			if idx < 365 {
				idx += 364
			} else {
				idx -= 365
			}
			gamma := scratchHigh[idx]
			delta := (alpha | ^gamma) & (scratchLow[idx] ^ beta)
			out.low[i] = ^delta
			out.high[i] = (alpha ^ gamma) | delta
		}
	}
	return out
}

// increment ripple-adds one to the counter slots [from, to) of every lane.
func (s *searchState) increment(from, to int) {
	for i := from; i < to; i++ {
		if s.low[i] == 0 {
			// all lanes wrap from one to minus one, carry on
			s.low[i] = allBits
			s.high[i] = 0
			continue
		}
		if s.high[i] == 0 {
			s.high[i] = allBits
		} else {
			s.low[i] = 0
		}
		return
	}
}

// check returns the first lane whose rate sums to zero over exactly
// security thirds, or -1. Lanes that already vanish at a smaller level are
// rejected: the parser derives the signature length from the smallest
// vanishing level, so the nonce has to land exactly.
func (s *searchState) check(security signing.SecurityLevel) int {
	third := curl.HashLength / 3
	for lane := 0; lane < 64; lane++ {
		sum := 0
		valid := true
		for k := 0; k < int(security); k++ {
			for i := k * third; i < (k+1)*third; i++ {
				if (s.low[i]>>lane)&1 == 0 {
					sum++
				} else if (s.high[i]>>lane)&1 == 0 {
					sum--
				}
			}
			if sum == 0 && k < int(security)-1 {
				valid = false
				break
			}
		}
		if valid && sum == 0 {
			return lane
		}
	}
	return -1
}

// extract decodes the nonce trits of a lane from the pre-permutation state.
func (s *searchState) extract(lane, offset, length int) trinary.Trits {
	nonce := make(trinary.Trits, length-offset)
	for i := range nonce {
		low := (s.low[offset+i] >> lane) & 1
		high := (s.high[offset+i] >> lane) & 1
		switch {
		case low == 1 && high == 0:
			nonce[i] = -1
		case low == 0 && high == 1:
			nonce[i] = 1
		default:
			nonce[i] = 0
		}
	}
	return nonce
}

// Search finds a nonce of length-offset trits such that absorbing it into
// the sponge whose full state is given yields a rate with checksum security
// equal to the requested level. It runs until it succeeds.
func Search(state trinary.Trits, security signing.SecurityLevel, length, offset int) trinary.Trits {
	nonce, _ := searchWithPoll(state, security, length, offset, 0, 1, nil)
	return nonce
}

// searchWithPoll is the worker loop behind Search and Handler. Worker w of n
// pre-advances its counter by w and strides it by n, so workers scan
// disjoint nonce ranges. poll is invoked at every loop head; a non-nil
// return aborts the search.
func searchWithPoll(state trinary.Trits, security signing.SecurityLevel, length, offset, worker, workers int, poll func() error) (trinary.Trits, error) {
	s := newSearchState(state, offset)
	counterStart := offset + length*2/3
	counterEnd := offset + length

	for i := 0; i < worker; i++ {
		s.increment(counterStart, counterEnd)
	}

	for {
		if poll != nil {
			if err := poll(); err != nil {
				return nil, err
			}
		}
		permuted := s.transform()
		if lane := permuted.check(security); lane >= 0 {
			return s.extract(lane, offset, length), nil
		}
		for i := 0; i < workers; i++ {
			s.increment(counterStart, counterEnd)
		}
	}
}
