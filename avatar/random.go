package avatar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrOutOfRandom is the out-of-random error kind of spec §7: the random
// stream was exhausted mid-roll.
var ErrOutOfRandom = errors.New("avatar: out-of-random")

// RandomStream derives the hash-random stream of spec §4.5: XOR of
// corresponding code points of blockHash and moveID, then drops the
// first difficulty/4 values (integer division). The result is consumed
// from its tail by Roll.
func RandomStream(blockHash, moveID string, difficulty int) []int {
	if blockHash == "" || moveID == "" {
		return nil
	}
	bh := []rune(blockHash)
	mid := []rune(moveID)
	n := len(bh)
	if len(mid) < n {
		n = len(mid)
	}
	xored := make([]int, n)
	for i := 0; i < n; i++ {
		xored[i] = int(bh[i]) ^ int(mid[i])
	}
	drop := difficulty / 4
	if drop >= len(xored) {
		return nil
	}
	if drop < 0 {
		drop = 0
	}
	out := make([]int, len(xored)-drop)
	copy(out, xored[drop:])
	return out
}

// parseDice parses an "NdM" or "NdM+K" expression into (count, sides, bonus).
func parseDice(dice string) (count, sides, bonus int, err error) {
	expr := dice
	if idx := strings.IndexByte(expr, '+'); idx >= 0 {
		bonus, err = strconv.Atoi(expr[idx+1:])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("avatar: invalid dice bonus in %q: %w", dice, err)
		}
		expr = expr[:idx]
	}
	parts := strings.SplitN(expr, "d", 2)
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("avatar: invalid dice expression %q", dice)
	}
	count, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("avatar: invalid dice count in %q: %w", dice, err)
	}
	sides, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("avatar: invalid dice sides in %q: %w", dice, err)
	}
	return count, sides, bonus, nil
}

// pop removes and returns the last element of *stream.
func pop(stream *[]int) (int, error) {
	s := *stream
	if len(s) == 0 {
		return 0, ErrOutOfRandom
	}
	v := s[len(s)-1]
	*stream = s[:len(s)-1]
	return v, nil
}

// Roll draws count values from the tail of stream and computes
// sum((v_i mod sides)+1)+bonus, per spec §4.5 and the worked example in
// spec §8: roll([1,7,3], "2d6", combined=true) == 6 (pop 3 -> 4, pop 7
// -> 2, sum 6). When combined is false the individual per-die results
// are returned instead of their sum.
func Roll(stream *[]int, dice string, combined bool) (int, []int, error) {
	count, sides, bonus, err := parseDice(dice)
	if err != nil {
		return 0, nil, err
	}
	results := make([]int, 0, count)
	for i := 0; i < count; i++ {
		v, err := pop(stream)
		if err != nil {
			return 0, nil, err
		}
		results = append(results, v%sides+1)
	}
	if combined {
		sum := bonus
		for _, r := range results {
			sum += r
		}
		return sum, results, nil
	}
	return 0, results, nil
}
