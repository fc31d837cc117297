// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Bit returns true if bit 'n' of 'v' is set.
func Bit(v byte, n uint) bool {
	return v&(1<<(n&7)) != 0
}

// SetBit returns 'v' with bit 'n' set or cleared.
func SetBit(v byte, n uint, on bool) byte {
	if on {
		return v | 1<<(n&7)
	}
	return v &^ (1 << (n & 7))
}

func boolToByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// parity[v] is true if v has an even number of set bits.
var parity [256]bool

func init() {
	for i := range parity {
		n := 0
		for v := i; v != 0; v >>= 1 {
			n += v & 1
		}
		parity[i] = n%2 == 0
	}
}
