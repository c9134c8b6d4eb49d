package lfsr

// defaultTaps holds one primitive feedback polynomial per width, written as
// the tap mask of the low-order terms (the x^0 term is bit 0; the x^width
// term is implicit). Polynomials follow the maximal-length tap table of
// Xilinx XAPP052.
var defaultTaps = map[uint]uint64{
	2:  0x3,        // x^2 + x + 1
	3:  0x5,        // x^3 + x^2 + 1
	4:  0x9,        // x^4 + x^3 + 1
	5:  0x9,        // x^5 + x^3 + 1
	6:  0x21,       // x^6 + x^5 + 1
	7:  0x41,       // x^7 + x^6 + 1
	8:  0x71,       // x^8 + x^6 + x^5 + x^4 + 1
	9:  0x21,       // x^9 + x^5 + 1
	10: 0x81,       // x^10 + x^7 + 1
	11: 0x201,      // x^11 + x^9 + 1
	12: 0x53,       // x^12 + x^6 + x^4 + x + 1
	13: 0x1B,       // x^13 + x^4 + x^3 + x + 1
	14: 0x2B,       // x^14 + x^5 + x^3 + x + 1
	15: 0x4001,     // x^15 + x^14 + 1
	16: 0xA011,     // x^16 + x^15 + x^13 + x^4 + 1
	17: 0x4001,     // x^17 + x^14 + 1
	18: 0x801,      // x^18 + x^11 + 1
	19: 0x47,       // x^19 + x^6 + x^2 + x + 1
	20: 0x20001,    // x^20 + x^17 + 1
	21: 0x80001,    // x^21 + x^19 + 1
	22: 0x200001,   // x^22 + x^21 + 1
	23: 0x40001,    // x^23 + x^18 + 1
	24: 0xC20001,   // x^24 + x^23 + x^22 + x^17 + 1
	25: 0x400001,   // x^25 + x^22 + 1
	26: 0x47,       // x^26 + x^6 + x^2 + x + 1
	27: 0x27,       // x^27 + x^5 + x^2 + x + 1
	28: 0x2000001,  // x^28 + x^25 + 1
	29: 0x8000001,  // x^29 + x^27 + 1
	30: 0x53,       // x^30 + x^6 + x^4 + x + 1
	31: 0x10000001, // x^31 + x^28 + 1
	32: 0x400007,   // x^32 + x^22 + x^2 + x + 1
}

// DefaultTaps returns a maximal-length tap mask for the given width.
func DefaultTaps(width uint) (uint64, bool) {
	taps, ok := defaultTaps[width]
	return taps, ok
}
