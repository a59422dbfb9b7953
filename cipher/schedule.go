package cipher

import (
	"encoding/binary"
	"fmt"
)

// Valid round counts.
const (
	Rounds12 = 12
	Rounds14 = 14
	Rounds16 = 16
)

// KeySize is the user key size in bytes (256 bits).
const KeySize = 32

// BlockSize is the cipher's block size in bytes (128 bits).
const BlockSize = 16

// Schedule is an expanded key: (rounds+1) round-key quads, flat.
type Schedule struct {
	Rounds int
	Words  []uint32
}

// RoundKey returns the 4-word round key at quad index i (0..Rounds).
func (s *Schedule) RoundKey(i int) [4]uint32 {
	return [4]uint32{s.Words[i*4], s.Words[i*4+1], s.Words[i*4+2], s.Words[i*4+3]}
}

func keyWords(key [KeySize]byte) [8]uint32 {
	var w [8]uint32
	for i := 0; i < 8; i++ {
		w[i] = binary.LittleEndian.Uint32(key[i*4 : i*4+4])
	}
	return w
}

// Word operators of the linear layer. btShift2 is a 16-bit rotation,
// btShiftR1 an 8-bit right rotation, btShuffle swaps adjacent bytes, and
// btRev reverses the word's byte order.
func btShift2(w uint32) uint32 {
	return (w >> 16) | (w << 16)
}

func btShiftR1(w uint32) uint32 {
	return (w << 24) | (w >> 8)
}

func btShuffle(w uint32) uint32 {
	return ((w & 0x00ff00ff) << 8) | ((w >> 8) & 0x00ff00ff)
}

func btRev(w uint32) uint32 {
	return ((w & 0xff) << 24) | ((w & 0xff00) << 8) | ((w >> 8) & 0xff00) | ((w >> 24) & 0xff)
}

// sboxWord substitutes a word through the four tables, one byte lane
// each, XOR-combined.
func sboxWord(w uint32) uint32 {
	return SBOX0[byte(w)] ^ SBOX1[byte(w>>8)] ^ SBOX2[byte(w>>16)] ^ SBOX3[byte(w>>24)]
}

// ExpandKey turns a 32-byte user key into a Schedule of the given round
// count: 0x44/0x3C/0x34 words for 16/14/12 rounds. Each of the first
// three derivation passes folds round constants into one half of the
// key, substitutes and mixes it, and XOR-accumulates the result into the
// other half; the final pass instead reloads that other half with the
// byte-reversed first four key words. Every pass then writes schedule
// slots at offsets 0x00/0x10/0x20/0x30/0x40 via variable-width shifts of
// the accumulator.
func ExpandKey(key [KeySize]byte, rounds int) (*Schedule, error) {
	var length int
	var seed uint32
	switch rounds {
	case Rounds16:
		length, seed = 0x44, 1
	case Rounds14:
		length, seed = 0x3c, 0
	case Rounds12:
		length, seed = 0x34, 2
	default:
		return nil, fmt.Errorf("cipher: invalid round count %d", rounds)
	}

	kw := keyWords(key)
	words := make([]uint32, length)

	var state [8]uint32
	for i := range state {
		state[i] = btRev(kw[i])
	}

	for r := 0; r < 4; r++ {
		var inkey, xor []uint32
		if r%2 == 0 {
			inkey, xor = state[0:4], state[4:8]
		} else {
			inkey, xor = state[4:8], state[0:4]
		}

		seed = (seed + 1) % 3

		if r == 3 {
			for i := range xor {
				xor[i] = btRev(kw[i])
			}
		} else {
			var sub [4]uint32
			for i := 0; i < 4; i++ {
				row := inkey[i] ^ rcon[seed*4+uint32(i)]
				if r%2 == 1 {
					row = btShift2(row)
				}
				sub[i] = sboxWord(row)
			}

			var tmp [4]uint32
			if r%2 == 1 {
				tmp[0] = btShift2(sub[0] ^ sub[1] ^ sub[2])
				tmp[1] = sub[0] ^ sub[1] ^ sub[3]
				tmp[2] = btRev(sub[0] ^ sub[2] ^ sub[3])
				tmp[3] = btShuffle(sub[1] ^ sub[2] ^ sub[3])
			} else {
				tmp[0] = sub[0] ^ sub[1] ^ sub[2]
				tmp[1] = btShift2(sub[0] ^ sub[1] ^ sub[3])
				tmp[2] = btShuffle(sub[0] ^ sub[2] ^ sub[3])
				tmp[3] = btRev(sub[1] ^ sub[2] ^ sub[3])
			}

			xor[0] ^= tmp[0] ^ tmp[1] ^ tmp[2]
			xor[1] ^= tmp[0] ^ tmp[1] ^ tmp[3]
			xor[2] ^= tmp[0] ^ tmp[2] ^ tmp[3]
			xor[3] ^= tmp[1] ^ tmp[2] ^ tmp[3]
		}

		for i := 0; i < 4; i++ {
			base := r*4 + i
			words[base+0x00] = inkey[i] ^ (xor[i] >> 19) ^ (xor[(3+i)%4] << 13)
			words[base+0x10] = inkey[i] ^ (xor[i] >> 31) ^ (xor[(3+i)%4] << 1)
			words[base+0x20] = inkey[i] ^ (xor[(2+i)%4] >> 3) ^ (xor[(1+i)%4] << 29)
			if base+0x30 < length {
				words[base+0x30] = inkey[i] ^ (xor[(1+i)%4] >> 1) ^ (xor[i] << 31)
			}
			if base+0x40 < length {
				words[base+0x40] = inkey[i] ^ (xor[(1+i)%4] >> 13) ^ (xor[i] << 19)
			}
		}
	}

	return &Schedule{Rounds: rounds, Words: words}, nil
}

// mixRoundKey writes the mix-round transform of src into dst, both
// 4-word quads. Used only by the decrypt-key derivation.
func mixRoundKey(dst, src []uint32) {
	var tmp [4]uint32
	for i := 0; i < 4; i++ {
		tmp[i] = btShift2(src[i]^btShiftR1(src[i])) ^ btShiftR1(src[i])
	}

	var tmp2 [4]uint32
	tmp2[0] = tmp[0] ^ tmp[1] ^ tmp[2]
	tmp2[1] = btShift2(tmp[0] ^ tmp[1] ^ tmp[3])
	tmp2[2] = btShuffle(tmp[0] ^ tmp[2] ^ tmp[3])
	tmp2[3] = btRev(tmp[1] ^ tmp[2] ^ tmp[3])

	dst[0] = tmp2[0] ^ tmp2[1] ^ tmp2[2]
	dst[1] = tmp2[0] ^ tmp2[1] ^ tmp2[3]
	dst[2] = tmp2[0] ^ tmp2[2] ^ tmp2[3]
	dst[3] = tmp2[1] ^ tmp2[2] ^ tmp2[3]
}

// DecryptSchedule derives the decryption key schedule: the first and
// last round-key quads are swapped, then walking inward each inner pair
// is replaced by the mix-round transform of the quad that faced it
// before the swap; the central quad is transformed in place. Decryption
// is then the encryption routine run over the derived schedule.
func (s *Schedule) DecryptSchedule() *Schedule {
	out := &Schedule{Rounds: s.Rounds, Words: append([]uint32(nil), s.Words...)}
	quads := len(out.Words) / 4
	quad := func(i int) []uint32 { return out.Words[i*4 : i*4+4] }

	first, last := quad(0), quad(quads-1)
	for i := 0; i < 4; i++ {
		first[i], last[i] = last[i], first[i]
	}

	i, j := 1, quads-2
	for i < j {
		p1, p2 := quad(i), quad(j)
		var p2tmp [4]uint32
		copy(p2tmp[:], p2)
		mixRoundKey(p2, p1)
		mixRoundKey(p1, p2tmp[:])
		i++
		j--
	}
	center := quad(i)
	var tmp [4]uint32
	copy(tmp[:], center)
	mixRoundKey(center, tmp[:])

	return out
}
