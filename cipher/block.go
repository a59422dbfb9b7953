// Package cipher implements the proprietary 128-bit-block cipher used by
// the crypto handshake: a 256-bit key, a choice of 12/14/16 rounds, four
// published 32-bit substitution tables, and a byte-permutation linear
// layer. Encryption and decryption share one routine; decryption runs it
// over the derived decrypt schedule.
package cipher

import "encoding/binary"

func bytesToWords(b [16]byte) [4]uint32 {
	var words [4]uint32
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4 : i*4+4])
	}
	return words
}

func wordsToBytes(words [4]uint32) [16]byte {
	var b [16]byte
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[i*4:i*4+4], w)
	}
	return b
}

// cryptBlock runs the shared encrypt/decrypt routine: rounds-1 full
// rounds of (XOR round key, 16-bit rotate on odd rounds, substitute,
// mix), then a final byte-remap round drawing from the four tables with
// the byte-reversed last round key.
func cryptBlock(data [4]uint32, sched *Schedule) [4]uint32 {
	state := [4]uint32{btRev(data[0]), btRev(data[1]), btRev(data[2]), btRev(data[3])}

	for i := 0; i < sched.Rounds-1; i++ {
		rk := sched.RoundKey(i)
		var sub [4]uint32
		for r := 0; r < 4; r++ {
			keyed := state[r] ^ rk[r]
			if i%2 == 1 {
				keyed = btShift2(keyed)
			}
			sub[r] = sboxWord(keyed)
		}

		var mix [4]uint32
		if i%2 == 1 {
			mix[0] = btShift2(sub[0] ^ sub[1] ^ sub[2])
			mix[1] = sub[0] ^ sub[1] ^ sub[3]
			mix[2] = btRev(sub[0] ^ sub[2] ^ sub[3])
			mix[3] = btShuffle(sub[1] ^ sub[2] ^ sub[3])
		} else {
			mix[0] = sub[0] ^ sub[1] ^ sub[2]
			mix[1] = btShift2(sub[0] ^ sub[1] ^ sub[3])
			mix[2] = btShuffle(sub[0] ^ sub[2] ^ sub[3])
			mix[3] = btRev(sub[1] ^ sub[2] ^ sub[3])
		}

		state[0] = mix[0] ^ mix[1] ^ mix[2]
		state[1] = mix[0] ^ mix[1] ^ mix[3]
		state[2] = mix[0] ^ mix[2] ^ mix[3]
		state[3] = mix[1] ^ mix[2] ^ mix[3]
	}

	rk1 := sched.RoundKey(sched.Rounds - 1)
	rk2 := sched.RoundKey(sched.Rounds)

	var ret [4]uint32
	for i := 0; i < 4; i++ {
		keyed := btShift2(state[i] ^ rk1[i])
		sub := uint32(byte(SBOX1[byte(keyed>>8)])) |
			uint32(byte(SBOX0[byte(keyed)]>>8))<<8 |
			uint32(byte(SBOX3[byte(keyed>>24)]))<<16 |
			uint32(byte(SBOX2[byte(keyed>>16)]))<<24
		ret[i] = sub ^ btRev(rk2[i])
	}

	return ret
}

// EncryptBlock encrypts a single 16-byte block under sched (as returned
// by ExpandKey).
func EncryptBlock(sched *Schedule, in [16]byte) [16]byte {
	return wordsToBytes(cryptBlock(bytesToWords(in), sched))
}

// DecryptBlock decrypts a single 16-byte block under decSched, the
// schedule returned by (*Schedule).DecryptSchedule for the matching
// encryption schedule.
func DecryptBlock(decSched *Schedule, in [16]byte) [16]byte {
	return wordsToBytes(cryptBlock(bytesToWords(in), decSched))
}
