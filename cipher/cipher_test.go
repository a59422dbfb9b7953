package cipher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(seed byte) [KeySize]byte {
	var k [KeySize]byte
	for i := range k {
		k[i] = seed + byte(i)*7
	}
	return k
}

func testBlock(seed byte) [16]byte {
	var b [16]byte
	for i := range b {
		b[i] = seed ^ byte(i)*3
	}
	return b
}

// TestKeyExpansionVector pins the 16-round expansion of a known key to
// its full recovered schedule.
func TestKeyExpansionVector(t *testing.T) {
	key := [KeySize]byte{0x75, 0x69, 0x49, 0x67, 0x52, 0x55, 0x73, 0x69}
	sched, err := ExpandKey(key, Rounds16)
	require.NoError(t, err)

	expected := []uint32{
		0x7A03DFF8, 0x9E945F05, 0x8608BD45, 0xE87F9980, 0x6CF0F59B, 0x7F587662, 0x26AE8BE8,
		0x6CAB644B, 0xCBFB3CD5, 0x2611B1A9, 0x57CF9421, 0x1200DA0E, 0xE9B8B7D3, 0x8414511E,
		0x25A277F0, 0xD3D2BB5E, 0xED69BFCE, 0x3BA9BF7B, 0xC6C8608B, 0xD45E87F9, 0x4503E6E0,
		0x5A45F381, 0x88538BE0, 0x4D4A71E5, 0x3B35975F, 0xE24F16F3, 0x1AD473F1, 0xEF606F95,
		0xE9B8B97E, 0x47EA299A, 0x2F65B122, 0xD3D2BB5E, 0xC82CA118, 0xCBD57C03, 0x969FCCC1,
		0x2C6C8608, 0x7CEAC6A2, 0x7C7BE84B, 0x79BD5FC0, 0x8A27B7D5, 0x0DE90B1C, 0x2B443365,
		0x9D921277, 0x2D59D71E, 0xC9B8B97E, 0xAD38BB54, 0x85627EDC, 0x39981533, 0xC4DB5145,
		0xA742D297, 0x66003DAA, 0x5A7F3304, 0xAC61540E, 0x4336B2E9, 0x965023C6, 0x82480BA5,
		0xCA0CBC48, 0x74D9CFF6, 0x294C58F7, 0x8C229CCB, 0x409200CA, 0x2D38BB54, 0x8BCF57F0,
		0xE9661FED, 0x45225246, 0xD07A2213, 0x1FE66003, 0xDAA5A7F3,
	}
	require.Equal(t, expected, sched.Words)
}

// TestDecryptScheduleVector pins the decrypt-key derivation of a known
// 16-round schedule.
func TestDecryptScheduleVector(t *testing.T) {
	key := [KeySize]byte{0x71, 0x65, 0x46, 0x66, 0x49, 0x79, 0x78, 0x65}
	sched, err := ExpandKey(key, Rounds16)
	require.NoError(t, err)
	dec := sched.DecryptSchedule()

	expected := []uint32{
		0xDAA50A3D, 0x56A0C4B4, 0xEF55754D, 0xD2F1130E, 0x7576AC6D, 0x543BD460, 0xECFC7429,
		0xBBC30FE8, 0xB94ACEAB, 0xB2B2DAFE, 0x35C2BE25, 0x8E4501F0, 0x81E5D8D3, 0x24C67E11,
		0x34675617, 0x64FB8B2A, 0xF67D4B79, 0x1836BA04, 0xC6D36581, 0xCBA21907, 0xF4263A9C,
		0x1D020440, 0x5E755676, 0xAA4E55F1, 0x8774B9B8, 0x81FE00AD, 0x3237FA2B, 0x172283ED,
		0x713D6720, 0x580BDE4D, 0xB4AE3364, 0xCFF0AB97, 0x5D752E5D, 0xC2347E59, 0xC7A0B3C9,
		0x1462F3A6, 0xD8A7CF64, 0xCE4508B0, 0xAB73AF60, 0xFB452A11, 0x67075B8B, 0x3DD93D72,
		0xEB69C0DA, 0xB317BE50, 0x66C735DB, 0x2F0B8EC6, 0x0FE29300, 0xA6E6D52B, 0x4FA2627D,
		0xEF9E0180, 0xA4907272, 0xCC51DAB2, 0xB80F5A1B, 0xB18D4BAE, 0x52FA7315, 0x67227EBE,
		0x6E3FA650, 0xD755A510, 0x2B3FDD83, 0x6E36715C, 0x943C2C1E, 0xDBEEB0EF, 0xBF935956,
		0x45D938F2, 0x462E822A, 0x73D67954, 0x6C7F66F3, 0x47BD55D5,
	}
	require.Equal(t, expected, dec.Words)
}

// TestItemPathRoundTrip encrypts the canonical resource-path block and
// decrypts it back under the derived decrypt schedule.
func TestItemPathRoundTrip(t *testing.T) {
	key := [KeySize]byte{0x75, 0x69, 0x49, 0x67, 0x52, 0x55, 0x73, 0x69}
	raw := [16]byte{
		0x44, 0x61, 0x74, 0x61, 0x2f, 0x49, 0x74, 0x65,
		0x6d, 0x2e, 0x73, 0x63, 0x70, 0x00, 0x00, 0x00,
	}

	sched, err := ExpandKey(key, Rounds16)
	require.NoError(t, err)
	ct := EncryptBlock(sched, raw)
	require.NotEqual(t, raw, ct)

	dec := sched.DecryptSchedule()
	require.Equal(t, raw, DecryptBlock(dec, ct))
}

// TestRoundTrip verifies for every supported round count that
// decrypting under the derived decrypt schedule undoes encryption under
// the matching encrypt schedule, for arbitrary keys and blocks.
func TestRoundTrip(t *testing.T) {
	for _, rounds := range []int{Rounds12, Rounds14, Rounds16} {
		rounds := rounds
		t.Run("", func(t *testing.T) {
			for seed := 0; seed < 32; seed++ {
				key := testKey(byte(seed))
				block := testBlock(byte(seed * 5))

				enc, err := ExpandKey(key, rounds)
				require.NoError(t, err)
				dec := enc.DecryptSchedule()

				ct := EncryptBlock(enc, block)
				pt := DecryptBlock(dec, ct)

				require.Equal(t, block, pt, "round-trip mismatch at rounds=%d seed=%d", rounds, seed)
			}
		})
	}
}

// TestEncryptDeterministic checks that encrypting the same block under the
// same schedule twice yields identical ciphertext (no hidden state).
func TestEncryptDeterministic(t *testing.T) {
	key := testKey(0x11)
	block := testBlock(0x22)
	sched, err := ExpandKey(key, Rounds14)
	require.NoError(t, err)

	a := EncryptBlock(sched, block)
	b := EncryptBlock(sched, block)
	require.Equal(t, a, b)
}

// TestDifferentKeysDiverge sanity-checks that the cipher is key-dependent:
// two distinct keys over the same plaintext must not collide.
func TestDifferentKeysDiverge(t *testing.T) {
	block := testBlock(0x33)
	s1, err := ExpandKey(testKey(0x01), Rounds16)
	require.NoError(t, err)
	s2, err := ExpandKey(testKey(0x02), Rounds16)
	require.NoError(t, err)

	c1 := EncryptBlock(s1, block)
	c2 := EncryptBlock(s2, block)
	require.NotEqual(t, c1, c2)
}

// TestInvalidRounds rejects round counts outside the closed set.
func TestInvalidRounds(t *testing.T) {
	_, err := ExpandKey(testKey(0), 13)
	require.Error(t, err)
}

// TestScheduleLengths pins the flat word counts per round count.
func TestScheduleLengths(t *testing.T) {
	for rounds, want := range map[int]int{Rounds12: 0x34, Rounds14: 0x3c, Rounds16: 0x44} {
		sched, err := ExpandKey(testKey(1), rounds)
		require.NoError(t, err)
		require.Len(t, sched.Words, want)
	}
}
