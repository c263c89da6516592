package rps

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
)

func TestCommitVerifyRoundTrip(t *testing.T) {
	nonces := []uint64{0, 1, 42, 1 << 32, ^uint64(0)}
	for _, m := range AllMoves {
		for _, n := range nonces {
			d := Commit(m, n)
			assert.True(t, Verify(d, m, n), "move=%s nonce=%d", m, n)
		}
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	d := Commit(Rock, 12345)

	t.Run("错误的招式", func(t *testing.T) {
		assert.False(t, Verify(d, Paper, 12345))
		assert.False(t, Verify(d, Scissors, 12345))
		assert.False(t, Verify(d, Move(7), 12345))
	})

	t.Run("错误的nonce", func(t *testing.T) {
		assert.False(t, Verify(d, Rock, 12346))
	})

	t.Run("篡改任一字节", func(t *testing.T) {
		for i := 0; i < DigestSize; i++ {
			tampered := d
			tampered[i] ^= 0x01
			assert.False(t, Verify(tampered, Rock, 12345), "byte %d", i)
		}
	})
}

func TestCommitEncoding(t *testing.T) {
	// SHA-256(0x01 || 01 00 00 00 00 00 00 00)
	d := Commit(Paper, 1)
	assert.Equal(t, "46f8ec5a439c92e1df8299e1a4432a7ee172d8496b5e33e0a35a7b67163371b5", d.String())

	// 标签与 nonce 都参与编码
	assert.NotEqual(t, Commit(Rock, 1), Commit(Paper, 1))
	assert.NotEqual(t, Commit(Rock, 1), Commit(Rock, 1<<8))
}

func TestParseDigest(t *testing.T) {
	d := Commit(Scissors, 99)
	parsed, err := ParseDigest(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	_, err = ParseDigest("zz")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))

	_, err = ParseDigest("abcd")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))
}

func TestResolveAllPairs(t *testing.T) {
	cases := []struct {
		a, b Move
		want Outcome
	}{
		{Rock, Rock, Draw},
		{Rock, Paper, WinnerB},
		{Rock, Scissors, WinnerA},
		{Paper, Rock, WinnerA},
		{Paper, Paper, Draw},
		{Paper, Scissors, WinnerB},
		{Scissors, Rock, WinnerB},
		{Scissors, Paper, WinnerA},
		{Scissors, Scissors, Draw},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Resolve(c.a, c.b), "%s vs %s", c.a, c.b)
	}
}

func TestResolveAntisymmetric(t *testing.T) {
	for _, a := range AllMoves {
		for _, b := range AllMoves {
			ab, ba := Resolve(a, b), Resolve(b, a)
			switch ab {
			case Draw:
				assert.Equal(t, Draw, ba)
				assert.Equal(t, a, b)
			case WinnerA:
				assert.Equal(t, WinnerB, ba)
			case WinnerB:
				assert.Equal(t, WinnerA, ba)
			}
		}
	}
}

func TestDistinctMovesNeverDraw(t *testing.T) {
	seen := map[Move]bool{}
	for i := 0; i < 500; i++ {
		a, b := DistinctMoves()
		require.True(t, a.Valid())
		require.True(t, b.Valid())
		require.NotEqual(t, a, b)
		require.NotEqual(t, Draw, Resolve(a, b))
		seen[a] = true
	}
	assert.Len(t, seen, 3)
}

func TestParseMoveAndJSON(t *testing.T) {
	m, err := ParseMove(" Rock ")
	require.NoError(t, err)
	assert.Equal(t, Rock, m)

	_, err = ParseMove("lizard")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidMove))

	var payload struct {
		Move Move `json:"move"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"move":"scissors"}`), &payload))
	assert.Equal(t, Scissors, payload.Move)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"move":"scissors"}`, string(out))

	_, err = MoveFromTag(3)
	assert.Error(t, err)
}

func TestReferralCode(t *testing.T) {
	code := ReferralCode("wallet-alice")
	assert.Len(t, code, ReferralCodeLength)
	assert.Equal(t, code, ReferralCode("wallet-alice"))
	assert.NotEqual(t, code, ReferralCode("wallet-bob"))
	for _, c := range code {
		assert.True(t, (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'))
	}
}
