// Package rps 石头剪刀布的招式、承诺编码与回合判定。
// 账本层与实时层共用本包，保证两边的判定完全一致。
package rps

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"strings"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
)

// Move 招式，数值即承诺编码中的 1 字节标签
type Move uint8

const (
	Rock     Move = 0
	Paper    Move = 1
	Scissors Move = 2
)

var moveNames = [...]string{"rock", "paper", "scissors"}

// AllMoves 全部招式
var AllMoves = []Move{Rock, Paper, Scissors}

// Valid 是否为合法招式
func (m Move) Valid() bool {
	return m <= Scissors
}

// String 招式名称
func (m Move) String() string {
	if !m.Valid() {
		return "unknown"
	}
	return moveNames[m]
}

// Beats 是否克制对方
func (m Move) Beats(other Move) bool {
	return m.Valid() && other.Valid() && (m+3-other)%3 == 1
}

// ParseMove 解析招式名称（大小写不敏感）
func ParseMove(s string) (Move, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rock":
		return Rock, nil
	case "paper":
		return Paper, nil
	case "scissors":
		return Scissors, nil
	}
	return 0, apperrors.Newf(apperrors.ErrInvalidMove, "未知招式 %q", s)
}

// MoveFromTag 由标签字节得到招式
func MoveFromTag(tag int) (Move, error) {
	if tag < 0 || tag > int(Scissors) {
		return 0, apperrors.Newf(apperrors.ErrInvalidMove, "未知招式标签 %d", tag)
	}
	return Move(tag), nil
}

// MarshalText 实现 encoding.TextMarshaler
func (m Move) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, apperrors.Newf(apperrors.ErrInvalidMove, "未知招式标签 %d", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (m *Move) UnmarshalText(text []byte) error {
	parsed, err := ParseMove(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// RandomMove 随机招式
func RandomMove() Move {
	return Move(randIntn(3))
}

// DistinctMoves 两个不同的随机招式，保证回合分出胜负
func DistinctMoves() (Move, Move) {
	a := RandomMove()
	b := Move((int(a) + 1 + randIntn(2)) % 3)
	return a, b
}

// RandomNonce 随机 nonce
func RandomNonce() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint64(buf[:])
}

func randIntn(n int64) int {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		panic(err)
	}
	return int(v.Int64())
}
