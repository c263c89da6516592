package rps

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"strconv"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
)

// DigestSize 承诺摘要长度
const DigestSize = sha256.Size

// Digest 承诺摘要
type Digest [DigestSize]byte

// Commit 计算承诺：SHA-256(招式标签 || nonce 小端 8 字节)
func Commit(move Move, nonce uint64) Digest {
	var buf [9]byte
	buf[0] = byte(move)
	binary.LittleEndian.PutUint64(buf[1:], nonce)
	return sha256.Sum256(buf[:])
}

// Verify 重新计算承诺并逐字节比较，非法招式一律失败
func Verify(digest Digest, move Move, nonce uint64) bool {
	if !move.Valid() {
		return false
	}
	expected := Commit(move, nonce)
	return subtle.ConstantTimeCompare(expected[:], digest[:]) == 1
}

// String 十六进制表示
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest 解析十六进制摘要
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, apperrors.Wrap(err, apperrors.ErrInvalidParam, "承诺不是合法的十六进制")
	}
	if len(raw) != DigestSize {
		return d, apperrors.Newf(apperrors.ErrInvalidParam, "承诺长度应为 %d 字节，实际 %d", DigestSize, len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

// FormatNonce nonce 的存储格式
func FormatNonce(nonce uint64) string {
	return strconv.FormatUint(nonce, 16)
}
