package rps

import "crypto/sha256"

// ReferralCodeLength 推荐码长度
const ReferralCodeLength = 8

// ReferralCode 由身份派生 8 位大写字母数字推荐码
func ReferralCode(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	code := make([]byte, ReferralCodeLength)
	for i := range code {
		b := sum[i]
		if b%36 < 26 {
			code[i] = 'A' + b%26
		} else {
			code[i] = '0' + b%10
		}
	}
	return string(code)
}
