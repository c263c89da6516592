package rps

// Outcome 回合结果
type Outcome int

const (
	Draw Outcome = iota
	WinnerA
	WinnerB
)

// String 结果名称
func (o Outcome) String() string {
	switch o {
	case WinnerA:
		return "a"
	case WinnerB:
		return "b"
	default:
		return "draw"
	}
}

// Resolve 判定回合胜负
func Resolve(a, b Move) Outcome {
	switch {
	case a == b:
		return Draw
	case a.Beats(b):
		return WinnerA
	default:
		return WinnerB
	}
}
