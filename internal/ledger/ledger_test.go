package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/game/rps"
	"github.com/wfunc/rps-arena/internal/models"
	"github.com/wfunc/rps-arena/internal/repository"
)

// LedgerTestSuite 账本测试套件
type LedgerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	ledger *Ledger
	ctx    context.Context
}

func (s *LedgerTestSuite) SetupTest() {
	s.db = repository.SetupTestDB()
	s.ledger = New(s.db, DefaultPolicy(), zap.NewNop())
	s.ctx = context.Background()
}

func (s *LedgerTestSuite) TearDownTest() {
	repository.CleanupTestDB(s.db)
}

func (s *LedgerTestSuite) requireCode(err error, code apperrors.ErrorCode) {
	s.Require().Error(err)
	s.Require().Equal(code, apperrors.GetCode(err), err.Error())
}

func (s *LedgerTestSuite) profiles(identities ...string) {
	for _, id := range identities {
		_, err := s.ledger.InitializeProfile(s.ctx, id)
		s.Require().NoError(err)
	}
}

func (s *LedgerTestSuite) points(identity string) int64 {
	p, err := s.ledger.GetProfile(s.ctx, identity)
	s.Require().NoError(err)
	return p.PointsBalance
}

func (s *LedgerTestSuite) balance(owner string) int64 {
	b, err := s.ledger.Balance(s.ctx, owner)
	s.Require().NoError(err)
	return b
}

// startMatch 创建并加入一局对局
func (s *LedgerTestSuite) startMatch(id string, currency models.Currency, stake int64, rounds int) {
	_, err := s.ledger.CreateMatch(s.ctx, CreateMatchParams{
		MatchID: id, Creator: "alice", Stake: stake, Currency: currency, RoundsToWin: rounds,
	})
	s.Require().NoError(err)
	_, err = s.ledger.JoinMatch(s.ctx, id, "bob")
	s.Require().NoError(err)
}

// play 双方提交承诺并揭示
func (s *LedgerTestSuite) play(id string, a, b rps.Move, nonceA, nonceB uint64) *RevealResult {
	_, err := s.ledger.SubmitMoveCommitment(s.ctx, id, "alice", rps.Commit(a, nonceA))
	s.Require().NoError(err)
	_, err = s.ledger.SubmitMoveCommitment(s.ctx, id, "bob", rps.Commit(b, nonceB))
	s.Require().NoError(err)
	res, err := s.ledger.RevealMove(s.ctx, id, "alice", a, nonceA)
	s.Require().NoError(err)
	s.False(res.RoundResolved)
	res, err = s.ledger.RevealMove(s.ctx, id, "bob", b, nonceB)
	s.Require().NoError(err)
	s.True(res.RoundResolved)
	return res
}

func (s *LedgerTestSuite) TestInitializeProfile() {
	p, err := s.ledger.InitializeProfile(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(300), p.PointsBalance)
	s.Len(p.ReferralCode, rps.ReferralCodeLength)

	_, err = s.ledger.InitializeProfile(s.ctx, "alice")
	s.requireCode(err, apperrors.ErrAlreadyExists)
	_, err = s.ledger.InitializeProfile(s.ctx, "  ")
	s.requireCode(err, apperrors.ErrInvalidParam)
}

func (s *LedgerTestSuite) TestCreateMatchValidation() {
	s.profiles("alice")
	base := CreateMatchParams{MatchID: "m1", Creator: "alice", Stake: 10, Currency: models.CurrencyPoints, RoundsToWin: 3}

	cases := []struct {
		name   string
		mutate func(p *CreateMatchParams)
		code   apperrors.ErrorCode
	}{
		{"empty id", func(p *CreateMatchParams) { p.MatchID = "" }, apperrors.ErrInvalidParam},
		{"long id", func(p *CreateMatchParams) { p.MatchID = "0123456789abcdef0123456789abcdefX" }, apperrors.ErrMatchIDTooLong},
		{"zero stake", func(p *CreateMatchParams) { p.Stake = 0 }, apperrors.ErrInvalidStake},
		{"zero rounds", func(p *CreateMatchParams) { p.RoundsToWin = 0 }, apperrors.ErrInvalidRoundsToWin},
		{"too many rounds", func(p *CreateMatchParams) { p.RoundsToWin = 11 }, apperrors.ErrInvalidRoundsToWin},
		{"currency", func(p *CreateMatchParams) { p.Currency = "gold" }, apperrors.ErrInvalidCurrency},
		{"no profile", func(p *CreateMatchParams) { p.Creator = "ghost" }, apperrors.ErrNotFound},
		{"insufficient", func(p *CreateMatchParams) { p.Stake = 301 }, apperrors.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			p := base
			tc.mutate(&p)
			_, err := s.ledger.CreateMatch(s.ctx, p)
			s.requireCode(err, tc.code)
		})
	}
	s.Equal(int64(300), s.points("alice"))

	_, err := s.ledger.CreateMatch(s.ctx, base)
	s.Require().NoError(err)
	s.Equal(int64(290), s.points("alice"))
	_, err = s.ledger.CreateMatch(s.ctx, base)
	s.requireCode(err, apperrors.ErrAlreadyExists)
}

func (s *LedgerTestSuite) TestJoinMatch() {
	s.profiles("alice", "bob", "carol")
	_, err := s.ledger.CreateMatch(s.ctx, CreateMatchParams{
		MatchID: "m1", Creator: "alice", Stake: 50, Currency: models.CurrencyPoints, RoundsToWin: 2,
	})
	s.Require().NoError(err)

	_, err = s.ledger.JoinMatch(s.ctx, "m1", "alice")
	s.requireCode(err, apperrors.ErrCannotJoinOwnGame)

	m, err := s.ledger.JoinMatch(s.ctx, "m1", "bob")
	s.Require().NoError(err)
	s.Equal(models.MatchInProgress, m.Status)
	s.Equal(1, m.CurrentRound)
	s.Equal(int64(250), s.points("bob"))

	_, err = s.ledger.JoinMatch(s.ctx, "m1", "carol")
	s.requireCode(err, apperrors.ErrMatchNotJoinable)
	_, err = s.ledger.JoinMatch(s.ctx, "missing", "carol")
	s.requireCode(err, apperrors.ErrNotFound)
}

func (s *LedgerTestSuite) TestPointsMatchSettlement() {
	s.profiles("alice", "bob")
	s.startMatch("m1", models.CurrencyPoints, 100, 1)

	res := s.play("m1", rps.Rock, rps.Scissors, 11, 22)
	s.Equal("a", res.Outcome)
	s.Equal(models.MatchFinished, res.Match.Status)
	s.Require().NotNil(res.Match.Winner)
	s.Equal("alice", *res.Match.Winner)

	settlement, err := s.ledger.FinalizeMatch(s.ctx, "m1")
	s.Require().NoError(err)
	s.Equal(Payout{TotalPot: 200, WinnerPayout: 190, PlatformFee: 10}, settlement.Payout)
	s.Equal(int64(390), s.points("alice"))
	s.Equal(int64(200), s.points("bob"))

	alice, _ := s.ledger.GetProfile(s.ctx, "alice")
	bob, _ := s.ledger.GetProfile(s.ctx, "bob")
	s.Equal(int64(1), alice.Wins)
	s.Equal(int64(190), alice.TotalPointsEarned)
	s.Equal(int64(1), bob.Losses)
	s.Equal(int64(1), bob.GamesPlayed)

	_, err = s.ledger.FinalizeMatch(s.ctx, "m1")
	s.requireCode(err, apperrors.ErrAlreadySettled)
	s.Equal(int64(390), s.points("alice"))

	m, err := s.ledger.GetMatch(s.ctx, "m1")
	s.Require().NoError(err)
	s.True(m.Settled)
	s.NotNil(m.SettledAt)
}

func (s *LedgerTestSuite) TestCommitRevealErrors() {
	s.profiles("alice", "bob", "mallory")
	_, err := s.ledger.CreateMatch(s.ctx, CreateMatchParams{
		MatchID: "m1", Creator: "alice", Stake: 10, Currency: models.CurrencyPoints, RoundsToWin: 2,
	})
	s.Require().NoError(err)

	_, err = s.ledger.SubmitMoveCommitment(s.ctx, "m1", "alice", rps.Commit(rps.Rock, 1))
	s.requireCode(err, apperrors.ErrInvalidState)

	_, err = s.ledger.JoinMatch(s.ctx, "m1", "bob")
	s.Require().NoError(err)

	_, err = s.ledger.SubmitMoveCommitment(s.ctx, "m1", "mallory", rps.Commit(rps.Rock, 1))
	s.requireCode(err, apperrors.ErrNotAParticipant)

	_, err = s.ledger.RevealMove(s.ctx, "m1", "alice", rps.Rock, 1)
	s.requireCode(err, apperrors.ErrNotCommitted)

	_, err = s.ledger.SubmitMoveCommitment(s.ctx, "m1", "alice", rps.Commit(rps.Rock, 1))
	s.Require().NoError(err)
	_, err = s.ledger.SubmitMoveCommitment(s.ctx, "m1", "alice", rps.Commit(rps.Paper, 2))
	s.requireCode(err, apperrors.ErrAlreadyCommitted)

	_, err = s.ledger.RevealMove(s.ctx, "m1", "alice", rps.Paper, 1)
	s.requireCode(err, apperrors.ErrInvalidReveal)
	_, err = s.ledger.RevealMove(s.ctx, "m1", "alice", rps.Rock, 2)
	s.requireCode(err, apperrors.ErrInvalidReveal)
	_, err = s.ledger.RevealMove(s.ctx, "m1", "alice", rps.Move(7), 1)
	s.requireCode(err, apperrors.ErrInvalidMove)

	res, err := s.ledger.RevealMove(s.ctx, "m1", "alice", rps.Rock, 1)
	s.Require().NoError(err)
	s.False(res.RoundResolved)

	_, err = s.ledger.SubmitMoveCommitment(s.ctx, "m1", "alice", rps.Commit(rps.Paper, 3))
	s.requireCode(err, apperrors.ErrAlreadyCommitted)
}

func (s *LedgerTestSuite) TestDrawAndNonceReuse() {
	s.profiles("alice", "bob")
	s.startMatch("m1", models.CurrencyPoints, 10, 2)

	res := s.play("m1", rps.Rock, rps.Rock, 7, 8)
	s.Equal("draw", res.Outcome)
	s.Equal(0, res.Match.PlayerOneWins)
	s.Equal(0, res.Match.PlayerTwoWins)
	s.Equal(2, res.Match.CurrentRound)
	s.Equal(models.MatchInProgress, res.Match.Status)

	_, err := s.ledger.SubmitMoveCommitment(s.ctx, "m1", "alice", rps.Commit(rps.Paper, 7))
	s.Require().NoError(err)
	_, err = s.ledger.RevealMove(s.ctx, "m1", "alice", rps.Paper, 7)
	s.requireCode(err, apperrors.ErrNonceReused)

	// 对手招式仍隐藏，承诺被清除后可换 nonce 重新提交
	_, err = s.ledger.SubmitMoveCommitment(s.ctx, "m1", "alice", rps.Commit(rps.Paper, 9))
	s.Require().NoError(err)
	_, err = s.ledger.RevealMove(s.ctx, "m1", "alice", rps.Paper, 9)
	s.Require().NoError(err)

	// 对手已揭示后不能借重复 nonce 换招
	_, err = s.ledger.SubmitMoveCommitment(s.ctx, "m1", "bob", rps.Commit(rps.Scissors, 8))
	s.Require().NoError(err)
	_, err = s.ledger.RevealMove(s.ctx, "m1", "bob", rps.Scissors, 8)
	s.requireCode(err, apperrors.ErrNonceReused)
	_, err = s.ledger.SubmitMoveCommitment(s.ctx, "m1", "bob", rps.Commit(rps.Rock, 10))
	s.requireCode(err, apperrors.ErrAlreadyCommitted)

	reveals, err := s.ledger.Reveals(s.ctx, "m1")
	s.Require().NoError(err)
	s.Len(reveals, 3)
}

func (s *LedgerTestSuite) TestStakeUpperBound() {
	s.profiles("alice")
	_, err := s.ledger.CreateMatch(s.ctx, CreateMatchParams{
		MatchID: "big", Creator: "alice", Stake: MaxStake + 1, Currency: models.CurrencyNative, RoundsToWin: 1,
	})
	s.requireCode(err, apperrors.ErrInvalidStake)

	payout := s.ledger.Policy().ComputePayout(MaxStake)
	s.Equal(MaxStake*2, payout.TotalPot)
	s.Equal(payout.TotalPot, payout.WinnerPayout+payout.PlatformFee)
	s.Positive(payout.PlatformFee)
}

func (s *LedgerTestSuite) TestBestOfThree() {
	s.profiles("alice", "bob")
	s.startMatch("m1", models.CurrencyPoints, 10, 2)

	res := s.play("m1", rps.Paper, rps.Scissors, 1, 2)
	s.Equal("b", res.Outcome)
	res = s.play("m1", rps.Paper, rps.Rock, 3, 4)
	s.Equal("a", res.Outcome)
	s.Equal(3, res.Match.CurrentRound)
	res = s.play("m1", rps.Scissors, rps.Rock, 5, 6)
	s.Equal(models.MatchFinished, res.Match.Status)
	s.Equal("bob", *res.Match.Winner)
	s.Equal(models.FinishThreshold, res.Match.FinishReason)

	_, err := s.ledger.SubmitMoveCommitment(s.ctx, "m1", "alice", rps.Commit(rps.Rock, 9))
	s.requireCode(err, apperrors.ErrInvalidState)
}

func (s *LedgerTestSuite) TestNativeMatchWithReferral() {
	s.profiles("alice", "bob", "carol")
	carol, err := s.ledger.GetProfile(s.ctx, "carol")
	s.Require().NoError(err)
	_, err = s.ledger.SetReferrer(s.ctx, "alice", carol.ReferralCode)
	s.Require().NoError(err)

	for _, id := range []string{"alice", "bob"} {
		_, err := s.ledger.Deposit(s.ctx, id, 1000)
		s.Require().NoError(err)
	}
	s.startMatch("n1", models.CurrencyNative, 100, 3)
	s.Equal(int64(900), s.balance("alice"))
	s.Equal(int64(200), s.balance(EscrowAccount("n1")))
	s.Equal(int64(300), s.points("alice"))

	_, err = s.ledger.Delegate(s.ctx, "n1", "alice")
	s.Require().NoError(err)
	m, err := s.ledger.Undelegate(s.ctx, "n1", "coordinator", &DelegationOutcome{
		CurrentRound: 4, PlayerOneWins: 3, PlayerTwoWins: 1,
	})
	s.Require().NoError(err)
	s.Equal(models.MatchFinished, m.Status)
	s.Equal("alice", *m.Winner)

	settlement, err := s.ledger.FinalizeMatch(s.ctx, "n1")
	s.Require().NoError(err)
	s.Equal(int64(2), settlement.ReferralCommission)
	s.Equal("carol", settlement.Referrer)
	s.Equal(int64(100), settlement.Bonus)

	s.Equal(int64(1090), s.balance("alice"))
	s.Equal(int64(900), s.balance("bob"))
	s.Equal(int64(2), s.balance("carol"))
	s.Equal(int64(8), s.balance("treasury"))
	s.Equal(int64(0), s.balance(EscrowAccount("n1")))
	s.Equal(int64(300), s.points("alice"))
	s.Equal(int64(300), s.points("bob"))
	alice, _ := s.ledger.GetProfile(s.ctx, "alice")
	s.Equal(int64(100), alice.TotalPointsEarned)

	carol, _ = s.ledger.GetProfile(s.ctx, "carol")
	s.Equal(int64(2), carol.ReferralEarnings)
	s.Equal(int64(1), carol.ReferralCount)

	entries, err := s.ledger.Entries(s.ctx, "n1")
	s.Require().NoError(err)
	kinds := map[models.EntryKind]int64{}
	for _, e := range entries {
		kinds[e.Kind] += e.Amount
	}
	s.Equal(int64(200), kinds[models.EntryEscrow])
	s.Equal(int64(190), kinds[models.EntryPayout])
	s.Equal(int64(8), kinds[models.EntryFee])
	s.Equal(int64(2), kinds[models.EntryReferral])

	stats, err := s.ledger.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(8), stats.NativeFees)
	s.Equal(int64(8), stats.TreasuryBalance)
	s.Equal(int64(1), stats.Matches[models.MatchFinished])
}

func (s *LedgerTestSuite) TestNativeInsufficientFunds() {
	s.profiles("alice", "bob")
	_, err := s.ledger.Deposit(s.ctx, "alice", 50)
	s.Require().NoError(err)
	_, err = s.ledger.CreateMatch(s.ctx, CreateMatchParams{
		MatchID: "n1", Creator: "alice", Stake: 100, Currency: models.CurrencyNative, RoundsToWin: 1,
	})
	s.requireCode(err, apperrors.ErrInsufficientFunds)
	s.Equal(int64(50), s.balance("alice"))

	_, err = s.ledger.Deposit(s.ctx, "alice", 0)
	s.requireCode(err, apperrors.ErrInvalidStake)
}

func (s *LedgerTestSuite) TestDelegation() {
	s.profiles("alice", "bob", "mallory")
	_, err := s.ledger.CreateMatch(s.ctx, CreateMatchParams{
		MatchID: "m1", Creator: "alice", Stake: 10, Currency: models.CurrencyPoints, RoundsToWin: 3,
	})
	s.Require().NoError(err)
	_, err = s.ledger.Delegate(s.ctx, "m1", "alice")
	s.requireCode(err, apperrors.ErrInvalidState)

	_, err = s.ledger.JoinMatch(s.ctx, "m1", "bob")
	s.Require().NoError(err)
	_, err = s.ledger.Delegate(s.ctx, "m1", "mallory")
	s.requireCode(err, apperrors.ErrNotAuthorityHolder)

	m, err := s.ledger.Delegate(s.ctx, "m1", "bob")
	s.Require().NoError(err)
	s.Equal(models.MatchDelegated, m.Status)
	s.Equal("coordinator", m.Authority)

	_, err = s.ledger.SubmitMoveCommitment(s.ctx, "m1", "alice", rps.Commit(rps.Rock, 1))
	s.requireCode(err, apperrors.ErrInvalidState)
	_, err = s.ledger.Undelegate(s.ctx, "m1", "alice", nil)
	s.requireCode(err, apperrors.ErrNotAuthorityHolder)

	_, err = s.ledger.Undelegate(s.ctx, "m1", "coordinator", &DelegationOutcome{PlayerOneWins: 1, PlayerTwoWins: 1, CurrentRound: 3})
	s.Require().NoError(err)
	_, err = s.ledger.Delegate(s.ctx, "m1", "alice")
	s.Require().NoError(err)
	_, err = s.ledger.Undelegate(s.ctx, "m1", "coordinator", &DelegationOutcome{PlayerOneWins: 0, PlayerTwoWins: 1})
	s.requireCode(err, apperrors.ErrInvalidParam)

	m, err = s.ledger.Undelegate(s.ctx, "m1", "coordinator", nil)
	s.Require().NoError(err)
	s.Equal(models.MatchInProgress, m.Status)
	s.Empty(m.Authority)
	s.Equal(1, m.PlayerOneWins)
	s.Equal(3, m.CurrentRound)
}

func (s *LedgerTestSuite) TestUndelegateForfeit() {
	s.profiles("alice", "bob")
	s.startMatch("m1", models.CurrencyPoints, 100, 3)
	_, err := s.ledger.Delegate(s.ctx, "m1", "alice")
	s.Require().NoError(err)

	_, err = s.ledger.Undelegate(s.ctx, "m1", "coordinator", &DelegationOutcome{Winner: "bob", Reason: models.FinishThreshold})
	s.requireCode(err, apperrors.ErrInvalidParam)

	m, err := s.ledger.Undelegate(s.ctx, "m1", "coordinator", &DelegationOutcome{
		PlayerOneWins: 1, Winner: "bob", Reason: models.FinishDisconnect,
	})
	s.Require().NoError(err)
	s.Equal(models.MatchFinished, m.Status)
	s.Equal(models.FinishDisconnect, m.FinishReason)

	_, err = s.ledger.FinalizeMatch(s.ctx, "m1")
	s.Require().NoError(err)
	s.Equal(int64(390), s.points("bob"))
	s.Equal(int64(200), s.points("alice"))
}

func (s *LedgerTestSuite) TestAbandonAndRefund() {
	s.profiles("alice", "bob", "mallory")
	s.startMatch("m1", models.CurrencyPoints, 100, 3)

	_, err := s.ledger.FinalizeAbandonedMatch(s.ctx, "m1")
	s.requireCode(err, apperrors.ErrInvalidState)
	_, err = s.ledger.AbandonMatch(s.ctx, "m1", "mallory")
	s.requireCode(err, apperrors.ErrNotAParticipant)

	m, err := s.ledger.AbandonMatch(s.ctx, "m1", "bob")
	s.Require().NoError(err)
	s.Equal(models.MatchAbandoned, m.Status)

	_, err = s.ledger.FinalizeMatch(s.ctx, "m1")
	s.requireCode(err, apperrors.ErrInvalidState)

	settlement, err := s.ledger.FinalizeAbandonedMatch(s.ctx, "m1")
	s.Require().NoError(err)
	s.Equal(map[string]int64{"alice": 100, "bob": 100}, settlement.Refunds)
	s.Equal(int64(300), s.points("alice"))
	s.Equal(int64(300), s.points("bob"))

	alice, _ := s.ledger.GetProfile(s.ctx, "alice")
	s.Equal(int64(1), alice.GamesPlayed)
	s.Zero(alice.Wins)

	_, err = s.ledger.FinalizeAbandonedMatch(s.ctx, "m1")
	s.requireCode(err, apperrors.ErrAlreadySettled)
	_, err = s.ledger.AbandonMatch(s.ctx, "m1", "alice")
	s.requireCode(err, apperrors.ErrInvalidState)
}

func (s *LedgerTestSuite) TestAbandonWaitingAndDelegated() {
	s.profiles("alice", "bob")
	_, err := s.ledger.Deposit(s.ctx, "alice", 100)
	s.Require().NoError(err)
	_, err = s.ledger.CreateMatch(s.ctx, CreateMatchParams{
		MatchID: "w1", Creator: "alice", Stake: 100, Currency: models.CurrencyNative, RoundsToWin: 1,
	})
	s.Require().NoError(err)
	_, err = s.ledger.AbandonMatch(s.ctx, "w1", "alice")
	s.Require().NoError(err)
	_, err = s.ledger.FinalizeAbandonedMatch(s.ctx, "w1")
	s.Require().NoError(err)
	s.Equal(int64(100), s.balance("alice"))
	alice, _ := s.ledger.GetProfile(s.ctx, "alice")
	s.Zero(alice.GamesPlayed)

	s.startMatch("d1", models.CurrencyPoints, 10, 1)
	_, err = s.ledger.Delegate(s.ctx, "d1", "alice")
	s.Require().NoError(err)
	m, err := s.ledger.AbandonMatch(s.ctx, "d1", "coordinator")
	s.Require().NoError(err)
	s.Empty(m.Authority)

	s.startMatch("d2", models.CurrencyPoints, 10, 1)
	_, err = s.ledger.AbandonMatch(s.ctx, "d2", "coordinator")
	s.requireCode(err, apperrors.ErrNotAParticipant)
	_, err = s.ledger.Delegate(s.ctx, "d2", "bob")
	s.Require().NoError(err)

	// 委托期间参与者不能放弃，结果由协调者交回
	for _, id := range []string{"alice", "bob"} {
		_, err = s.ledger.AbandonMatch(s.ctx, "d2", id)
		s.requireCode(err, apperrors.ErrNotAuthorityHolder)
	}
	m, err = s.ledger.Undelegate(s.ctx, "d2", "coordinator", &DelegationOutcome{PlayerOneWins: 1})
	s.Require().NoError(err)
	s.Equal(models.MatchFinished, m.Status)
	_, err = s.ledger.FinalizeMatch(s.ctx, "d2")
	s.Require().NoError(err)
	s.Equal(int64(299), s.points("alice"))
	s.Equal(int64(280), s.points("bob"))
}

func (s *LedgerTestSuite) TestSetReferrer() {
	s.profiles("alice", "bob", "carol")
	bob, _ := s.ledger.GetProfile(s.ctx, "bob")
	alice, _ := s.ledger.GetProfile(s.ctx, "alice")

	_, err := s.ledger.SetReferrer(s.ctx, "alice", "ZZZZZZZZ")
	s.requireCode(err, apperrors.ErrInvalidReferralCode)
	_, err = s.ledger.SetReferrer(s.ctx, "alice", alice.ReferralCode)
	s.requireCode(err, apperrors.ErrCannotReferYourself)

	p, err := s.ledger.SetReferrer(s.ctx, "alice", bob.ReferralCode)
	s.Require().NoError(err)
	s.Equal("bob", *p.ReferredBy)

	carol, _ := s.ledger.GetProfile(s.ctx, "carol")
	_, err = s.ledger.SetReferrer(s.ctx, "alice", carol.ReferralCode)
	s.requireCode(err, apperrors.ErrReferrerAlreadySet)
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func TestComputePayout(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		stake int64
		want  Payout
	}{
		{100, Payout{TotalPot: 200, WinnerPayout: 190, PlatformFee: 10}},
		{1, Payout{TotalPot: 2, WinnerPayout: 2, PlatformFee: 0}},
		{1000000, Payout{TotalPot: 2000000, WinnerPayout: 1900000, PlatformFee: 100000}},
	}
	for _, tc := range cases {
		got := p.ComputePayout(tc.stake)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, got.TotalPot, got.WinnerPayout+got.PlatformFee)
	}

	assert.Equal(t, int64(2), p.ReferralCommission(200, 10))
	assert.Equal(t, int64(10), p.ReferralCommission(200000, 10))
}
