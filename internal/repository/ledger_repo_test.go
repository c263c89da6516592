package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/models"
)

// LedgerRepositoryTestSuite 账本仓储测试套件
type LedgerRepositoryTestSuite struct {
	suite.Suite
	db    *gorm.DB
	repos *Repositories
	ctx   context.Context
}

func (s *LedgerRepositoryTestSuite) SetupTest() {
	s.db = SetupTestDB()
	s.repos = NewRepositories(s.db)
	s.ctx = context.Background()
}

func (s *LedgerRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(s.db)
}

func (s *LedgerRepositoryTestSuite) createProfile(identity string, points int64) *models.Profile {
	p := &models.Profile{Identity: identity, PointsBalance: points, ReferralCode: identity[:1] + "CODE123"}
	s.Require().NoError(s.repos.Profiles.Create(s.ctx, p))
	return p
}

func (s *LedgerRepositoryTestSuite) TestProfilePoints() {
	s.createProfile("alice", 300)

	s.NoError(s.repos.Profiles.DeductPoints(s.ctx, "alice", 100))
	err := s.repos.Profiles.DeductPoints(s.ctx, "alice", 1000)
	s.True(apperrors.Is(err, apperrors.ErrInsufficientFunds))

	s.NoError(s.repos.Profiles.AddPoints(s.ctx, "alice", 50))
	p, err := s.repos.Profiles.FindByIdentity(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(250), p.PointsBalance)

	err = s.repos.Profiles.AddPoints(s.ctx, "nobody", 1)
	s.True(apperrors.Is(err, apperrors.ErrNotFound))
}

func (s *LedgerRepositoryTestSuite) TestProfileRecordResult() {
	s.createProfile("alice", 0)
	s.NoError(s.repos.Profiles.RecordResult(s.ctx, "alice", true, false, 95))
	s.NoError(s.repos.Profiles.RecordResult(s.ctx, "alice", false, true, 0))
	s.NoError(s.repos.Profiles.RecordResult(s.ctx, "alice", false, false, 0))

	p, err := s.repos.Profiles.FindByIdentity(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(3), p.GamesPlayed)
	s.Equal(int64(1), p.Wins)
	s.Equal(int64(1), p.Losses)
	s.Equal(int64(95), p.TotalPointsEarned)
}

func (s *LedgerRepositoryTestSuite) TestProfileLookup() {
	s.createProfile("bob", 0)

	exists, err := s.repos.Profiles.Exists(s.ctx, "bob")
	s.NoError(err)
	s.True(exists)

	found, err := s.repos.Profiles.FindByReferralCode(s.ctx, "bCODE123")
	s.Require().NoError(err)
	s.Equal("bob", found.Identity)

	_, err = s.repos.Profiles.FindByIdentity(s.ctx, "carol")
	s.True(apperrors.Is(err, apperrors.ErrNotFound))

	locked, err := s.repos.Profiles.LockForUpdate(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal("bob", locked.Identity)
}

func (s *LedgerRepositoryTestSuite) TestAccountCreditDebit() {
	balance, err := s.repos.Accounts.Balance(s.ctx, "alice")
	s.NoError(err)
	s.Zero(balance)

	s.NoError(s.repos.Accounts.Credit(s.ctx, "alice", 1000))
	s.NoError(s.repos.Accounts.Credit(s.ctx, "alice", 500))
	s.NoError(s.repos.Accounts.Debit(s.ctx, "alice", 700))

	err = s.repos.Accounts.Debit(s.ctx, "alice", 10000)
	s.True(apperrors.Is(err, apperrors.ErrInsufficientFunds))

	err = s.repos.Accounts.Debit(s.ctx, "ghost", 1)
	s.True(apperrors.Is(err, apperrors.ErrInsufficientFunds))

	balance, err = s.repos.Accounts.Balance(s.ctx, "alice")
	s.NoError(err)
	s.Equal(int64(800), balance)
}

func (s *LedgerRepositoryTestSuite) TestMatchLifecycle() {
	m := &models.Match{
		MatchID:     "m-1",
		PlayerOne:   "alice",
		Stake:       50,
		Currency:    models.CurrencyPoints,
		RoundsToWin: 3,
		Status:      models.MatchWaitingForPlayer,
	}
	s.Require().NoError(s.repos.Matches.Create(s.ctx, m))

	exists, err := s.repos.Matches.Exists(s.ctx, "m-1")
	s.NoError(err)
	s.True(exists)

	locked, err := s.repos.Matches.LockForUpdate(s.ctx, "m-1")
	s.Require().NoError(err)
	bob := "bob"
	locked.PlayerTwo = &bob
	locked.Status = models.MatchInProgress
	s.NoError(s.repos.Matches.Save(s.ctx, locked))

	found, err := s.repos.Matches.FindByMatchID(s.ctx, "m-1")
	s.Require().NoError(err)
	s.Equal(models.MatchInProgress, found.Status)
	s.True(found.IsParticipant("bob"))
	s.Equal("alice", found.Opponent("bob"))

	counts, err := s.repos.Matches.CountByStatus(s.ctx)
	s.NoError(err)
	s.Equal(int64(1), counts[models.MatchInProgress])

	stale, err := s.repos.Matches.ListByStatus(s.ctx, models.MatchInProgress, time.Now().Add(time.Minute))
	s.NoError(err)
	s.Len(stale, 1)

	_, err = s.repos.Matches.FindByMatchID(s.ctx, "missing")
	s.True(apperrors.Is(err, apperrors.ErrNotFound))
}

func (s *LedgerRepositoryTestSuite) TestRevealNonce() {
	s.NoError(s.repos.Reveals.Create(s.ctx, &models.MatchReveal{MatchID: "m-1", Identity: "alice", Nonce: "2a", Round: 1}))

	used, err := s.repos.Reveals.NonceUsed(s.ctx, "m-1", "alice", "2a")
	s.NoError(err)
	s.True(used)

	used, err = s.repos.Reveals.NonceUsed(s.ctx, "m-1", "bob", "2a")
	s.NoError(err)
	s.False(used)

	// 唯一索引兜底
	s.Error(s.repos.Reveals.Create(s.ctx, &models.MatchReveal{MatchID: "m-1", Identity: "alice", Nonce: "2a", Round: 2}))
}

func (s *LedgerRepositoryTestSuite) TestEntriesAndHistory() {
	s.NoError(s.repos.Entries.Create(s.ctx, &models.LedgerEntry{EntryNo: "e1", MatchID: "m-1", Kind: models.EntryFee, Currency: models.CurrencyNative, Amount: 5}))
	s.NoError(s.repos.Entries.Create(s.ctx, &models.LedgerEntry{EntryNo: "e2", MatchID: "m-2", Kind: models.EntryFee, Currency: models.CurrencyNative, Amount: 7}))

	total, err := s.repos.Entries.SumByKind(s.ctx, models.EntryFee, models.CurrencyNative)
	s.NoError(err)
	s.Equal(int64(12), total)

	entries, err := s.repos.Entries.ListByMatch(s.ctx, "m-1")
	s.NoError(err)
	s.Len(entries, 1)

	h := &models.MatchHistory{MatchID: "m-1", PlayerOne: "alice", PlayerTwo: "bob", Winner: "alice", FinishedAt: time.Now()}
	s.NoError(s.repos.History.Save(s.ctx, h))
	// 重复写入被忽略
	s.NoError(s.repos.History.Save(s.ctx, &models.MatchHistory{MatchID: "m-1", Winner: "bob", FinishedAt: time.Now()}))

	found, err := s.repos.History.FindByMatchID(s.ctx, "m-1")
	s.Require().NoError(err)
	s.Equal("alice", found.Winner)

	p := NewPagination(1, 10)
	list, err := s.repos.History.ListByIdentity(s.ctx, "bob", p)
	s.NoError(err)
	s.Len(list, 1)
	s.Equal(int64(1), p.Total)
}

func (s *LedgerRepositoryTestSuite) TestWithTxRollback() {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		if err := repos.Accounts.Credit(s.ctx, "alice", 100); err != nil {
			return err
		}
		return repos.Accounts.Debit(s.ctx, "alice", 1000)
	})
	s.Error(err)

	balance, err := s.repos.Accounts.Balance(s.ctx, "alice")
	s.NoError(err)
	s.Zero(balance)
}

func TestLedgerRepositorySuite(t *testing.T) {
	suite.Run(t, new(LedgerRepositoryTestSuite))
}
