package ledger

import (
	"context"
	"strings"

	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/game/rps"
	"github.com/wfunc/rps-arena/internal/models"
	"github.com/wfunc/rps-arena/internal/repository"
)

// InitializeProfile 创建玩家档案并发放初始积分，每个身份只能创建一次
func (l *Ledger) InitializeProfile(ctx context.Context, identity string) (*models.Profile, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "身份不能为空")
	}

	var profile *models.Profile
	err := l.exec(ctx, "initialize_profile", "", identity, func(r *repository.Repositories) error {
		exists, err := r.Profiles.Exists(ctx, identity)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.New(apperrors.ErrAlreadyExists, "档案已存在: "+identity)
		}

		profile = &models.Profile{
			Identity:      identity,
			PointsBalance: l.policy.InitialPoints,
			ReferralCode:  rps.ReferralCode(identity),
		}
		if err := r.Profiles.Create(ctx, profile); err != nil {
			return err
		}
		if l.policy.InitialPoints == 0 {
			return nil
		}
		return journal(ctx, r, models.LedgerEntry{
			Kind:     models.EntryGrant,
			Currency: models.CurrencyPoints,
			To:       identity,
			Amount:   l.policy.InitialPoints,
			Memo:     "初始积分",
		})
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// SetReferrer 通过推荐码绑定推荐人，只能绑定一次
func (l *Ledger) SetReferrer(ctx context.Context, identity, code string) (*models.Profile, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, apperrors.New(apperrors.ErrInvalidReferralCode)
	}

	var profile *models.Profile
	err := l.exec(ctx, "set_referrer", "", identity, func(r *repository.Repositories) error {
		var err error
		profile, err = r.Profiles.LockForUpdate(ctx, identity)
		if err != nil {
			return err
		}
		if profile.ReferredBy != nil {
			return apperrors.New(apperrors.ErrReferrerAlreadySet)
		}

		referrer, err := r.Profiles.FindByReferralCode(ctx, code)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return apperrors.New(apperrors.ErrInvalidReferralCode, code)
			}
			return err
		}
		if referrer.Identity == identity {
			return apperrors.New(apperrors.ErrCannotReferYourself)
		}

		profile.ReferredBy = &referrer.Identity
		if err := r.Profiles.Save(ctx, profile); err != nil {
			return err
		}
		referrer.ReferralCount++
		return r.Profiles.Save(ctx, referrer)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Deposit 向原生代币账户充值
func (l *Ledger) Deposit(ctx context.Context, owner string, amount int64) (int64, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return 0, apperrors.New(apperrors.ErrInvalidParam, "账户不能为空")
	}
	if amount <= 0 {
		return 0, apperrors.New(apperrors.ErrInvalidStake, "充值金额必须为正")
	}

	var balance int64
	err := l.exec(ctx, "deposit", "", owner, func(r *repository.Repositories) error {
		if err := r.Accounts.Credit(ctx, owner, amount); err != nil {
			return err
		}
		if err := journal(ctx, r, models.LedgerEntry{
			Kind:     models.EntryDeposit,
			Currency: models.CurrencyNative,
			To:       owner,
			Amount:   amount,
		}); err != nil {
			return err
		}
		var err error
		balance, err = r.Accounts.Balance(ctx, owner)
		return err
	})
	return balance, err
}
