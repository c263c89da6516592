package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/rps-arena/internal/config"
	apperrors "github.com/wfunc/rps-arena/internal/errors"
	"github.com/wfunc/rps-arena/internal/game"
	"github.com/wfunc/rps-arena/internal/game/rps"
	"github.com/wfunc/rps-arena/internal/ledger"
	"github.com/wfunc/rps-arena/internal/models"
	"github.com/wfunc/rps-arena/internal/repository"
	"github.com/wfunc/rps-arena/internal/service"
	"github.com/wfunc/rps-arena/internal/utils"
	ws "github.com/wfunc/rps-arena/internal/websocket"
)

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *apperrors.AppError `json:"error"`
	Kind    apperrors.Kind      `json:"kind"`
}

// RouterTestSuite REST 接口测试套件
type RouterTestSuite struct {
	suite.Suite
	db          *gorm.DB
	ledger      *ledger.Ledger
	coordinator *game.Coordinator
	auth        service.AuthService
	router      *Router
	tokens      map[string]string
}

func (suite *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	hash, err := utils.HashPassword("s3cret")
	suite.Require().NoError(err)
	var security config.SecurityConfig
	security.JWT = config.JWTConfig{Secret: "test-secret", Issuer: "rps-arena", ExpireHours: 1}
	security.Operator = config.OperatorConfig{Username: "ops", PasswordHash: hash}

	suite.db = repository.SetupTestDB()
	suite.ledger = ledger.New(suite.db, ledger.DefaultPolicy(), zap.NewNop())
	hub := ws.NewHub(nil, ws.DefaultOptions(), zap.NewNop())
	suite.coordinator = game.NewCoordinator(&game.CoordinatorConfig{
		Ledger:   suite.ledger,
		Notifier: hub,
		History:  repository.NewHistoryRepository(suite.db),
		Logger:   zap.NewNop(),
	})
	suite.auth = service.NewAuthService(security, zap.NewNop())
	suite.router = NewRouter(&Dependencies{
		DB:          suite.db,
		Ledger:      suite.ledger,
		Coordinator: suite.coordinator,
		Hub:         hub,
		Auth:        suite.auth,
		Logger:      zap.NewNop(),
	})

	suite.tokens = make(map[string]string)
	for _, id := range []string{"alice", "bob"} {
		resp, err := suite.auth.IssueToken(id, utils.RolePlayer)
		suite.Require().NoError(err)
		suite.tokens[id] = resp.Token
	}
}

func (suite *RouterTestSuite) TearDownTest() {
	repository.CleanupTestDB(suite.db)
}

func (suite *RouterTestSuite) do(method, path, identity string, body interface{}) (int, *envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token, ok := suite.tokens[identity]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	suite.router.GetEngine().ServeHTTP(w, req)

	var env envelope
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, &env
}

func (suite *RouterTestSuite) ok(method, path, identity string, body, out interface{}) {
	code, env := suite.do(method, path, identity, body)
	suite.Require().Equal(http.StatusOK, code, "%s %s: %+v", method, path, env.Error)
	suite.Require().True(env.Success)
	if out != nil {
		suite.Require().NoError(json.Unmarshal(env.Data, out))
	}
}

func (suite *RouterTestSuite) TestHealth() {
	w := httptest.NewRecorder()
	suite.router.GetEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "healthy")
}

func (suite *RouterTestSuite) TestCommitRevealMatchOverREST() {
	suite.ok(http.MethodPost, "/api/v1/profiles", "alice", nil, nil)
	suite.ok(http.MethodPost, "/api/v1/profiles", "bob", nil, nil)

	suite.ok(http.MethodPost, "/api/v1/matches", "alice", map[string]interface{}{
		"match_id":      "rest-1",
		"stake":         100,
		"currency":      "points",
		"rounds_to_win": 1,
	}, nil)
	suite.ok(http.MethodPost, "/api/v1/matches/rest-1/join", "bob", nil, nil)

	moves := map[string]rps.Move{"alice": rps.Paper, "bob": rps.Rock}
	nonces := map[string]uint64{"alice": 1<<63 + 7, "bob": 42}
	for _, id := range []string{"alice", "bob"} {
		digest := rps.Commit(moves[id], nonces[id])
		suite.ok(http.MethodPost, "/api/v1/matches/rest-1/commit", id, CommitRequest{Commitment: digest.String()}, nil)
	}
	suite.ok(http.MethodPost, "/api/v1/matches/rest-1/reveal", "alice", map[string]string{
		"move": "paper", "nonce": strconv.FormatUint(nonces["alice"], 10),
	}, nil)

	var result ledger.RevealResult
	suite.ok(http.MethodPost, "/api/v1/matches/rest-1/reveal", "bob", map[string]string{
		"move": "rock", "nonce": "42",
	}, &result)
	suite.True(result.RoundResolved)
	suite.Equal(models.MatchFinished, result.Match.Status)

	var settlement ledger.Settlement
	suite.ok(http.MethodPost, "/api/v1/matches/rest-1/finalize", "bob", nil, &settlement)
	suite.Equal("alice", settlement.Winner)
	suite.EqualValues(190, settlement.Payout.WinnerPayout)

	var account AccountResponse
	suite.ok(http.MethodGet, "/api/v1/accounts/me", "alice", nil, &account)
	suite.EqualValues(390, account.PointsBalance)

	var entries []models.LedgerEntry
	suite.ok(http.MethodGet, "/api/v1/matches/rest-1/entries", "", nil, &entries)
	suite.NotEmpty(entries)

	code, env := suite.do(http.MethodPost, "/api/v1/matches/rest-1/finalize", "alice", nil)
	suite.Equal(http.StatusConflict, code)
	suite.Equal(apperrors.KindAlreadySettled, env.Kind)
}

func (suite *RouterTestSuite) TestErrorMapping() {
	code, env := suite.do(http.MethodPost, "/api/v1/profiles", "", nil)
	suite.Equal(http.StatusUnauthorized, code)
	suite.Equal(apperrors.ErrAuthentication, env.Error.Code)

	suite.tokens["mallory"] = "not-a-token"
	code, env = suite.do(http.MethodPost, "/api/v1/profiles", "mallory", nil)
	suite.Equal(http.StatusUnauthorized, code)
	suite.Equal(apperrors.ErrTokenInvalid, env.Error.Code)

	code, env = suite.do(http.MethodGet, "/api/v1/matches/nope", "", nil)
	suite.Equal(http.StatusNotFound, code)
	suite.Equal(apperrors.KindNotFound, env.Kind)

	suite.ok(http.MethodPost, "/api/v1/profiles", "alice", nil, nil)
	code, env = suite.do(http.MethodPost, "/api/v1/profiles", "alice", nil)
	suite.Equal(http.StatusConflict, code)
	suite.Equal(apperrors.ErrAlreadyExists, env.Error.Code)

	code, env = suite.do(http.MethodPost, "/api/v1/matches", "alice", map[string]interface{}{
		"match_id": "bad", "stake": 0, "currency": "points", "rounds_to_win": 1,
	})
	suite.Equal(http.StatusBadRequest, code)
	suite.Equal(apperrors.ErrInvalidStake, env.Error.Code)

	code, env = suite.do(http.MethodPost, "/api/v1/matches", "alice", map[string]interface{}{
		"match_id": "rich", "stake": 1000, "currency": "points", "rounds_to_win": 1,
	})
	suite.Equal(http.StatusPaymentRequired, code)
	suite.Equal(apperrors.KindInsufficientFunds, env.Kind)

	code, env = suite.do(http.MethodPost, "/api/v1/matches/x/commit", "alice", CommitRequest{Commitment: "zz"})
	suite.Equal(http.StatusBadRequest, code)
	suite.Equal(apperrors.ErrInvalidParam, env.Error.Code)

	code, _ = suite.do(http.MethodGet, "/api/v1/admin/stats", "alice", nil)
	suite.Equal(http.StatusForbidden, code)

	code, _ = suite.do(http.MethodGet, "/ws", "", nil)
	suite.Equal(http.StatusUnauthorized, code)

	code, env = suite.do(http.MethodGet, "/nowhere", "", nil)
	suite.Equal(http.StatusNotFound, code)
}

func (suite *RouterTestSuite) TestRevealMismatch() {
	suite.ok(http.MethodPost, "/api/v1/profiles", "alice", nil, nil)
	suite.ok(http.MethodPost, "/api/v1/profiles", "bob", nil, nil)
	suite.ok(http.MethodPost, "/api/v1/matches", "alice", map[string]interface{}{
		"match_id": "rest-2", "stake": 10, "currency": "points", "rounds_to_win": 2,
	}, nil)
	suite.ok(http.MethodPost, "/api/v1/matches/rest-2/join", "bob", nil, nil)
	digest := rps.Commit(rps.Scissors, 9)
	suite.ok(http.MethodPost, "/api/v1/matches/rest-2/commit", "alice", CommitRequest{Commitment: digest.String()}, nil)

	code, env := suite.do(http.MethodPost, "/api/v1/matches/rest-2/reveal", "alice", map[string]string{"move": "rock", "nonce": "9"})
	suite.Equal(http.StatusBadRequest, code)
	suite.Equal(apperrors.KindInvalidReveal, env.Kind)

	code, env = suite.do(http.MethodPost, "/api/v1/matches/rest-2/reveal", "alice", map[string]string{"move": "lizard", "nonce": "9"})
	suite.Equal(http.StatusBadRequest, code)
	suite.Equal(apperrors.ErrInvalidMove, env.Error.Code)

	var match models.Match
	suite.ok(http.MethodPost, "/api/v1/matches/rest-2/abandon", "bob", nil, &match)
	suite.Equal(models.MatchAbandoned, match.Status)

	var settlement ledger.Settlement
	suite.ok(http.MethodPost, "/api/v1/matches/rest-2/finalize-abandoned", "alice", nil, &settlement)
	suite.EqualValues(10, settlement.Refunds["alice"])
	suite.EqualValues(10, settlement.Refunds["bob"])
}

func (suite *RouterTestSuite) TestDelegationOverREST() {
	suite.ok(http.MethodPost, "/api/v1/profiles", "alice", nil, nil)
	suite.ok(http.MethodPost, "/api/v1/profiles", "bob", nil, nil)
	suite.ok(http.MethodPost, "/api/v1/matches", "alice", map[string]interface{}{
		"match_id": "rest-3", "stake": 20, "currency": "points", "rounds_to_win": 3,
	}, nil)
	suite.ok(http.MethodPost, "/api/v1/matches/rest-3/join", "bob", nil, nil)

	var match models.Match
	suite.ok(http.MethodPost, "/api/v1/matches/rest-3/delegate", "alice", nil, &match)
	suite.Equal(models.MatchDelegated, match.Status)

	// 参与者不再持有权限
	code, env := suite.do(http.MethodPost, "/api/v1/matches/rest-3/undelegate", "bob", nil)
	suite.Equal(http.StatusForbidden, code)
	suite.Equal(apperrors.ErrNotAuthorityHolder, env.Error.Code)
	code, env = suite.do(http.MethodPost, "/api/v1/matches/rest-3/abandon", "bob", nil)
	suite.Equal(http.StatusForbidden, code)
	suite.Equal(apperrors.ErrNotAuthorityHolder, env.Error.Code)

	coordinator, err := suite.auth.IssueToken(suite.ledger.Policy().CoordinatorIdentity, utils.RolePlayer)
	suite.Require().NoError(err)
	suite.tokens["coordinator"] = coordinator.Token
	suite.ok(http.MethodPost, "/api/v1/matches/rest-3/undelegate", "coordinator", ledger.DelegationOutcome{
		CurrentRound:  2,
		PlayerOneWins: 1,
		PlayerTwoWins: 0,
		Winner:        "alice",
		Reason:        models.FinishForfeit,
	}, &match)
	suite.Equal(models.MatchFinished, match.Status)
	suite.Require().NotNil(match.Winner)
	suite.Equal("alice", *match.Winner)
}

func (suite *RouterTestSuite) TestOperatorEndpoints() {
	var token service.TokenResponse
	suite.ok(http.MethodPost, "/api/v1/auth/operator", "", service.OperatorLoginRequest{Username: "ops", Password: "s3cret"}, &token)
	suite.Equal(utils.RoleOperator, token.Role)
	suite.tokens["ops"] = token.Token

	code, _ := suite.do(http.MethodPost, "/api/v1/auth/operator", "", service.OperatorLoginRequest{Username: "ops", Password: "nope"})
	suite.Equal(http.StatusUnauthorized, code)

	var deposit DepositResponse
	suite.ok(http.MethodPost, "/api/v1/admin/deposit", "ops", DepositRequest{Identity: "alice", Amount: 500}, &deposit)
	suite.EqualValues(500, deposit.Balance)

	code, env := suite.do(http.MethodPost, "/api/v1/admin/deposit", "ops", DepositRequest{Identity: "alice", Amount: -5})
	suite.Equal(http.StatusBadRequest, code)
	suite.Equal(apperrors.ErrInvalidStake, env.Error.Code)

	var stats StatsResponse
	suite.ok(http.MethodGet, "/api/v1/admin/stats", "ops", nil, &stats)
	suite.Require().NotNil(stats.Ledger)
	suite.Equal(0, stats.Sessions.Sessions)

	balance, err := suite.ledger.Balance(context.Background(), "alice")
	suite.NoError(err)
	suite.EqualValues(500, balance)
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
