package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/windfall-labs/windfall-raffle/internal/dto"
	"github.com/windfall-labs/windfall-raffle/internal/model"
	"github.com/windfall-labs/windfall-raffle/internal/repository"
	"github.com/windfall-labs/windfall-raffle/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testWallet = "0x00000000000000000000000000000000000000a1"

// MockRaffleService Mock 抽奖服务
type MockRaffleService struct {
	mock.Mock
}

func (m *MockRaffleService) CreateRaffle(ctx context.Context, params *service.CreateRaffleParams) (*model.Raffle, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Raffle), args.Error(1)
}

func (m *MockRaffleService) RequestClose(ctx context.Context, caller string, raffleID int64) error {
	return m.Called(ctx, caller, raffleID).Error(0)
}

func (m *MockRaffleService) RetryClose(ctx context.Context, caller string, raffleID int64) error {
	return m.Called(ctx, caller, raffleID).Error(0)
}

func (m *MockRaffleService) RequestEarlyCashout(ctx context.Context, caller string, raffleID int64) error {
	return m.Called(ctx, caller, raffleID).Error(0)
}

func (m *MockRaffleService) Cancel(ctx context.Context, caller string, raffleID int64) error {
	return m.Called(ctx, caller, raffleID).Error(0)
}

func (m *MockRaffleService) ExtractCollateral(ctx context.Context, caller string, raffleID int64, recipient string) error {
	return m.Called(ctx, caller, raffleID, recipient).Error(0)
}

func (m *MockRaffleService) ExtractFunds(ctx context.Context, caller string, recipient string, amount string) error {
	return m.Called(ctx, caller, recipient, amount).Error(0)
}

func (m *MockRaffleService) GetRaffle(ctx context.Context, raffleID int64) (*model.Raffle, error) {
	args := m.Called(ctx, raffleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Raffle), args.Error(1)
}

func (m *MockRaffleService) ListBySeller(ctx context.Context, seller string, page *repository.Pagination) ([]*model.Raffle, error) {
	args := m.Called(ctx, seller, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Raffle), args.Error(1)
}

// newRaffleRouter 构建测试路由，绕过中间件直接注入钱包
func newRaffleRouter(h *RaffleHandler) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("wallet", testWallet)
	})
	r.POST("/raffles", h.CreateRaffle)
	r.GET("/raffles/:id", h.GetRaffle)
	r.POST("/raffles/:id/close", h.Close)
	r.POST("/raffles/:id/cancel", h.Cancel)
	r.POST("/admin/funds/extract", h.ExtractFunds)
	return r
}

func TestRaffleHandler_CreateRaffle(t *testing.T) {
	svc := new(MockRaffleService)
	svc.On("CreateRaffle", mock.Anything, mock.MatchedBy(func(p *service.CreateRaffleParams) bool {
		return p.Seller == testWallet && p.MaxEntries == 100
	})).Return(&model.Raffle{ID: 1, Status: model.RaffleStatusAccepted}, nil)

	r := newRaffleRouter(NewRaffleHandler(svc))

	body, _ := json.Marshal(dto.CreateRaffleRequest{
		CollateralContract: "0x00000000000000000000000000000000000000cc",
		CollateralTokenID:  "42",
		MaxEntries:         100,
		TicketPrice:        "1.5",
		EntriesPerTicket:   10,
		PlatformFeeBps:     250,
		ExpiresAt:          1900000000000,
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/raffles", bytes.NewReader(body))
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Code)
	svc.AssertExpectations(t)
}

func TestRaffleHandler_CreateRaffle_BadBody(t *testing.T) {
	r := newRaffleRouter(NewRaffleHandler(new(MockRaffleService)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/raffles", bytes.NewReader([]byte("{not json")))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRaffleHandler_GetRaffle_NotFound(t *testing.T) {
	svc := new(MockRaffleService)
	svc.On("GetRaffle", mock.Anything, int64(99)).Return(nil, repository.ErrRaffleNotFound)

	r := newRaffleRouter(NewRaffleHandler(svc))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/raffles/99", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrRaffleNotFound.Code, resp.Code)
}

func TestRaffleHandler_GetRaffle_InvalidID(t *testing.T) {
	r := newRaffleRouter(NewRaffleHandler(new(MockRaffleService)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/raffles/abc", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRaffleHandler_Close_NotExpired(t *testing.T) {
	svc := new(MockRaffleService)
	svc.On("RequestClose", mock.Anything, testWallet, int64(7)).Return(service.ErrNotExpired)

	r := newRaffleRouter(NewRaffleHandler(svc))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/raffles/7/close", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrRaffleNotExpired.Code, resp.Code)
}

func TestRaffleHandler_Cancel_WrongStatus(t *testing.T) {
	svc := new(MockRaffleService)
	svc.On("Cancel", mock.Anything, testWallet, int64(7)).Return(service.ErrWrongStatus)

	r := newRaffleRouter(NewRaffleHandler(svc))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/raffles/7/cancel", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRaffleHandler_ExtractFunds_Forbidden(t *testing.T) {
	svc := new(MockRaffleService)
	svc.On("ExtractFunds", mock.Anything, testWallet, mock.Anything, mock.Anything).Return(service.ErrUnauthorized)

	r := newRaffleRouter(NewRaffleHandler(svc))

	body, _ := json.Marshal(dto.ExtractFundsRequest{
		Recipient: "0x00000000000000000000000000000000000000dd",
		Amount:    "100",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/funds/extract", bytes.NewReader(body))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
