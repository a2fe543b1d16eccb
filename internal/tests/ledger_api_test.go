package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/escrow-ledger/internal/app"
	"github.com/javajoker/escrow-ledger/internal/config"
	"github.com/javajoker/escrow-ledger/internal/database"
	"github.com/javajoker/escrow-ledger/internal/i18n"
	"github.com/javajoker/escrow-ledger/internal/models"
	"github.com/javajoker/escrow-ledger/internal/router"
	"github.com/javajoker/escrow-ledger/internal/utils"
)

type envelope struct {
	Success bool                   `json:"success"`
	Data    json.RawMessage        `json:"data"`
	Error   *utils.APIError        `json:"error"`
	Meta    map[string]interface{} `json:"meta"`
}

type LedgerAPITestSuite struct {
	suite.Suite
	db      *gorm.DB
	runtime *app.Runtime
	router  *gin.Engine

	adminToken   string
	brandID      uuid.UUID
	brandToken   string
	creatorID    uuid.UUID
	creatorToken string
}

func (s *LedgerAPITestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	s.Require().NoError(i18n.Initialize("en"))
}

func (s *LedgerAPITestSuite) SetupTest() {
	db, err := database.OpenInMemory()
	s.Require().NoError(err)
	s.db = db

	cfg := &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{RateLimitRPS: 1000, RateLimitBurst: 1000},
		JWT:         config.JWTConfig{SecretKey: "api-test-secret"},
		Payment:     config.PaymentConfig{PlatformFeePercent: 10, MinimumCashout: 10, Currency: "USD"},
		Ledger: config.LedgerConfig{
			SystemActorID:    uuid.MustParse(config.DefaultSystemActorID),
			ExportMaxRecords: 100,
		},
		Scheduler: config.SchedulerConfig{WorkerPoolSize: 2, MaxAttempts: 1},
		Storage:   config.StorageConfig{LocalPath: s.T().TempDir(), ExportsFolder: "exports"},
		I18n:      config.I18nConfig{DefaultLocale: "en"},
	}
	s.Require().NoError(database.SeedInitialData(db, cfg))

	runtime, err := app.NewRuntime(db, cfg)
	s.Require().NoError(err)
	s.runtime = runtime
	s.router = router.Initialize(db, cfg, runtime.Services)

	s.brandID = uuid.New()
	s.creatorID = uuid.New()
	s.adminToken = s.token(uuid.New(), "admin")
	s.brandToken = s.token(s.brandID, "brand")
	s.creatorToken = s.token(s.creatorID, "creator")
}

func (s *LedgerAPITestSuite) TearDownTest() {
	s.runtime.Close()
	database.Close(s.db)
}

func (s *LedgerAPITestSuite) token(userID uuid.UUID, userType string) string {
	token, err := utils.GenerateJWT(userID, userType, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *LedgerAPITestSuite) request(method, path, token string, body interface{}, headers ...string) (int, envelope) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (s *LedgerAPITestSuite) decode(resp envelope) map[string]interface{} {
	var data map[string]interface{}
	s.Require().NoError(json.Unmarshal(resp.Data, &data))
	return data
}

func (s *LedgerAPITestSuite) assertAmount(expected string, value interface{}) {
	var actual decimal.Decimal
	switch v := value.(type) {
	case string:
		actual = decimal.RequireFromString(v)
	case float64:
		actual = decimal.NewFromFloat(v)
	default:
		s.Failf("unexpected amount", "%T %v", value, value)
		return
	}
	s.True(decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

func (s *LedgerAPITestSuite) seedPayment(amount string) (*models.Collaboration, *models.Payment) {
	collaboration := &models.Collaboration{
		BrandID:   s.brandID,
		CreatorID: s.creatorID,
		Title:     "Launch campaign",
		Status:    models.CollaborationStatusCompleted,
	}
	s.Require().NoError(s.db.Create(collaboration).Error)

	payment := &models.Payment{
		BrandID:         s.brandID,
		CollaborationID: &collaboration.ID,
		PaymentType:     models.PaymentTypeCollaboration,
		Amount:          decimal.RequireFromString(amount),
		Currency:        "USD",
		PaymentMethod:   "bank_transfer",
		Status:          models.PaymentStatusPending,
		EscrowStatus:    models.EscrowStatusNone,
	}
	s.Require().NoError(s.db.Create(payment).Error)
	return collaboration, payment
}

func (s *LedgerAPITestSuite) TestHealth() {
	code, _ := s.request(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, code)
}

func (s *LedgerAPITestSuite) TestEscrowToCashoutFlow() {
	collaboration, payment := s.seedPayment("100")
	verifyPath := fmt.Sprintf("/v1/admin/payments/%s/verify", payment.ID)

	code, resp := s.request(http.MethodPost, verifyPath, s.brandToken, gin.H{"amount": "100", "method": "bank_transfer"})
	s.Equal(http.StatusForbidden, code)
	s.Equal("FORBIDDEN", resp.Error.Code)

	code, resp = s.request(http.MethodPost, verifyPath, s.adminToken, gin.H{"amount": "100", "method": "bank_transfer"})
	s.Require().Equal(http.StatusOK, code, resp.Error)
	s.Equal("escrowed", s.decode(resp)["escrow_status"])

	code, resp = s.request(http.MethodPost, verifyPath, s.adminToken, gin.H{"amount": "100", "method": "bank_transfer"})
	s.Equal(http.StatusConflict, code)
	s.Equal("ALREADY_VERIFIED", resp.Error.Code)
	s.Equal("Payment has already been verified", resp.Error.Message)

	code, resp = s.request(http.MethodGet, "/v1/payments/"+payment.ID.String(), s.brandToken, nil)
	s.Equal(http.StatusOK, code)
	code, _ = s.request(http.MethodGet, "/v1/payments/"+payment.ID.String(), s.creatorToken, nil)
	s.Equal(http.StatusNotFound, code)

	code, resp = s.request(http.MethodPost, fmt.Sprintf("/v1/admin/collaborations/%s/release", collaboration.ID), s.adminToken, nil)
	s.Require().Equal(http.StatusOK, code, resp.Error)
	release := s.decode(resp)
	s.assertAmount("10", release["platform_fee"])
	s.assertAmount("90", release["net_amount"])

	code, resp = s.request(http.MethodPost, "/v1/admin/clearance/run", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, code, resp.Error)
	s.EqualValues(1, s.decode(resp)["promoted"])

	code, resp = s.request(http.MethodGet, "/v1/wallets/me", s.creatorToken, nil)
	s.Require().Equal(http.StatusOK, code)
	wallet := s.decode(resp)
	s.assertAmount("90", wallet["available_balance"])
	s.assertAmount("0", wallet["pending_clearance"])

	code, resp = s.request(http.MethodPost, "/v1/wallets/me/cashouts", s.creatorToken, gin.H{"amount": "5", "method": "paypal"})
	s.Equal(http.StatusBadRequest, code)
	s.Equal("BELOW_MINIMUM_CASHOUT", resp.Error.Code)

	code, resp = s.request(http.MethodPost, "/v1/wallets/me/cashouts", s.creatorToken, gin.H{"amount": "50"})
	s.Equal(http.StatusBadRequest, code)
	s.Equal("VALIDATION_ERROR", resp.Error.Code)

	code, resp = s.request(http.MethodPost, "/v1/wallets/me/cashouts", s.creatorToken, gin.H{"amount": "50", "method": "paypal"})
	s.Require().Equal(http.StatusCreated, code, resp.Error)
	cashoutID := s.decode(resp)["id"].(string)

	code, resp = s.request(http.MethodPut, "/v1/admin/cashouts/"+cashoutID+"/approve", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, code, resp.Error)
	s.Equal("paid", s.decode(resp)["status"])

	code, resp = s.request(http.MethodPut, "/v1/admin/cashouts/"+cashoutID+"/approve", s.adminToken, nil)
	s.Equal(http.StatusConflict, code)
	s.Equal("CASHOUT_ALREADY_PROCESSED", resp.Error.Code)

	code, resp = s.request(http.MethodGet, "/v1/wallets/me", s.creatorToken, nil)
	s.Require().Equal(http.StatusOK, code)
	wallet = s.decode(resp)
	s.assertAmount("40", wallet["available_balance"])
	s.assertAmount("50", wallet["total_withdrawn"])

	code, resp = s.request(http.MethodGet, fmt.Sprintf("/v1/admin/wallets/%s/reconcile", wallet["id"]), s.adminToken, nil)
	s.Require().Equal(http.StatusOK, code)
	s.Equal(true, s.decode(resp)["balanced"])

	code, resp = s.request(http.MethodGet, "/v1/wallets/me/transactions", s.creatorToken, nil)
	s.Require().Equal(http.StatusOK, code)
	s.NotNil(resp.Meta["pagination"])

	code, resp = s.request(http.MethodPost, "/v1/admin/exports/wallet-transactions", s.adminToken, nil)
	s.Require().Equal(http.StatusCreated, code, resp.Error)
	s.EqualValues(1, s.decode(resp)["records"])

	var audits int64
	s.Require().NoError(s.db.Model(&models.AuditLog{}).Count(&audits).Error)
	s.GreaterOrEqual(audits, int64(5))
}

func (s *LedgerAPITestSuite) TestLocalizedLedgerErrors() {
	_, payment := s.seedPayment("100")
	verifyPath := fmt.Sprintf("/v1/admin/payments/%s/verify", payment.ID)

	code, resp := s.request(http.MethodPost, verifyPath, s.adminToken, gin.H{"amount": "150", "method": "bank_transfer"}, "Accept-Language", "zh-TW")
	s.Equal(http.StatusBadRequest, code)
	s.Equal("AMOUNT_EXCEEDS_PAYMENT", resp.Error.Code)
	s.Equal("驗證金額超過付款金額", resp.Error.Message)
}

func (s *LedgerAPITestSuite) TestErrorMapping() {
	code, resp := s.request(http.MethodGet, "/v1/payments/"+uuid.NewString(), s.adminToken, nil)
	s.Equal(http.StatusNotFound, code)
	s.Equal("PAYMENT_NOT_FOUND", resp.Error.Code)

	code, resp = s.request(http.MethodGet, "/v1/payments/not-a-uuid", s.adminToken, nil)
	s.Equal(http.StatusBadRequest, code)
	s.Equal("BAD_REQUEST", resp.Error.Code)

	code, resp = s.request(http.MethodGet, "/v1/wallets/me", "", nil)
	s.Equal(http.StatusUnauthorized, code)
	s.Equal("UNAUTHORIZED", resp.Error.Code)

	code, resp = s.request(http.MethodGet, "/v1/wallets/me", s.creatorToken, nil)
	s.Equal(http.StatusNotFound, code)
	s.Equal("WALLET_NOT_FOUND", resp.Error.Code)

	code, resp = s.request(http.MethodPost, fmt.Sprintf("/v1/admin/collaborations/%s/release", uuid.New()), s.adminToken, nil)
	s.Equal(http.StatusNotFound, code)
	s.Equal("COLLABORATION_NOT_FOUND", resp.Error.Code)
}

func (s *LedgerAPITestSuite) TestDisputeBlocksRelease() {
	collaboration, payment := s.seedPayment("200")
	code, _ := s.request(http.MethodPost, fmt.Sprintf("/v1/admin/payments/%s/verify", payment.ID), s.adminToken, gin.H{"amount": "200", "method": "bank_transfer"})
	s.Require().Equal(http.StatusOK, code)

	code, resp := s.request(http.MethodPost, "/v1/disputes", s.brandToken, gin.H{
		"collaboration_id": collaboration.ID,
		"issue_type":       "quality",
		"description":      "posts were removed after two days",
	})
	s.Require().Equal(http.StatusCreated, code, resp.Error)
	dispute := s.decode(resp)
	reference := dispute["reference"].(string)

	code, _ = s.request(http.MethodGet, "/v1/disputes/"+reference, s.creatorToken, nil)
	s.Equal(http.StatusOK, code)
	code, _ = s.request(http.MethodGet, "/v1/disputes/"+reference, s.token(uuid.New(), "creator"), nil)
	s.Equal(http.StatusNotFound, code)

	releasePath := fmt.Sprintf("/v1/admin/collaborations/%s/release", collaboration.ID)
	code, resp = s.request(http.MethodPost, releasePath, s.adminToken, nil)
	s.Equal(http.StatusConflict, code)
	s.Equal("DISPUTE_BLOCKS_RELEASE", resp.Error.Code)

	resolvePath := fmt.Sprintf("/v1/admin/disputes/%s/resolve", dispute["id"])
	code, resp = s.request(http.MethodPut, resolvePath, s.adminToken, gin.H{"resolution": "partial delivery", "payout_percentage": "75"})
	s.Equal(http.StatusBadRequest, code)
	s.Equal("REMAINDER_DISPOSITION_REQUIRED", resp.Error.Code)

	code, resp = s.request(http.MethodPut, resolvePath, s.adminToken, gin.H{
		"resolution":            "partial delivery",
		"payout_percentage":     "75",
		"remainder_disposition": "refund_to_brand",
	})
	s.Require().Equal(http.StatusOK, code, resp.Error)

	code, resp = s.request(http.MethodPost, releasePath, s.adminToken, nil)
	s.Require().Equal(http.StatusOK, code, resp.Error)
	release := s.decode(resp)
	s.assertAmount("135", release["net_amount"])
	s.assertAmount("45", release["remainder_amount"])
	s.Equal("dispute_adjusted_split", release["release_policy"])
}

func (s *LedgerAPITestSuite) TestSettingsUpdateChangesFee() {
	code, resp := s.request(http.MethodPut, "/v1/admin/settings/payments", s.adminToken, gin.H{"platform_fee_percentage": "20"})
	s.Require().Equal(http.StatusOK, code, resp.Error)

	code, resp = s.request(http.MethodPut, "/v1/admin/settings/payments", s.adminToken, gin.H{"platform_fee_percentage": "120"})
	s.Equal(http.StatusBadRequest, code)
	s.Equal("INVALID_FEE_PERCENTAGE", resp.Error.Code)

	code, resp = s.request(http.MethodGet, "/v1/admin/settings", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, code)
	s.Contains(s.decode(resp), "payments.platform_fee_percentage")

	collaboration, payment := s.seedPayment("100")
	code, _ = s.request(http.MethodPost, fmt.Sprintf("/v1/admin/payments/%s/verify", payment.ID), s.adminToken, gin.H{"amount": "100", "method": "bank_transfer"})
	s.Require().Equal(http.StatusOK, code)

	code, resp = s.request(http.MethodPost, fmt.Sprintf("/v1/admin/collaborations/%s/release", collaboration.ID), s.adminToken, nil)
	s.Require().Equal(http.StatusOK, code, resp.Error)
	s.assertAmount("80", s.decode(resp)["net_amount"])
}

func TestLedgerAPISuite(t *testing.T) {
	suite.Run(t, new(LedgerAPITestSuite))
}
