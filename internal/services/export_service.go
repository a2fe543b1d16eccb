// internal/services/export_service.go
package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/escrow-ledger/internal/config"
	"github.com/javajoker/escrow-ledger/internal/models"
)

type ExportService struct {
	db     *gorm.DB
	config *config.Config
	store  ObjectStore
	now    func() time.Time
}

type ExportRequest struct {
	WalletID *uuid.UUID `json:"wallet_id,omitempty"`
	Status   string     `json:"status,omitempty" validate:"omitempty,oneof=pending_clearance available withdrawn reversed"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
}

type ExportResult struct {
	Object  *StoredObject `json:"object"`
	Records int           `json:"records"`
	URL     string        `json:"url,omitempty"`
}

var walletTransactionColumns = []string{
	"id", "wallet_id", "collaboration_id", "payment_id", "gross_amount",
	"platform_fee_percentage", "platform_fee", "net_amount", "withdrawn_amount",
	"release_policy", "payout_percentage", "remainder_amount", "remainder_disposition",
	"status", "available_at", "cleared_at", "reversed_at", "created_at",
}

func NewExportService(db *gorm.DB, config *config.Config, store ObjectStore) *ExportService {
	return &ExportService{
		db:     db,
		config: config,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ExportWalletTransactions writes matching wallet transactions as CSV to the object store.
func (s *ExportService) ExportWalletTransactions(ctx context.Context, req *ExportRequest) (*ExportResult, error) {
	query := s.db.WithContext(ctx).Model(&models.WalletTransaction{})
	if req.WalletID != nil {
		query = query.Where("wallet_id = ?", *req.WalletID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.From != nil {
		query = query.Where("created_at >= ?", req.From.UTC())
	}
	if req.To != nil {
		query = query.Where("created_at < ?", req.To.UTC())
	}
	if limit := s.config.Ledger.ExportMaxRecords; limit > 0 {
		query = query.Limit(limit)
	}

	var transactions []models.WalletTransaction
	if err := query.Order("created_at ASC").Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to load wallet transactions: %w", err)
	}

	body, err := encodeWalletTransactions(transactions)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/wallet-transactions-%s.csv", s.config.Storage.ExportsFolder, s.now().Format("20060102T150405Z"))
	object, err := s.store.PutObject(ctx, key, "text/csv", body)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"key":     object.Key,
		"records": len(transactions),
	}).Info("Wallet transactions exported")

	result := &ExportResult{Object: object, Records: len(transactions)}
	if signer, ok := s.store.(urlSigner); ok {
		if url, err := signer.GeneratePresignedURL(object.Key, time.Hour); err == nil {
			result.URL = url
		}
	}
	return result, nil
}

type urlSigner interface {
	GeneratePresignedURL(key string, expiration time.Duration) (string, error)
}

func encodeWalletTransactions(transactions []models.WalletTransaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(walletTransactionColumns); err != nil {
		return nil, err
	}
	for _, t := range transactions {
		record := []string{
			t.ID.String(),
			t.WalletID.String(),
			t.CollaborationID.String(),
			t.PaymentID.String(),
			t.GrossAmount.StringFixed(moneyScale),
			t.PlatformFeePercentage.String(),
			t.PlatformFee.StringFixed(moneyScale),
			t.NetAmount.StringFixed(moneyScale),
			t.WithdrawnAmount.StringFixed(moneyScale),
			string(t.ReleasePolicy),
			t.PayoutPercentage.String(),
			t.RemainderAmount.StringFixed(moneyScale),
			string(t.RemainderDisposition),
			string(t.Status),
			t.AvailableAt.UTC().Format(time.RFC3339),
			formatOptionalTime(t.ClearedAt),
			formatOptionalTime(t.ReversedAt),
			t.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return buf.Bytes(), nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

