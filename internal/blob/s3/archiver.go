package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// DefaultArchivePrefix is the key prefix used when none is configured.
const DefaultArchivePrefix = "archive/rounds"

// Record kinds written to an archive file, one JSON object per line.
const (
	RecordSettlement = "settlement"
	RecordBet        = "bet"
	RecordPayout     = "payout"
)

// ArchiveRecord is one line of a round archive. Exactly one of the pointer
// fields is set, matching Kind.
type ArchiveRecord struct {
	Kind       string             `json:"kind"`
	Settlement *domain.Settlement `json:"settlement,omitempty"`
	Bet        *domain.Bet        `json:"bet,omitempty"`
	Payout     *domain.Payout     `json:"payout,omitempty"`
}

// RoundArchiver implements domain.RoundArchiver. A settled round becomes a
// single JSONL object: the settlement summary, then every bet in acceptance
// order, then every payout.
//
//	archive/rounds/2026-03/<round id>.jsonl
type RoundArchiver struct {
	writer             domain.BlobWriter
	audit              domain.AuditStore
	prefix             string
	multipartThreshold int64
	logger             *slog.Logger
}

// NewRoundArchiver creates a RoundArchiver. audit may be nil. Archives larger
// than multipartThreshold bytes go through PutMultipart.
func NewRoundArchiver(writer domain.BlobWriter, audit domain.AuditStore, prefix string, multipartThreshold int64, logger *slog.Logger) *RoundArchiver {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultArchivePrefix
	}
	if multipartThreshold <= 0 {
		multipartThreshold = MinPartSize
	}
	return &RoundArchiver{
		writer:             writer,
		audit:              audit,
		prefix:             prefix,
		multipartThreshold: multipartThreshold,
		logger:             logger.With(slog.String("component", "archiver")),
	}
}

// ArchivePath returns the object key for a round, partitioned by the
// year-month it settled in (UTC).
func (a *RoundArchiver) ArchivePath(roundID string, settledAt time.Time) string {
	return fmt.Sprintf("%s/%s/%s.jsonl", a.prefix, settledAt.UTC().Format("2006-01"), roundID)
}

// ArchiveRound uploads the round and records the upload in the audit log.
// An audit failure is logged but does not fail the archive.
func (a *RoundArchiver) ArchiveRound(ctx context.Context, s domain.Settlement, bets []domain.Bet) (string, error) {
	buf, err := EncodeRound(s, bets)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive round %s: %w", s.RoundID, err)
	}

	path := a.ArchivePath(s.RoundID, s.SettledAt)
	size := int64(len(buf))
	if size > a.multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), MinPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive round %s: %w", s.RoundID, err)
	}

	a.logger.InfoContext(ctx, "round archived",
		slog.String("round_id", s.RoundID),
		slog.String("path", path),
		slog.Int64("bytes", size),
		slog.Int("bets", len(bets)),
	)

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.round", map[string]any{
			"round_id": s.RoundID,
			"path":     path,
			"bets":     len(bets),
			"payouts":  len(s.PayoutList),
			"bytes":    size,
		}); err != nil {
			a.logger.WarnContext(ctx, "archive audit log failed",
				slog.String("round_id", s.RoundID),
				slog.String("error", err.Error()),
			)
		}
	}
	return path, nil
}

// EncodeRound renders the archive body for a settled round.
func EncodeRound(s domain.Settlement, bets []domain.Bet) ([]byte, error) {
	records := make([]ArchiveRecord, 0, 1+len(bets)+len(s.PayoutList))
	summary := s
	summary.PayoutList = nil
	records = append(records, ArchiveRecord{Kind: RecordSettlement, Settlement: &summary})
	for i := range bets {
		records = append(records, ArchiveRecord{Kind: RecordBet, Bet: &bets[i]})
	}
	for i := range s.PayoutList {
		records = append(records, ArchiveRecord{Kind: RecordPayout, Payout: &s.PayoutList[i]})
	}
	return marshalJSONL(records)
}

// marshalJSONL encodes each record as one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.RoundArchiver = (*RoundArchiver)(nil)
