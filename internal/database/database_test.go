// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/veridex/riskworker/internal/config"
	"github.com/veridex/riskworker/internal/models"
)

// testDBSemaphore serializes DuckDB setup across tests. Concurrent in-process
// DuckDB instances under CI resource pressure can hang in CGO calls.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates an in-memory analytics store with the schema applied.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := New(&config.DatabaseConfig{
		Path:         ":memory:",
		MaxMemory:    "1GB",
		Threads:      1,
		QueryTimeout: 30 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

func insertEvent(t *testing.T, db *DB, ev models.ValidationEvent) {
	t.Helper()
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	_, err := db.Conn().Exec(`
		INSERT INTO validation_events (id, token_id, user_id, product_id, manufacturer_id, timestamp, latitude, longitude, is_authentic)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.TokenID, ev.UserID, ev.ProductID, ev.ManufacturerID,
		ev.Timestamp, ev.Latitude, ev.Longitude, ev.IsAuthentic)
	if err != nil {
		t.Fatalf("failed to insert validation event: %v", err)
	}
}

func insertReport(t *testing.T, db *DB, r models.CounterfeitReport) {
	t.Helper()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	meta := any(nil)
	if len(r.Metadata) > 0 {
		meta = string(r.Metadata)
	}
	_, err := db.Conn().Exec(`
		INSERT INTO counterfeit_reports (id, token_id, reporter_id, product_id, product_name, manufacturer_id, timestamp, store_name, status, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TokenID, r.ReporterID, r.ProductID, r.ProductName,
		r.ManufacturerID, r.Timestamp, r.StoreName, string(r.Status), meta)
	if err != nil {
		t.Fatalf("failed to insert counterfeit report: %v", err)
	}
}

func insertChannel(t *testing.T, db *DB, c models.Channel) {
	t.Helper()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	meta := any(nil)
	if len(c.Metadata) > 0 {
		meta = string(c.Metadata)
	}
	_, err := db.Conn().Exec(`
		INSERT INTO channels (id, manufacturer_id, name, region, is_active, risk_score, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ManufacturerID, c.Name, c.Region, c.IsActive, c.RiskScore, meta)
	if err != nil {
		t.Fatalf("failed to insert channel: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	db := setupTestDB(t)

	version, err := db.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() error: %v", err)
	}
	if version < 1 {
		t.Errorf("schema version = %d, want >= 1", version)
	}

	// Reapplying migrations on an up-to-date store is a no-op.
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate() error: %v", err)
	}
}

func TestGetEventsByUserSince(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	insertEvent(t, db, models.ValidationEvent{TokenID: "t1", UserID: "u1", ProductID: "p1", ManufacturerID: "m1", Timestamp: now.Add(-2 * time.Hour), IsAuthentic: true})
	insertEvent(t, db, models.ValidationEvent{TokenID: "t2", UserID: "u1", ProductID: "p1", ManufacturerID: "m1", Timestamp: now.Add(-1 * time.Hour), IsAuthentic: false})
	insertEvent(t, db, models.ValidationEvent{TokenID: "t3", UserID: "u2", ProductID: "p2", ManufacturerID: "m1", Timestamp: now.Add(-30 * time.Minute), IsAuthentic: true})
	// Outside the window.
	insertEvent(t, db, models.ValidationEvent{TokenID: "t4", UserID: "u1", ProductID: "p1", ManufacturerID: "m1", Timestamp: now.Add(-48 * time.Hour), IsAuthentic: true})

	byUser, err := db.GetEventsByUserSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("GetEventsByUserSince() error: %v", err)
	}
	if len(byUser) != 2 {
		t.Fatalf("users = %d, want 2", len(byUser))
	}
	if len(byUser["u1"]) != 2 {
		t.Errorf("u1 events = %d, want 2", len(byUser["u1"]))
	}
	if !byUser["u1"][0].Timestamp.Before(byUser["u1"][1].Timestamp) {
		t.Error("u1 events not in ascending timestamp order")
	}
}

func TestGetProductCounterfeitRate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rate, err := db.GetProductCounterfeitRate(ctx, "unseen")
	if err != nil {
		t.Fatalf("GetProductCounterfeitRate() error: %v", err)
	}
	if rate != 0 {
		t.Errorf("rate for unseen product = %v, want 0", rate)
	}

	for i := 0; i < 4; i++ {
		insertEvent(t, db, models.ValidationEvent{TokenID: "t", UserID: "u", ProductID: "p1", ManufacturerID: "m1", Timestamp: now, IsAuthentic: i != 0})
	}
	rate, err = db.GetProductCounterfeitRate(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProductCounterfeitRate() error: %v", err)
	}
	if rate != 0.25 {
		t.Errorf("rate = %v, want 0.25", rate)
	}
}

func TestGetDailyCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	for d := 0; d < 3; d++ {
		for i := 0; i < d+1; i++ {
			insertEvent(t, db, models.ValidationEvent{
				TokenID: "t", UserID: "u", ProductID: "p", ManufacturerID: "m",
				Timestamp:   day.AddDate(0, 0, d).Add(time.Duration(i) * time.Hour),
				IsAuthentic: i%2 == 0,
			})
		}
	}

	counts, err := db.GetDailyCounts(ctx, day.Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetDailyCounts() error: %v", err)
	}
	if len(counts) != 3 {
		t.Fatalf("buckets = %d, want 3", len(counts))
	}
	if counts[0].Validations != 1 || counts[2].Validations != 3 {
		t.Errorf("bucket counts = %+v", counts)
	}
	if !counts[0].Day.Before(counts[1].Day) {
		t.Error("buckets not oldest first")
	}
}

func TestReports(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertReport(t, db, models.CounterfeitReport{ID: "rep-1", TokenID: "t1", ReporterID: "u1", ProductID: "p1", ProductName: "Widget", ManufacturerID: "m1", Timestamp: now, Status: models.ReportStatusPending})
	insertReport(t, db, models.CounterfeitReport{ID: "rep-2", TokenID: "t2", ReporterID: "u1", ProductID: "p1", ProductName: "Widget", ManufacturerID: "m1", Timestamp: now, Status: models.ReportStatusConfirmed})
	insertReport(t, db, models.CounterfeitReport{ID: "rep-3", TokenID: "t3", ReporterID: "u1", ProductID: "p1", ProductName: "Widget", ManufacturerID: "m1", Timestamp: now, Status: models.ReportStatusInvestigating,
		Metadata: []byte(`{"ingest_batch":"b-9"}`)})

	t.Run("open reports excludes terminal statuses", func(t *testing.T) {
		open, err := db.GetOpenReports(ctx)
		if err != nil {
			t.Fatalf("GetOpenReports() error: %v", err)
		}
		if len(open) != 2 {
			t.Fatalf("open = %d, want 2", len(open))
		}
		for _, r := range open {
			if r.Status == models.ReportStatusConfirmed || r.Status == models.ReportStatusFalsePositive {
				t.Errorf("terminal report %s returned", r.ID)
			}
		}
	})

	t.Run("reporter stats", func(t *testing.T) {
		total, confirmed, err := db.GetReporterStats(ctx, "u1")
		if err != nil {
			t.Fatalf("GetReporterStats() error: %v", err)
		}
		if total != 3 || confirmed != 1 {
			t.Errorf("stats = (%d, %d), want (3, 1)", total, confirmed)
		}
	})

	t.Run("assessment updates status and merges metadata", func(t *testing.T) {
		assessment := models.RiskAssessment{RiskScore: 0.9, Factors: []string{"high_risk_product"}, AssessedAt: now}
		if err := db.UpdateReportAssessment(ctx, "rep-3", models.ReportStatusInvestigating, assessment); err != nil {
			t.Fatalf("UpdateReportAssessment() error: %v", err)
		}

		open, err := db.GetOpenReports(ctx)
		if err != nil {
			t.Fatal(err)
		}
		var updated *models.CounterfeitReport
		for i := range open {
			if open[i].ID == "rep-3" {
				updated = &open[i]
			}
		}
		if updated == nil {
			t.Fatal("rep-3 not returned")
		}
		meta := string(updated.Metadata)
		if meta == "" {
			t.Fatal("metadata empty after assessment")
		}
		for _, want := range []string{"ingest_batch", "risk_assessment", "high_risk_product"} {
			if !strings.Contains(meta, want) {
				t.Errorf("metadata %s missing %q", meta, want)
			}
		}
	})

	t.Run("missing report yields ErrNotFound", func(t *testing.T) {
		err := db.UpdateReportAssessment(ctx, "no-such-report", models.ReportStatusPending, models.RiskAssessment{})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestChannels(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertChannel(t, db, models.Channel{ID: "ch-1", ManufacturerID: "m1", Name: "EU Retail", IsActive: true})
	insertChannel(t, db, models.Channel{ID: "ch-2", ManufacturerID: "m2", Name: "Defunct", IsActive: false})

	insertEvent(t, db, models.ValidationEvent{TokenID: "t", UserID: "u1", ProductID: "p1", ManufacturerID: "m1", Timestamp: now.Add(-time.Hour), IsAuthentic: true})
	insertEvent(t, db, models.ValidationEvent{TokenID: "t", UserID: "u2", ProductID: "p2", ManufacturerID: "m1", Timestamp: now.Add(-time.Hour), IsAuthentic: false})
	insertReport(t, db, models.CounterfeitReport{TokenID: "t", ReporterID: "u2", ProductID: "p2", ManufacturerID: "m1", Timestamp: now.Add(-time.Hour), Status: models.ReportStatusConfirmed})

	t.Run("active channels only", func(t *testing.T) {
		channels, err := db.GetActiveChannels(ctx)
		if err != nil {
			t.Fatalf("GetActiveChannels() error: %v", err)
		}
		if len(channels) != 1 || channels[0].ID != "ch-1" {
			t.Errorf("channels = %+v", channels)
		}
	})

	t.Run("stats attributed through manufacturer", func(t *testing.T) {
		stats, err := db.GetChannelStats(ctx, models.Channel{ID: "ch-1", ManufacturerID: "m1"}, now.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("GetChannelStats() error: %v", err)
		}
		if stats.TotalValidations != 2 || stats.NonAuthenticCount != 1 {
			t.Errorf("validation stats = %+v", stats)
		}
		if stats.TotalReports != 1 || stats.ConfirmedReports != 1 {
			t.Errorf("report stats = %+v", stats)
		}
		if stats.UniqueUsers != 2 || stats.UniqueProducts != 2 {
			t.Errorf("distinct stats = %+v", stats)
		}
	})

	t.Run("risk update persists score and metadata", func(t *testing.T) {
		meta := models.ChannelRiskMetadata{RiskLevel: "high", TotalValidations: 2, NonAuthenticCount: 1, AssessedAt: now}
		if err := db.UpdateChannelRisk(ctx, "ch-1", 0.7, meta); err != nil {
			t.Fatalf("UpdateChannelRisk() error: %v", err)
		}
		channels, err := db.GetActiveChannels(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if channels[0].RiskScore != 0.7 {
			t.Errorf("RiskScore = %v, want 0.7", channels[0].RiskScore)
		}
		if !strings.Contains(string(channels[0].Metadata), "channel_risk") {
			t.Errorf("metadata = %s", channels[0].Metadata)
		}
	})

	t.Run("missing channel yields ErrNotFound", func(t *testing.T) {
		err := db.UpdateChannelRisk(ctx, "no-such-channel", 0.5, models.ChannelRiskMetadata{})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestRecords(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("anomaly insert", func(t *testing.T) {
		rec := &models.AnomalyRecord{
			ID:              uuid.New().String(),
			Type:            models.AnomalyTypeValidationPattern,
			Description:     "test anomaly",
			ConfidenceScore: 0.9,
			Payload:         []byte(`{"user_id":"u1"}`),
			Status:          models.AnomalyStatusNew,
			DetectedAt:      now,
		}
		if err := db.InsertAnomaly(ctx, rec); err != nil {
			t.Fatalf("InsertAnomaly() error: %v", err)
		}
		var count int
		if err := db.Conn().QueryRow(`SELECT COUNT(*) FROM anomalies`).Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Errorf("anomalies = %d, want 1", count)
		}
	})

	t.Run("pattern insert", func(t *testing.T) {
		p := &models.SuspiciousPattern{
			ID:               uuid.New().String(),
			PatternType:      models.PatternTypeFrequencyAnomaly,
			Description:      "test pattern",
			AffectedEntities: []string{"u1", "t1"},
			RiskScore:        0.8,
			DetectedAt:       now,
			Status:           models.PatternStatusOpen,
		}
		if err := db.InsertPattern(ctx, p); err != nil {
			t.Fatalf("InsertPattern() error: %v", err)
		}
		var entities string
		if err := db.Conn().QueryRow(`SELECT affected_entities FROM suspicious_patterns WHERE id = ?`, p.ID).Scan(&entities); err != nil {
			t.Fatal(err)
		}
		if entities != `["u1","t1"]` {
			t.Errorf("affected_entities = %s", entities)
		}
	})

	t.Run("prediction upsert keeps one live row", func(t *testing.T) {
		first := &models.PredictionRecord{
			ID:             uuid.New().String(),
			PredictionType: models.PredictionTypeValidationTrend7d,
			PredictedValue: 700,
			Confidence:     0.77,
			SupportingData: []byte(`{"days_of_data":7}`),
			CreatedAt:      now,
		}
		if err := db.UpsertPrediction(ctx, first); err != nil {
			t.Fatalf("first UpsertPrediction() error: %v", err)
		}

		second := &models.PredictionRecord{
			ID:             uuid.New().String(),
			PredictionType: models.PredictionTypeValidationTrend7d,
			PredictedValue: 850,
			Confidence:     0.81,
			CreatedAt:      now.Add(6 * time.Hour),
		}
		if err := db.UpsertPrediction(ctx, second); err != nil {
			t.Fatalf("second UpsertPrediction() error: %v", err)
		}

		live, err := db.GetPrediction(ctx, models.PredictionTypeValidationTrend7d)
		if err != nil {
			t.Fatalf("GetPrediction() error: %v", err)
		}
		if live.PredictedValue != 850 || live.ID != second.ID {
			t.Errorf("live prediction = %+v, want the second write", live)
		}

		var count int
		if err := db.Conn().QueryRow(`SELECT COUNT(*) FROM predictions`).Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Errorf("predictions = %d, want 1", count)
		}
	})

	t.Run("missing prediction yields ErrNotFound", func(t *testing.T) {
		_, err := db.GetPrediction(ctx, "no-such-type")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}
