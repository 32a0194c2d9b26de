package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/andresuchdata/restock/backend-go/internal/pipeline"
	"github.com/andresuchdata/restock/backend-go/internal/pipeline/restock"
	"github.com/andresuchdata/restock/backend-go/internal/repository"
	"github.com/andresuchdata/restock/backend-go/internal/storage"
	"github.com/rs/zerolog/log"
)

const topUsedLimit = 10

// ErrArchiveDisabled is returned when no object storage is configured.
var ErrArchiveDisabled = errors.New("report archive storage is not configured")

// ReportService builds the inventory-wide restock report and archives it.
type ReportService struct {
	inventory  repository.InventoryRepository
	runner     *pipeline.BatchRunner
	calculator *restock.StockCalculator
	store      storage.ObjectStorage
	now        func() time.Time
}

// NewReportService wires the service. store may be nil to disable archiving.
func NewReportService(inventory repository.InventoryRepository, runner *pipeline.BatchRunner, store storage.ObjectStorage) *ReportService {
	return &ReportService{
		inventory:  inventory,
		runner:     runner,
		calculator: restock.NewStockCalculator(),
		store:      store,
		now:        time.Now,
	}
}

// Build analyzes every inventory item and aggregates the results. Items
// without usage history are reported as no_data; failed items carry their
// error and do not abort the report.
func (s *ReportService) Build(ctx context.Context) (*domain.InventoryReport, pipeline.BatchMetrics, error) {
	items, err := s.inventory.ListInventory(ctx)
	if err != nil {
		return nil, pipeline.BatchMetrics{}, fmt.Errorf("error listing inventory: %w", err)
	}
	usage, err := s.inventory.TotalUsage(ctx)
	if err != nil {
		return nil, pipeline.BatchMetrics{}, fmt.Errorf("error loading usage totals: %w", err)
	}

	jobs := make([]pipeline.Job, len(items))
	for i, item := range items {
		available := restock.AvailableStock(item, usage[item.IngredientID])
		jobs[i] = pipeline.Job{
			Request: pipeline.Request{IngredientID: item.IngredientID, CurrentStock: math.Max(available, 0)},
			Payload: item,
		}
	}

	results, summary, err := s.runner.Run(ctx, jobs)
	if err != nil {
		return nil, summary, err
	}

	report := &domain.InventoryReport{
		TotalIngredients:  len(items),
		UnitsDistribution: make(map[string]int),
		TopUsed:           topUsed(items, usage),
		CriticalStock:     make([]domain.CriticalStockItem, 0),
		UrgencyCounts:     make(map[domain.UrgencyLevel]int),
		Items:             make([]domain.InventoryReportItem, 0, len(results)),
		GeneratedAt:       s.now().UTC(),
	}

	for _, res := range results {
		item := res.Job.Payload.(domain.InventoryItem)
		used := usage[item.IngredientID]
		available := restock.AvailableStock(item, used)

		report.TotalStockValue += item.TotalStock
		report.UnitsDistribution[item.Unit]++

		if s.calculator.IsCritical(item, available) {
			report.CriticalStock = append(report.CriticalStock, domain.CriticalStockItem{
				IngredientID:   item.IngredientID,
				IngredientName: item.IngredientName,
				Available:      available,
				Unit:           item.Unit,
				UsageRate:      used,
			})
		}

		row := domain.InventoryReportItem{
			Item:       item,
			TotalUsage: used,
			Health:     s.calculator.Calculate(item, res.Job.Request.CurrentStock),
		}
		switch res.Status {
		case pipeline.JobCompleted:
			row.Analysis = res.Analysis
			row.Urgency = res.Analysis.Decision.Level
		case pipeline.JobNoData:
			row.Urgency = domain.UrgencyNoData
		default:
			row.Error = res.Err.Error()
		}
		if row.Urgency != "" {
			report.UrgencyCounts[row.Urgency]++
		}
		report.Items = append(report.Items, row)
	}

	log.Info().
		Int("ingredients", report.TotalIngredients).
		Int("critical", len(report.CriticalStock)).
		Int("failed", summary.Failed).
		Msg("inventory report built")

	return report, summary, nil
}

// topUsed ranks ingredients by total usage, highest first.
func topUsed(items []domain.InventoryItem, usage map[int64]float64) []domain.UsageRank {
	byID := make(map[int64]domain.InventoryItem, len(items))
	for _, item := range items {
		byID[item.IngredientID] = item
	}

	ranks := make([]domain.UsageRank, 0, len(usage))
	for id, total := range usage {
		item := byID[id]
		ranks = append(ranks, domain.UsageRank{
			IngredientID:   id,
			IngredientName: item.IngredientName,
			Unit:           item.Unit,
			TotalUsage:     total,
		})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].TotalUsage != ranks[j].TotalUsage {
			return ranks[i].TotalUsage > ranks[j].TotalUsage
		}
		return ranks[i].IngredientID < ranks[j].IngredientID
	})

	if len(ranks) > topUsedLimit {
		ranks = ranks[:topUsedLimit]
	}
	return ranks
}

// Archive stores report as JSON under its dated key and returns the key.
func (s *ReportService) Archive(ctx context.Context, report *domain.InventoryReport) (string, error) {
	if s.store == nil {
		return "", ErrArchiveDisabled
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error encoding report: %w", err)
	}

	key := storage.ReportKey(report.GeneratedAt)
	if err := s.store.UploadObject(ctx, key, data); err != nil {
		return "", err
	}

	log.Info().Str("key", key).Int("bytes", len(data)).Msg("inventory report archived")
	return key, nil
}

// ListArchives lists the reports archived on date.
func (s *ReportService) ListArchives(ctx context.Context, date time.Time) ([]storage.ObjectInfo, error) {
	if s.store == nil {
		return nil, ErrArchiveDisabled
	}
	return s.store.ListObjects(ctx, storage.ReportPrefix(date))
}

// DownloadArchive copies the archived report at key to destPath.
func (s *ReportService) DownloadArchive(ctx context.Context, key, destPath string) error {
	if s.store == nil {
		return ErrArchiveDisabled
	}
	if err := s.store.DownloadObject(ctx, key, destPath); err != nil {
		return err
	}
	log.Info().Str("key", key).Str("dest", destPath).Msg("archived report downloaded")
	return nil
}
