package export

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reportgate/reportgate/internal/model"
	"github.com/reportgate/reportgate/internal/store"
	"github.com/reportgate/reportgate/pkg/errors"
	"github.com/reportgate/reportgate/pkg/logger"
)

// syntheticSuffix marks a dataset whose values are placeholders
const syntheticSuffix = " (sample data)"

// syntheticPoints is the label count used when no indicator produced dates
const syntheticPoints = 12

// Materializer rebuilds chart block data from indicator series
type Materializer struct {
	reports       store.ReportStore
	maxConcurrent int
	random        func() float64
	now           func() time.Time
}

// NewMaterializer creates a materializer. maxConcurrent bounds concurrent blocks.
func NewMaterializer(reports store.ReportStore, maxConcurrent int) *Materializer {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Materializer{
		reports:       reports,
		maxConcurrent: maxConcurrent,
		random:        rand.Float64,
		now:           time.Now,
	}
}

// Materialize refreshes the chart data of every chart block in report and
// persists it, one update per block. Blocks run concurrently.
func (m *Materializer) Materialize(ctx context.Context, report *model.Report) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.maxConcurrent)

	for si := range report.Sections {
		for bi := range report.Sections[si].Blocks {
			block := &report.Sections[si].Blocks[bi]
			if block.Type != model.BlockTypeChart {
				continue
			}
			g.Go(func() error {
				return m.materializeBlock(ctx, block)
			})
		}
	}
	return g.Wait()
}

func (m *Materializer) materializeBlock(ctx context.Context, block *model.ReportBlock) error {
	decoded, err := block.Decode()
	if err != nil {
		logger.Warn("Skipping chart block with invalid content",
			zap.Uint("block_id", block.ID),
			zap.Error(err),
		)
		return nil
	}
	content := decoded.(*model.ChartContent)

	indicators := content.ResolveIndicators()
	if len(indicators) == 0 {
		return nil
	}

	data, err := m.BuildChartData(ctx, indicators)
	if err != nil {
		return err
	}
	content.ChartData = data

	raw, err := model.EncodeBlockContent(content)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to encode chart content", err)
	}
	if err := m.reports.UpdateBlockContent(block.ID, raw); err != nil {
		return errors.Wrap(errors.ErrCodeDBQuery, fmt.Sprintf("failed to persist chart data for block %d", block.ID), err)
	}
	block.Content = raw
	return nil
}

// series is the fetched observations of one indicator, keyed by date
type series struct {
	values map[string]*float64
	err    error
}

// BuildChartData fetches every indicator concurrently and aligns them on the
// sorted union of their dates. A failed fetch becomes a synthetic dataset of
// the same length so one broken indicator does not block the chart. A
// cancelled ctx is returned as an error and never replaced by sample data.
func (m *Materializer) BuildChartData(ctx context.Context, indicators []model.IndicatorConfig) (*model.ChartData, error) {
	fetched := make([]series, len(indicators))

	var g errgroup.Group
	for i, ind := range indicators {
		g.Go(func() error {
			fetched[i] = m.fetch(ctx, ind)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "chart data materialization cancelled", err)
	}

	dateSet := make(map[string]struct{})
	for _, s := range fetched {
		for d := range s.values {
			dateSet[d] = struct{}{}
		}
	}
	labels := make([]string, 0, len(dateSet))
	for d := range dateSet {
		labels = append(labels, d)
	}
	sort.Strings(labels)
	if len(labels) == 0 {
		labels = m.syntheticLabels()
	}

	datasets := make([]model.Dataset, 0, len(indicators))
	for i, ind := range indicators {
		hue := (60 * i) % 360
		ds := model.Dataset{
			Label:           indicatorLabel(ind),
			BorderColor:     fmt.Sprintf("hsl(%d, 70%%, 50%%)", hue),
			BackgroundColor: fmt.Sprintf("hsla(%d, 70%%, 50%%, 0.2)", hue),
			Type:            ind.ChartType,
			IndicatorID:     ind.IndicatorID,
			Data:            make([]*float64, len(labels)),
		}

		if fetched[i].err != nil {
			ds.Label += syntheticSuffix
			ds.Synthetic = true
			for j := range ds.Data {
				v := math.Round((50+m.random()*50)*100) / 100
				ds.Data[j] = &v
			}
		} else {
			for j, label := range labels {
				ds.Data[j] = fetched[i].values[label]
			}
		}
		datasets = append(datasets, ds)
	}

	return &model.ChartData{Labels: labels, Datasets: datasets}, nil
}

// fetch returns the embedded points when present, otherwise the stored series
func (m *Materializer) fetch(ctx context.Context, ind model.IndicatorConfig) series {
	values := make(map[string]*float64)

	if len(ind.Points) > 0 {
		for _, p := range ind.Points {
			if p.Date == "" {
				continue
			}
			values[p.Date] = p.Value
		}
		return series{values: values}
	}

	rows, err := m.reports.GetIndicatorSeries(ind.IndicatorID, ind.DateRange)
	if err != nil {
		logger.Warn("Indicator fetch failed, substituting sample data",
			zap.Uint("indicator_id", ind.IndicatorID),
			zap.Error(err),
		)
		return series{err: err}
	}
	for _, row := range rows {
		v := row.Value
		values[row.Date.UTC().Format(store.DateLayout)] = &v
	}
	return series{values: values}
}

// syntheticLabels returns month starts ending with the current month
func (m *Materializer) syntheticLabels() []string {
	now := m.now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	labels := make([]string, syntheticPoints)
	for i := 0; i < syntheticPoints; i++ {
		labels[i] = first.AddDate(0, i-syntheticPoints+1, 0).Format(store.DateLayout)
	}
	return labels
}

func indicatorLabel(ind model.IndicatorConfig) string {
	if ind.Name != "" {
		return ind.Name
	}
	return fmt.Sprintf("Indicator %d", ind.IndicatorID)
}
