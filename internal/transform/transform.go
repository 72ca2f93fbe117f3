package transform

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/config"
	"github.com/sells-group/musicdw/internal/fetcher"
	"github.com/sells-group/musicdw/internal/model"
)

// Result is the outcome of one transform run.
type Result struct {
	Features      model.AggregatedTable
	Indicators    model.AggregatedTable
	FeatureStats  CleanStats
	SurveyStats   CleanStats
	FeaturePath   string
	IndicatorPath string
}

// Run reads both raw tables, cleans and aggregates them, and writes the two
// per-genre tables under the processed directory.
func Run(ctx context.Context, paths config.PathsConfig, rules Rules) (*Result, error) {
	log := zap.L().With(zap.String("component", "transform"))
	res := &Result{
		FeaturePath:   paths.FeatureAggregatePath(),
		IndicatorPath: paths.IndicatorAggregatePath(),
	}

	var err error
	res.Features, res.FeatureStats, err = processTable(log, paths.FeaturePath(), res.FeaturePath, model.RoleFeature, rules)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "transform: cancelled")
	}

	res.Indicators, res.SurveyStats, err = processTable(log, paths.SurveyPath(), res.IndicatorPath, model.RoleSurvey, rules)
	if err != nil {
		return nil, err
	}

	log.Info("processed tables written",
		zap.String("dir", paths.ProcessedDir),
		zap.Int("feature_genres", len(res.Features.Rows)),
		zap.Int("indicator_genres", len(res.Indicators.Rows)),
	)
	return res, nil
}

func processTable(log *zap.Logger, in, out string, role model.SchemaRole, rules Rules) (model.AggregatedTable, CleanStats, error) {
	log.Info("reading raw table", zap.String("role", string(role)), zap.String("path", in))

	raw, err := fetcher.ReadTable(in)
	if err != nil {
		return model.AggregatedTable{}, CleanStats{}, eris.Wrapf(err, "transform: read %s table", role)
	}

	cleaned, stats, err := Clean(raw, role, rules)
	if err != nil {
		return model.AggregatedTable{}, CleanStats{}, err
	}
	LogStats(log, stats)

	agg := Aggregate(cleaned)
	if err := fetcher.WriteAggregate(out, agg); err != nil {
		return model.AggregatedTable{}, CleanStats{}, eris.Wrapf(err, "transform: write %s aggregate", role)
	}
	log.Info("aggregate written", zap.String("role", string(role)), zap.String("path", out), zap.Int("genres", len(agg.Rows)))
	return agg, stats, nil
}
