package excel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"goencode/domain/core"
	"goencode/domain/encoding"
	"goencode/internal"

	"gonum.org/v1/gonum/mat"
)

// FeatureWorkbookSource reads <dir>/<feature>.xlsx with sheets train, val and
// an optional test, or <dir>/<feature>_<split>.csv files.
type FeatureWorkbookSource struct {
	dir    string
	logger *internal.Logger
}

// NewFeatureWorkbookSource creates a feature source rooted at dir
func NewFeatureWorkbookSource(dir string, logger *internal.Logger) *FeatureWorkbookSource {
	return &FeatureWorkbookSource{dir: dir, logger: internal.OrDefault(logger)}
}

// ListFeatures returns the feature names found in the directory, sorted
func (s *FeatureWorkbookSource) ListFeatures(ctx context.Context) ([]core.FeatureName, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: features directory %s", core.ErrNotFound, s.dir)
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".xlsx"):
			seen[strings.TrimSuffix(name, ".xlsx")] = true
		case strings.HasSuffix(name, "_"+SplitTrain+".csv"):
			seen[strings.TrimSuffix(name, "_"+SplitTrain+".csv")] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]core.FeatureName, len(names))
	for i, n := range names {
		out[i] = core.FeatureName(n)
	}
	return out, nil
}

// LoadFeature reads the split matrices of one feature
func (s *FeatureWorkbookSource) LoadFeature(ctx context.Context, name core.FeatureName) (*encoding.FeatureSet, error) {
	splits, err := s.readSplits(string(name))
	if err != nil {
		return nil, err
	}
	fs := &encoding.FeatureSet{
		Name:       name,
		Train:      splits[SplitTrain],
		Validation: splits[SplitValidation],
		Test:       splits[SplitTest],
	}
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	r, c := fs.Train.Dims()
	s.logger.Debug("feature %s loaded: train %dx%d", name, r, c)
	return fs, nil
}

func (s *FeatureWorkbookSource) readSplits(name string) (map[string]*mat.Dense, error) {
	out := make(map[string]*mat.Dense)
	workbook := filepath.Join(s.dir, name+".xlsx")
	if _, err := os.Stat(workbook); err == nil {
		sheets, err := NewDataReader(workbook, s.logger).Sheets()
		if err != nil {
			return nil, err
		}
		for _, split := range []string{SplitTrain, SplitValidation, SplitTest} {
			sheet := findSheet(sheets, split)
			if sheet == nil {
				continue
			}
			m, _, err := ParseMatrix(sheet.Rows)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", workbook, split, err)
			}
			out[split] = m
		}
	} else {
		for _, split := range []string{SplitTrain, SplitValidation, SplitTest} {
			path := filepath.Join(s.dir, name+"_"+split+".csv")
			if _, err := os.Stat(path); err != nil {
				continue
			}
			sheets, err := NewDataReader(path, s.logger).Sheets()
			if err != nil {
				return nil, err
			}
			m, _, err := ParseMatrix(sheets[0].Rows)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			out[split] = m
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", core.ErrFeatureNotFound, name, s.dir)
	}
	return out, nil
}

// ResponseWorkbookSource reads <dir>/<subject>.xlsx whose sheets are named
// "<split> <label>", e.g. "train -400ms". Timepoints keep the order of their
// train sheets.
type ResponseWorkbookSource struct {
	dir    string
	logger *internal.Logger
}

// NewResponseWorkbookSource creates a response source rooted at dir
func NewResponseWorkbookSource(dir string, logger *internal.Logger) *ResponseWorkbookSource {
	return &ResponseWorkbookSource{dir: dir, logger: internal.OrDefault(logger)}
}

// LoadResponses reads every timepoint or layer of one subject
func (s *ResponseWorkbookSource) LoadResponses(ctx context.Context, subject string) ([]encoding.ResponseSet, error) {
	path := filepath.Join(s.dir, subject+".xlsx")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: subject %s in %s", core.ErrResponseNotFound, subject, s.dir)
	}
	sheets, err := NewDataReader(path, s.logger).Sheets()
	if err != nil {
		return nil, err
	}

	var labels []string
	bySplit := map[string]map[string]*mat.Dense{
		SplitTrain:      {},
		SplitValidation: {},
		SplitTest:       {},
	}
	for _, sheet := range sheets {
		split, label, ok := strings.Cut(sheet.Name, " ")
		if !ok || bySplit[split] == nil {
			s.logger.Warn("%s: skipping sheet %q", path, sheet.Name)
			continue
		}
		m, _, err := ParseMatrix(sheet.Rows)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", path, sheet.Name, err)
		}
		bySplit[split][label] = m
		if split == SplitTrain {
			labels = append(labels, label)
		}
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: %s has no train sheets", core.ErrResponseNotFound, path)
	}

	sets := make([]encoding.ResponseSet, len(labels))
	for i, label := range labels {
		sets[i] = encoding.ResponseSet{
			Label:      label,
			Train:      bySplit[SplitTrain][label],
			Validation: bySplit[SplitValidation][label],
			Test:       bySplit[SplitTest][label],
		}
		if err := sets[i].Validate(nil); err != nil {
			return nil, err
		}
	}
	return sets, nil
}

// ScoreWorkbookSource reads per-subject accuracy matrices from
// <dir>/<group>.xlsx, one sheet per feature, or <dir>/<group>_<feature>.csv.
// Rows are subjects and columns timepoints.
type ScoreWorkbookSource struct {
	dir    string
	logger *internal.Logger
}

// NewScoreWorkbookSource creates a score source rooted at dir
func NewScoreWorkbookSource(dir string, logger *internal.Logger) *ScoreWorkbookSource {
	return &ScoreWorkbookSource{dir: dir, logger: internal.OrDefault(logger)}
}

// LoadScores reads the subjects × timepoints matrix of one feature
func (s *ScoreWorkbookSource) LoadScores(ctx context.Context, group string, feature core.FeatureName) (*mat.Dense, error) {
	workbook := filepath.Join(s.dir, group+".xlsx")
	if _, err := os.Stat(workbook); err == nil {
		sheets, err := NewDataReader(workbook, s.logger).Sheets()
		if err != nil {
			return nil, err
		}
		sheet := findSheet(sheets, sheetName(string(feature)))
		if sheet == nil {
			return nil, fmt.Errorf("%w: %s in %s", core.ErrFeatureNotFound, feature, workbook)
		}
		m, _, err := ParseMatrix(sheet.Rows)
		return m, err
	}

	path := filepath.Join(s.dir, group+"_"+string(feature)+".csv")
	if _, err := os.Stat(path); err != nil {
		return nil, core.NewNotFoundError("scores", group+"/"+string(feature))
	}
	sheets, err := NewDataReader(path, s.logger).Sheets()
	if err != nil {
		return nil, err
	}
	m, _, err := ParseMatrix(sheets[0].Rows)
	return m, err
}
