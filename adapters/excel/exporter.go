package excel

import (
	"fmt"
	"sort"
	"strings"

	"goencode/domain/encoding"
	domainInference "goencode/domain/inference"
	"goencode/domain/run"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// maxSheetName is Excel's limit on worksheet name length
const maxSheetName = 31

// Workbook builds an xlsx file sheet by sheet
type Workbook struct {
	f      *excelize.File
	sheets int
}

// NewWorkbook creates an empty workbook
func NewWorkbook() *Workbook {
	return &Workbook{f: excelize.NewFile()}
}

// sheetName strips characters Excel rejects and truncates to the length limit
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, name)
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}

func (w *Workbook) sheet(name string) (string, error) {
	name = sheetName(name)
	if w.sheets == 0 {
		// Reuse the default sheet every new file starts with.
		if err := w.f.SetSheetName(w.f.GetSheetName(0), name); err != nil {
			return "", err
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return "", err
	}
	w.sheets++
	return name, nil
}

// AddRows writes rows into a new sheet, starting at A1
func (w *Workbook) AddRows(name string, rows [][]interface{}) error {
	sheet, err := w.sheet(name)
	if err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", name, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := w.f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

// AddMatrix writes m into a new sheet, preceded by header when given
func (w *Workbook) AddMatrix(name string, header []string, m mat.Matrix) error {
	r, c := m.Dims()
	rows := make([][]interface{}, 0, r+1)
	if header != nil {
		rows = append(rows, toRow(header))
	}
	for i := 0; i < r; i++ {
		row := make([]interface{}, c)
		for j := 0; j < c; j++ {
			row[j] = m.At(i, j)
		}
		rows = append(rows, row)
	}
	return w.AddRows(name, rows)
}

// AddManifest writes the run manifest as key/value rows
func (w *Workbook) AddManifest(m *run.RunManifestArtifact) error {
	rows := [][]interface{}{
		{"run_id", string(m.RunID)},
		{"analysis", string(m.Analysis)},
		{"seed", m.Seed},
		{"code_version", m.CodeVersion},
		{"fingerprint", m.Fingerprint.Fingerprint.String()},
		{"created_at", m.CreatedAt.String()},
		{"features", strings.Join(m.Features, ", ")},
	}
	keys := make([]string, 0, len(m.Parameters))
	for k := range m.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rows = append(rows, []interface{}{k, m.Parameters[k]})
	}
	return w.AddRows("manifest", rows)
}

// AddSelection writes per-timepoint best penalties of one feature
func (w *Workbook) AddSelection(feature string, sel *encoding.SelectionResult) error {
	rows := [][]interface{}{
		{"timepoint", "best_alpha_rmse", "best_alpha_corr", "reduced_rmse", "reduced_corr"},
	}
	for t, label := range sel.Labels {
		rows = append(rows, []interface{}{
			label,
			sel.BestPenaltyRMSE[t],
			sel.BestPenaltyCorr[t],
			sel.ReducedRMSE[t][sel.BestIndexRMSE[t]],
			sel.ReducedCorr[t][sel.BestIndexCorr[t]],
		})
	}
	rows = append(rows,
		[]interface{}{},
		[]interface{}{"aggregate", sel.AggregatePenaltyRMSE, sel.AggregatePenaltyCorr},
	)
	return w.AddRows("search "+feature, rows)
}

// AddEncoding writes channel-averaged held-out scores of one feature
func (w *Workbook) AddEncoding(feature string, enc *encoding.EncodingResult) error {
	rows := [][]interface{}{{"timepoint", "penalty", "mean_corr", "mean_rmse", "solver_fallback"}}
	for t, label := range enc.Labels {
		rows = append(rows, []interface{}{
			label,
			enc.Penalties[t],
			stat.Mean(enc.Correlation[t], nil),
			stat.Mean(enc.RMSE[t], nil),
			enc.FellBack[t],
		})
	}
	return w.AddRows("enc "+feature, rows)
}

// AddAccuracy writes bootstrap accuracy intervals of one feature
func (w *Workbook) AddAccuracy(res *domainInference.AccuracyResult) error {
	rows := [][]interface{}{{"timepoint", "mean", "lower", "upper"}}
	for t, iv := range res.Intervals {
		rows = append(rows, []interface{}{res.Labels[t], res.Mean[t], iv.Lower, iv.Upper})
	}
	return w.AddRows("ci "+res.Feature, rows)
}

// AddPeaks writes peak-latency intervals and pairwise differences
func (w *Workbook) AddPeaks(peaks []domainInference.PeakResult, diffs map[string]domainInference.PeakDifference) error {
	rows := [][]interface{}{{"feature", "lower_ms", "peak_ms", "upper_ms"}}
	for _, p := range peaks {
		rows = append(rows, []interface{}{p.Feature, p.Interval.Lower, p.Interval.Peak, p.Interval.Upper})
	}
	if len(diffs) > 0 {
		keys := make([]string, 0, len(diffs))
		for k := range diffs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows = append(rows, []interface{}{}, []interface{}{"comparison", "lower_ms", "difference_ms", "upper_ms"})
		for _, k := range keys {
			d := diffs[k]
			rows = append(rows, []interface{}{k, d.Lower, d.Estimate, d.Upper})
		}
	}
	return w.AddRows("peaks", rows)
}

// AddPermutation writes the p-value maps of one feature
func (w *Workbook) AddPermutation(res *domainInference.PermutationResult, labels []string) error {
	rows := [][]interface{}{{"timepoint", "observed", "p", "p_fdr", "significant"}}
	for t := range res.PValues {
		label := fmt.Sprintf("%d", t)
		if t < len(labels) {
			label = labels[t]
		}
		rows = append(rows, []interface{}{label, res.Observed[t], res.PValues[t], res.Corrected[t], res.Reject[t]})
	}
	return w.AddRows("perm "+res.Feature, rows)
}

// SaveAs writes the workbook to path
func (w *Workbook) SaveAs(path string) error {
	defer w.f.Close()
	if err := w.f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}
