// Package report renders the artifacts of one run as a markdown document and
// as a standalone HTML page.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"goencode/domain/core"
	"goencode/domain/encoding"
	domainInference "goencode/domain/inference"
	"goencode/domain/run"
	"goencode/internal/errors"
	"goencode/ports"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"
)

// Builder assembles reports from the ledger
type Builder struct {
	ledger   ports.LedgerReaderPort
	timeline domainInference.Timeline
}

// NewBuilder creates a report builder. timeline labels permutation results,
// which do not carry their own labels.
func NewBuilder(ledger ports.LedgerReaderPort, timeline domainInference.Timeline) *Builder {
	return &Builder{ledger: ledger, timeline: timeline}
}

// searchSummary is the part of a stored search result the report needs
type searchSummary struct {
	Feature   string                    `json:"feature"`
	Penalties []float64                 `json:"penalties"`
	Selection *encoding.SelectionResult `json:"selection"`
	Fallbacks int                       `json:"solver_fallbacks"`
}

// decode converts a payload to dst. Payloads are Go values when read from
// the in-memory ledger and raw JSON when read from PostgreSQL.
func decode(payload interface{}, dst interface{}) error {
	raw, ok := payload.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = b
	}
	return json.Unmarshal(raw, dst)
}

// Markdown renders every artifact of a run in ledger order
func (b *Builder) Markdown(ctx context.Context, runID core.RunID) (string, error) {
	manifest, err := b.ledger.GetRunManifest(ctx, runID)
	if err != nil {
		return "", errors.Wrapf(err, "failed to load manifest of %s", runID)
	}
	artifacts, err := b.ledger.GetArtifactsByRun(ctx, runID)
	if err != nil {
		return "", errors.Wrapf(err, "failed to load artifacts of %s", runID)
	}

	var md strings.Builder
	writeManifest(&md, manifest)

	byKind := make(map[core.ArtifactKind][]core.Artifact)
	for _, a := range artifacts {
		byKind[a.Kind] = append(byKind[a.Kind], a)
	}
	for _, kind := range core.Kinds() {
		if kind == core.ArtifactRunManifest || len(byKind[kind]) == 0 {
			continue
		}
		if err := b.writeSection(&md, kind, byKind[kind]); err != nil {
			return "", errors.Wrapf(err, "failed to render %s artifacts", kind)
		}
	}
	return md.String(), nil
}

// HTML renders a run report as a complete HTML page
func (b *Builder) HTML(ctx context.Context, runID core.RunID) ([]byte, error) {
	md, err := b.Markdown(ctx, runID)
	if err != nil {
		return nil, err
	}
	return ToHTML(md, "Run "+runID.String()), nil
}

// ToHTML converts markdown to a standalone page
func ToHTML(md string, title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage | html.HrefTargetBlank,
		Title: title,
	})
	return markdown.ToHTML([]byte(md), p, renderer)
}

func writeManifest(md *strings.Builder, m *run.RunManifestArtifact) {
	fmt.Fprintf(md, "# Run %s\n\n", m.RunID)
	fmt.Fprintf(md, "- Analysis: %s\n", m.Analysis)
	fmt.Fprintf(md, "- Features: %s\n", strings.Join(m.Features, ", "))
	if m.Seed != 0 {
		fmt.Fprintf(md, "- Seed: %d\n", m.Seed)
	}
	if len(m.Penalties) > 0 {
		fmt.Fprintf(md, "- Penalty grid: %d values from %g to %g\n", len(m.Penalties), m.Penalties[0], m.Penalties[len(m.Penalties)-1])
	}
	keys := make([]string, 0, len(m.Parameters))
	for k := range m.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(md, "- %s: %s\n", k, m.Parameters[k])
	}
	fmt.Fprintf(md, "- Fingerprint: `%s`\n", m.Fingerprint.Fingerprint)
	fmt.Fprintf(md, "- Code version: %s\n", m.CodeVersion)
	fmt.Fprintf(md, "- Created: %s\n\n", m.CreatedAt)
}

func (b *Builder) writeSection(md *strings.Builder, kind core.ArtifactKind, artifacts []core.Artifact) error {
	switch kind {
	case core.ArtifactSearch:
		md.WriteString("## Penalty search\n\n")
		for _, a := range artifacts {
			var s searchSummary
			if err := decode(a.Payload, &s); err != nil {
				return err
			}
			writeSearch(md, s)
		}
	case core.ArtifactEncoding:
		md.WriteString("## Held-out encoding\n\n")
		md.WriteString("| Feature | Timepoint | Penalty | Mean r | Median r | Max r |\n|---|---|---|---|---|---|\n")
		for _, a := range artifacts {
			var e encoding.EncodingResult
			if err := decode(a.Payload, &e); err != nil {
				return err
			}
			writeEncoding(md, string(a.Feature), &e)
		}
		md.WriteString("\n")
	case core.ArtifactAccuracyCI:
		md.WriteString("## Accuracy confidence intervals\n\n")
		md.WriteString("| Feature | Best timepoint | Mean | Lower | Upper | Mean CI width |\n|---|---|---|---|---|---|\n")
		for _, a := range artifacts {
			var r domainInference.AccuracyResult
			if err := decode(a.Payload, &r); err != nil {
				return err
			}
			writeAccuracy(md, &r)
		}
		md.WriteString("\n")
	case core.ArtifactPeakCI:
		md.WriteString("## Peak latency (ms)\n\n| Feature | Lower | Peak | Upper |\n|---|---|---|---|\n")
		for _, a := range artifacts {
			var r domainInference.PeakResult
			if err := decode(a.Payload, &r); err != nil {
				return err
			}
			fmt.Fprintf(md, "| %s | %g | %g | %g |\n", r.Feature, r.Interval.Lower, r.Interval.Peak, r.Interval.Upper)
		}
		md.WriteString("\n")
	case core.ArtifactPeakDifference:
		md.WriteString("## Peak latency differences (ms)\n\n| Comparison | Lower | Estimate | Upper | Excludes 0 |\n|---|---|---|---|---|\n")
		for _, a := range artifacts {
			var d domainInference.PeakDifference
			if err := decode(a.Payload, &d); err != nil {
				return err
			}
			excludes := d.Lower > 0 || d.Upper < 0
			fmt.Fprintf(md, "| %s | %g | %g | %g | %t |\n", d.Key(), d.Lower, d.Estimate, d.Upper, excludes)
		}
		md.WriteString("\n")
	case core.ArtifactPermutation:
		md.WriteString("## Permutation tests\n\n")
		for _, a := range artifacts {
			var r domainInference.PermutationResult
			if err := decode(a.Payload, &r); err != nil {
				return err
			}
			b.writePermutation(md, &r)
		}
	}
	return nil
}

func writeSearch(md *strings.Builder, s searchSummary) {
	sel := s.Selection
	if sel == nil {
		return
	}
	fmt.Fprintf(md, "### %s\n\n", s.Feature)
	fmt.Fprintf(md, "Aggregate penalty: %g (RMSE), %g (correlation). Solver fallbacks: %d.\n\n",
		sel.AggregatePenaltyRMSE, sel.AggregatePenaltyCorr, s.Fallbacks)
	md.WriteString("| Timepoint | Best penalty (RMSE) | Best penalty (r) | r at best |\n|---|---|---|---|\n")
	for t, label := range sel.Labels {
		best := 0.0
		if t < len(sel.ReducedCorr) && sel.BestIndexCorr[t] < len(sel.ReducedCorr[t]) {
			best = sel.ReducedCorr[t][sel.BestIndexCorr[t]]
		}
		fmt.Fprintf(md, "| %s | %g | %g | %.4f |\n", label, sel.BestPenaltyRMSE[t], sel.BestPenaltyCorr[t], best)
	}
	md.WriteString("\n")
}

func writeEncoding(md *strings.Builder, feature string, e *encoding.EncodingResult) {
	for t, label := range e.Labels {
		data := stats.Float64Data(e.Correlation[t])
		mean, _ := data.Mean()
		median, _ := data.Median()
		peak, _ := data.Max()
		fmt.Fprintf(md, "| %s | %s | %g | %.4f | %.4f | %.4f |\n", feature, label, e.Penalties[t], mean, median, peak)
	}
}

func writeAccuracy(md *strings.Builder, r *domainInference.AccuracyResult) {
	if len(r.Mean) == 0 {
		return
	}
	best := 0
	widths := make([]float64, len(r.Intervals))
	for t := range r.Mean {
		if r.Mean[t] > r.Mean[best] {
			best = t
		}
	}
	for t, iv := range r.Intervals {
		widths[t] = iv.Width()
	}
	meanWidth, _ := stats.Mean(widths)
	label := fmt.Sprintf("%d", best)
	if best < len(r.Labels) {
		label = r.Labels[best]
	}
	fmt.Fprintf(md, "| %s | %s | %.4f | %.4f | %.4f | %.4f |\n",
		r.Feature, label, r.Mean[best], r.Intervals[best].Lower, r.Intervals[best].Upper, meanWidth)
}

func (b *Builder) writePermutation(md *strings.Builder, r *domainInference.PermutationResult) {
	labels := b.timeline.Labels(len(r.PValues))
	sig := r.Significant()

	fmt.Fprintf(md, "### %s\n\n", r.Feature)
	fmt.Fprintf(md, "%d of %d timepoints significant at FDR %g (tail %s, %d permutations).\n\n",
		len(sig), len(r.PValues), r.Alpha, r.Tail, r.NPerm)
	if len(sig) == 0 {
		return
	}

	minP, _ := stats.Min(stats.Float64Data(r.Corrected))
	fmt.Fprintf(md, "Smallest corrected p: %.4g.\n\n", minP)
	md.WriteString("| Timepoint | Observed | p | Corrected p | Null 95th pct |\n|---|---|---|---|---|\n")
	for _, t := range sig {
		null := 0.0
		if t < len(r.Null) {
			null = r.Null[t].Percentile95
		}
		fmt.Fprintf(md, "| %s | %.4f | %.4g | %.4g | %.4f |\n", labels[t], r.Observed[t], r.PValues[t], r.Corrected[t], null)
	}
	md.WriteString("\n")
}
