package excel

import "goencode/internal"

// Config locates the workbooks the sources read
type Config struct {
	FeaturesDir  string `json:"features_dir"`
	ResponsesDir string `json:"responses_dir"`
	ScoresDir    string `json:"scores_dir"`
}

// Sources builds the three workbook sources
func (c Config) Sources(logger *internal.Logger) (*FeatureWorkbookSource, *ResponseWorkbookSource, *ScoreWorkbookSource) {
	return NewFeatureWorkbookSource(c.FeaturesDir, logger),
		NewResponseWorkbookSource(c.ResponsesDir, logger),
		NewScoreWorkbookSource(c.ScoresDir, logger)
}
