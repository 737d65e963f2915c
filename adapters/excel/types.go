package excel

// Sheet is the raw string content of one worksheet
type Sheet struct {
	Name string
	Rows [][]string
}

// Split sheet prefixes. Response workbooks name sheets "<split> <label>",
// feature workbooks name them by split alone.
const (
	SplitTrain      = "train"
	SplitValidation = "val"
	SplitTest       = "test"
)

func findSheet(sheets []Sheet, name string) *Sheet {
	for i := range sheets {
		if sheets[i].Name == name {
			return &sheets[i]
		}
	}
	return nil
}
