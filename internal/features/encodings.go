package features

// Encodings maps categorical field values to the stable integer codes the
// model was trained with. The tables are persisted inside the model bundle
// so training-time and serving-time encodings cannot drift.
type Encodings struct {
	Tables      map[string]map[string]int `yaml:"tables" json:"tables"`
	UnknownCode int                       `yaml:"unknown_code" json:"unknown_code"`
}

// Code resolves a categorical value to its trained code. Values never seen
// during training map to the reserved unknown code, and the lookup reports
// whether that happened.
func (e *Encodings) Code(field, value string) (float64, bool) {
	if e == nil || e.Tables == nil {
		return float64(0), true
	}
	table, ok := e.Tables[field]
	if !ok {
		return float64(e.UnknownCode), true
	}
	code, ok := table[value]
	if !ok {
		return float64(e.UnknownCode), true
	}
	return float64(code), false
}
