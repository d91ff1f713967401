package ingest

// OverlapLevel grades how much of a file already exists in storage
type OverlapLevel string

const (
	OverlapError   OverlapLevel = "ERROR"   // 95% or more: probably already imported
	OverlapWarning OverlapLevel = "WARNING" // 50% to under 95%
	OverlapInfo    OverlapLevel = "INFO"    // Under 50%
)

// OverlapCheck summarizes the pre-import duplicate lookup shown to the user
// before they confirm an upload.
type OverlapCheck struct {
	Sampled    int          `json:"sampled"`
	Existing   int          `json:"existing"`
	Percentage float64      `json:"percentage"`
	Level      OverlapLevel `json:"level"`
	Message    string       `json:"message"`
}

// SampleReferences extracts up to 100 distinct external references from
// parsed records, for the storage-side existence count.
func SampleReferences(records []*Record) []string {
	seen := make(map[string]bool)
	refs := make([]string, 0, periodSampleLimit)
	for _, r := range records {
		if len(refs) >= periodSampleLimit {
			break
		}
		if r.ExternalRef == "" || seen[r.ExternalRef] {
			continue
		}
		seen[r.ExternalRef] = true
		refs = append(refs, r.ExternalRef)
	}
	return refs
}

// ClassifyOverlap turns a sampled/existing pair into the user-facing
// warning level. Thresholds: >=95% error, 50% to <95% warning, below that
// informational.
func ClassifyOverlap(sampled, existing int) *OverlapCheck {
	check := &OverlapCheck{Sampled: sampled, Existing: existing}
	if sampled <= 0 {
		check.Level = OverlapInfo
		check.Message = "nenhuma referência encontrada para verificar"
		return check
	}

	check.Percentage = float64(existing) / float64(sampled) * 100

	switch {
	case check.Percentage >= 95:
		check.Level = OverlapError
		check.Message = "este arquivo provavelmente já foi importado"
	case check.Percentage >= 80:
		check.Level = OverlapWarning
		check.Message = "grande parte das vendas deste arquivo já existe"
	case check.Percentage >= 50:
		check.Level = OverlapWarning
		check.Message = "parte das vendas deste arquivo já existe"
	default:
		check.Level = OverlapInfo
		check.Message = "baixa sobreposição com vendas existentes"
	}
	return check
}
