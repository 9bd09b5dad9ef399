package forecast

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"dt-server/models"

	"gopkg.in/yaml.v3"
)

const DefaultLocale = "en"

//go:embed templates/reasoning.yaml
var reasoningYAML []byte

type reasoningTable map[string]map[models.Trend]map[models.RiskLevel]string

// Reasoner renders the explanation sentence attached to each prediction.
type Reasoner struct {
	templates reasoningTable
}

// NewReasoner loads the embedded sentence templates.
func NewReasoner() (*Reasoner, error) {
	return ParseReasoner(reasoningYAML)
}

// ParseReasoner builds a Reasoner from YAML keyed by locale, trend and risk level.
func ParseReasoner(data []byte) (*Reasoner, error) {
	var table reasoningTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse reasoning templates: %w", err)
	}
	if _, ok := table[DefaultLocale]; !ok {
		return nil, fmt.Errorf("reasoning templates missing default locale %q", DefaultLocale)
	}
	return &Reasoner{templates: table}, nil
}

// Supports reports whether templates exist for the locale.
func (r *Reasoner) Supports(locale string) bool {
	_, ok := r.templates[locale]
	return ok
}

// Locales lists the locales with templates, sorted.
func (r *Reasoner) Locales() []string {
	out := make([]string, 0, len(r.templates))
	for l := range r.templates {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Explain picks the sentence for (trend, risk) in locale, falling back to the
// default locale, and fills in the placeholders.
func (r *Reasoner) Explain(locale string, p models.Prediction, recent int) string {
	tmpl := r.lookup(locale, p.CurrentTrend, p.RiskLevel)
	if tmpl == "" {
		tmpl = r.lookup(DefaultLocale, p.CurrentTrend, p.RiskLevel)
	}
	return strings.NewReplacer(
		"{disease}", p.Disease,
		"{increase}", strconv.FormatFloat(p.PredictedIncrease, 'f', 1, 64),
		"{recent}", strconv.Itoa(recent),
	).Replace(tmpl)
}

func (r *Reasoner) lookup(locale string, trend models.Trend, risk models.RiskLevel) string {
	byTrend, ok := r.templates[locale]
	if !ok {
		return ""
	}
	return byTrend[trend][risk]
}
