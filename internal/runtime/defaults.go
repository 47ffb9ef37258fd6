package runtime

import (
	"maps"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

// AI node defaults.
const (
	DefaultSystemPrompt  = "Du bist ein hilfreicher WhatsApp Bot Assistent. Antworte kurz und freundlich auf Deutsch."
	DefaultErrorMessage  = "Entschuldigung, ein Fehler ist aufgetreten."
	DefaultTemperature   = 0.7
	DefaultMaxTokens     = 1000
	DefaultHistoryWindow = 10
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.7
	DefaultLLMTimeout    = 30 * time.Second
)

// Defaults holds the fallback values AI nodes use when their config is silent.
// Temperature and MinSimilarity are pointers because zero is a valid setting
// (deterministic replies, every hit); nil means "use the built-in value".
type Defaults struct {
	SystemPrompt  string
	ErrorMessage  string
	Provider      string
	Models        map[string]string // provider -> model
	Temperature   *float64
	MaxTokens     int
	HistoryWindow int
	TopK          int
	MinSimilarity *float64
}

// Float returns a pointer to v, for the optional fields of Defaults.
func Float(v float64) *float64 {
	return &v
}

// DefaultDefaults returns the built-in defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		SystemPrompt: DefaultSystemPrompt,
		ErrorMessage: DefaultErrorMessage,
		Provider:     domain.ProviderGroq,
		Models: map[string]string{
			domain.ProviderGroq:   "llama-3.3-70b-versatile",
			domain.ProviderOpenAI: "gpt-4o-mini",
			domain.ProviderGemini: "gemini-2.0-flash",
		},
		Temperature:   Float(DefaultTemperature),
		MaxTokens:     DefaultMaxTokens,
		HistoryWindow: DefaultHistoryWindow,
		TopK:          DefaultTopK,
		MinSimilarity: Float(DefaultMinSimilarity),
	}
}

// merge fills unset fields of d from base.
func (d Defaults) merge(base Defaults) Defaults {
	if d.SystemPrompt == "" {
		d.SystemPrompt = base.SystemPrompt
	}
	if d.ErrorMessage == "" {
		d.ErrorMessage = base.ErrorMessage
	}
	if d.Provider == "" {
		d.Provider = base.Provider
	}
	models := maps.Clone(base.Models)
	maps.Copy(models, d.Models)
	d.Models = models
	if d.Temperature == nil {
		d.Temperature = base.Temperature
	}
	if d.MaxTokens == 0 {
		d.MaxTokens = base.MaxTokens
	}
	if d.HistoryWindow == 0 {
		d.HistoryWindow = base.HistoryWindow
	}
	if d.TopK == 0 {
		d.TopK = base.TopK
	}
	if d.MinSimilarity == nil {
		d.MinSimilarity = base.MinSimilarity
	}
	return d
}

func (d Defaults) temperature() float64 {
	if d.Temperature == nil {
		return DefaultTemperature
	}
	return *d.Temperature
}

func (d Defaults) minSimilarity() float64 {
	if d.MinSimilarity == nil {
		return DefaultMinSimilarity
	}
	return *d.MinSimilarity
}
