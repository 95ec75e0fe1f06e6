package model

import "time"

// Config is the complete runtime configuration
// Field tags double as the keys of ~/.legalscan/config.yaml and LEGALSCAN_* variables
type Config struct {
	Analysis     AnalysisConfig     `yaml:"analysis"`
	Thresholds   Thresholds         `yaml:"thresholds"`
	Forgery      ForgeryConfig      `yaml:"forgery"`
	Extract      ExtractConfig      `yaml:"extract"`
	Store        StoreConfig        `yaml:"store"`
	Cache        CacheConfig        `yaml:"cache"`
	Server       ServerConfig       `yaml:"server"`
	HTTP         HTTPConfig         `yaml:"http"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting"`
	LLM          LLMConfig          `yaml:"llm"`
	Logging      LoggingConfig      `yaml:"logging"`
	Output       OutputConfig       `yaml:"output"`
}

// AnalysisConfig controls the text analyzer and pattern library
type AnalysisConfig struct {
	MaxTextChars int    `yaml:"max_text_chars"` // Text beyond this is ignored by the text analyzer
	NLP          string `yaml:"nlp"`            // "prose" (statistical NER) or "rules" (fallback)
	PatternsFile string `yaml:"patterns_file"`  // Optional YAML file replacing the embedded pattern library
	Tone         bool   `yaml:"tone"`           // Attach a sentiment reading to reports
}

// Thresholds holds every empirically chosen constant used by the analyzers
type Thresholds struct {
	Text    TextThresholds    `yaml:"text"`
	Forgery ForgeryThresholds `yaml:"forgery"`
	Scam    ScamThresholds    `yaml:"scam"`
	Risk    RiskBands         `yaml:"risk"`
}

// TextThresholds tunes key clause extraction and summary building
type TextThresholds struct {
	MinParagraphChars   int `yaml:"min_paragraph_chars"`
	MinImportance       int `yaml:"min_importance"`
	MaxKeyClauses       int `yaml:"max_key_clauses"`
	ClauseContentChars  int `yaml:"clause_content_chars"`
	KeyTermContentChars int `yaml:"key_term_content_chars"`
	SummaryParties      int `yaml:"summary_parties"`
	SummaryDates        int `yaml:"summary_dates"`
	SummaryExcerptChars int `yaml:"summary_excerpt_chars"`
}

// ForgeryThresholds tunes the text-style, image and metadata heuristics
type ForgeryThresholds struct {
	StyleDiff           float64 `yaml:"style_diff"`          // L1 distance between consecutive line styles
	StyleChangeRatio    float64 `yaml:"style_change_ratio"`  // Fraction of lines that may change style
	SpacingAnomalies    int     `yaml:"spacing_anomalies"`   // Allowed occurrences of wide gaps
	SignatureMinWidth   int     `yaml:"signature_min_width"` // Exclusive bounds, pixels
	SignatureMaxWidth   int     `yaml:"signature_max_width"`
	SignatureMinHeight  int     `yaml:"signature_min_height"`
	SignatureMaxHeight  int     `yaml:"signature_max_height"`
	SignatureMinAspect  float64 `yaml:"signature_min_aspect"`
	SignatureMaxAspect  float64 `yaml:"signature_max_aspect"`
	SignatureMinDensity float64 `yaml:"signature_min_density"`
	SignatureMaxDensity float64 `yaml:"signature_max_density"`
	EdgeDensity         float64 `yaml:"edge_density"`         // Transitions per pixel suggesting pixelation
	BorderRows          int     `yaml:"border_rows"`          // Leading rows checked for emptiness
	DuplicateSimilarity float64 `yaml:"duplicate_similarity"` // Fraction of identical pixels at 100x50
	ELAQuality          int     `yaml:"ela_quality"`          // JPEG re-encode quality
	ELAMeanDiff         float64 `yaml:"ela_mean_diff"`        // Mean absolute difference, 0-255
	CorrelationMin      float64 `yaml:"correlation_min"`      // Normalized correlation for a repeat
	CorrelationRadius   int     `yaml:"correlation_radius"`   // Matches closer than this are merged
	RepeatedMatches     int     `yaml:"repeated_matches"`     // Allowed distinct repeats
	MetadataYearGap     int     `yaml:"metadata_year_gap"`    // Years between creation and modification
	MaxFonts            int     `yaml:"max_fonts"`            // Distinct font resources
	AlertWeight         float64 `yaml:"alert_weight"`         // Score added per alert
	WordingMinWords     int     `yaml:"wording_min_words"`    // Document length before wording fallback applies
	WordingMinMatches   int     `yaml:"wording_min_matches"`  // Distinct wording patterns required
	WordingFloor        float64 `yaml:"wording_floor"`        // Score floor when wording fallback fires
}

// ScamThresholds tunes the clause and scam heuristics
type ScamThresholds struct {
	MinKeywords        int     `yaml:"min_keywords"` // Distinct scam keywords for a template alert
	HighWeight         float64 `yaml:"high_weight"`
	MediumWeight       float64 `yaml:"medium_weight"`
	LowWeight          float64 `yaml:"low_weight"`
	DefaultWeight      float64 `yaml:"default_weight"`       // Weight of unrecognized levels
	CompanyMinCount    int     `yaml:"company_min_count"`    // Occurrences for a name to be significant
	CompanyMinNames    int     `yaml:"company_min_names"`    // Significant names before alerting
	ContextWindow      int     `yaml:"context_window"`       // Characters either side of an unusual request
	ContextFallback    int     `yaml:"context_fallback"`     // Characters after a clause match with no period
	RenderContextChars int     `yaml:"render_context_chars"` // Context length in rendered alerts
}

// RiskBands maps a combined score to a qualitative level
type RiskBands struct {
	Medium float64 `yaml:"medium"` // Scores below this are Low
	High   float64 `yaml:"high"`   // Scores below this are Medium
}

// ForgeryConfig bounds the cost of image heuristics
type ForgeryConfig struct {
	ImageTimeout   time.Duration `yaml:"image_timeout"`    // Budget per image check
	MaxImagePixels int           `yaml:"max_image_pixels"` // Larger images are rejected as an alert
	CorrelationDim int           `yaml:"correlation_dim"`  // Longest side used by the repeat search
}

// ExtractConfig configures the external text extraction tools
type ExtractConfig struct {
	TesseractPath string        `yaml:"tesseract_path"`
	PdftoppmPath  string        `yaml:"pdftoppm_path"`
	OCRLanguage   string        `yaml:"ocr_language"`
	RenderDPI     int           `yaml:"render_dpi"`
	OCRFallback   bool          `yaml:"ocr_fallback"` // OCR individual pages with no text layer; fully scanned PDFs are always OCRed
	Timeout       time.Duration `yaml:"timeout"`      // Budget per external tool invocation
}

// StoreConfig selects the report store
type StoreConfig struct {
	Driver       string `yaml:"driver"`        // "sqlite3" or "postgres"
	DSN          string `yaml:"dsn"`           // Empty uses ~/.legalscan/reports.db
	HistoryLimit int    `yaml:"history_limit"` // Reports returned by history listings
}

// CacheConfig controls the read-through report cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir"` // Disk layer directory, empty disables the disk layer
	MemoryTTL time.Duration `yaml:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	MaxUploadBytes    int64    `yaml:"max_upload_bytes"`
	UploadDir         string   `yaml:"upload_dir"` // Empty uses a fresh temp directory
	AllowedExtensions []string `yaml:"allowed_extensions"`
	RequestsPerSecond float64  `yaml:"requests_per_second"` // Per client IP
	Burst             int      `yaml:"burst"`
}

// HTTPConfig configures fetching of remote documents
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	UserAgent     string        `yaml:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
	InsecureTLS   bool          `yaml:"insecure_tls"`
	HTTPProxy     string        `yaml:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots"`
}

// ConcurrencyConfig sizes the batch worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers"`
}

// RateLimitingConfig throttles remote fetches per host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

// LLMConfig configures the optional narrative summary
type LLMConfig struct {
	Provider  string `yaml:"provider"` // "" disables, "openai" enables
	Model     string `yaml:"model"`
	APIKey    string `yaml:"-"` // Read from OPENAI_API_KEY only
	BaseURL   string `yaml:"base_url"`
	Timeout   int    `yaml:"timeout"` // Seconds
	MaxTokens int    `yaml:"max_tokens"`
}

// LoggingConfig configures the slog handler
type LoggingConfig struct {
	Level   string `yaml:"level"` // debug, info, warn, error
	NoColor bool   `yaml:"no_color"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose       bool   `yaml:"verbose"`
	IncludeFooter bool   `yaml:"include_footer"`
	Dir           string `yaml:"dir"` // Batch output directory
}

// DefaultThresholds returns the calibrated analyzer constants
func DefaultThresholds() Thresholds {
	return Thresholds{
		Text: TextThresholds{
			MinParagraphChars:   10,
			MinImportance:       2,
			MaxKeyClauses:       8,
			ClauseContentChars:  300,
			KeyTermContentChars: 200,
			SummaryParties:      5,
			SummaryDates:        3,
			SummaryExcerptChars: 100,
		},
		Forgery: ForgeryThresholds{
			StyleDiff:           0.5,
			StyleChangeRatio:    0.1,
			SpacingAnomalies:    5,
			SignatureMinWidth:   200,
			SignatureMaxWidth:   1000,
			SignatureMinHeight:  20,
			SignatureMaxHeight:  200,
			SignatureMinAspect:  1.5,
			SignatureMaxAspect:  10,
			SignatureMinDensity: 0.05,
			SignatureMaxDensity: 0.5,
			EdgeDensity:         0.3,
			BorderRows:          20,
			DuplicateSimilarity: 0.9,
			ELAQuality:          95,
			ELAMeanDiff:         10,
			CorrelationMin:      0.95,
			CorrelationRadius:   5,
			RepeatedMatches:     5,
			MetadataYearGap:     5,
			MaxFonts:            5,
			AlertWeight:         0.2,
			WordingMinWords:     100,
			WordingMinMatches:   2,
			WordingFloor:        0.4,
		},
		Scam: ScamThresholds{
			MinKeywords:        3,
			HighWeight:         0.25,
			MediumWeight:       0.15,
			LowWeight:          0.05,
			DefaultWeight:      0.1,
			CompanyMinCount:    2,
			CompanyMinNames:    2,
			ContextWindow:      100,
			ContextFallback:    200,
			RenderContextChars: 200,
		},
		Risk: RiskBands{
			Medium: 0.4,
			High:   0.7,
		},
	}
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			MaxTextChars: 100_000,
			NLP:          "prose",
			Tone:         true,
		},
		Thresholds: DefaultThresholds(),
		Forgery: ForgeryConfig{
			ImageTimeout:   20 * time.Second,
			MaxImagePixels: 40_000_000,
			CorrelationDim: 512,
		},
		Extract: ExtractConfig{
			TesseractPath: "tesseract",
			PdftoppmPath:  "pdftoppm",
			OCRLanguage:   "eng",
			RenderDPI:     150,
			OCRFallback:   true,
			Timeout:       2 * time.Minute,
		},
		Store: StoreConfig{
			Driver:       "sqlite3",
			HistoryLimit: 20,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Server: ServerConfig{
			Addr:              ":8080",
			AllowedOrigins:    []string{"http://localhost:5173"},
			MaxUploadBytes:    10 << 20,
			AllowedExtensions: []string{"pdf", "docx", "jpg", "jpeg", "png", "html", "htm", "txt"},
			RequestsPerSecond: 1,
			Burst:             5,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "legalscan/0.1 (+https://github.com/ppiankov/legalscan)",
			MaxBodyBytes:  10 << 20,
			RespectRobots: true,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         5,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 800,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Output: OutputConfig{
			IncludeFooter: true,
			Dir:           "./legalscan-reports",
		},
	}
}

// RiskLevelFor bands a combined score
func (b RiskBands) RiskLevelFor(score float64) Level {
	switch {
	case score < b.Medium:
		return LevelLow
	case score < b.High:
		return LevelMedium
	default:
		return LevelHigh
	}
}
