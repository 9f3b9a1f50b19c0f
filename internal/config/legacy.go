package config

// legacyConfig mirrors the pre-YAML on-disk format: a JSON5 document whose
// sessions section is a list rather than a map keyed by session id. Only
// the shape that differs from Config needs its own type; everything else
// migrates field-for-field.
type legacyConfig struct {
	Bots     BotsConfig      `json:"bots"`
	Sessions []legacySession `json:"sessions"`
	Index    IndexConfig     `json:"index"`
	Search   SearchConfig    `json:"search"`
	Database DatabaseConfig  `json:"database"`
}

type legacySession struct {
	ID           string             `json:"id"`
	Path         string             `json:"path"`
	Destinations DestinationsConfig `json:"destinations"`
}

// migrateLegacy converts the list-of-sessions legacy shape into the
// current map-keyed Config, leaving every other section untouched.
func migrateLegacy(old *legacyConfig) *Config {
	cfg := &Config{
		Bots:     old.Bots,
		Sessions: make(map[string]SessionSpec, len(old.Sessions)),
		Index:    old.Index,
		Search:   old.Search,
		Database: old.Database,
	}
	for _, s := range old.Sessions {
		cfg.Sessions[s.ID] = SessionSpec{Path: s.Path, Destinations: s.Destinations}
	}
	return cfg
}
