package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"time"
)

const DefaultConfigPath = "conf/config.json"

type Config struct {
	Pexels struct {
		Key             string `json:"key"`
		BaseUrl         string `json:"baseUrl"`
		RequestsPerHour int    `json:"requestsPerHour"`
		Burst           int    `json:"burst"`
		TimeoutSeconds  int    `json:"timeoutSeconds"`
	} `json:"pexels.com"`
	App struct {
		Title string `json:"title"`
	} `json:"app"`
	Listen   string `json:"listen"`
	Database string `json:"database"`
	Cache    struct {
		Enabled bool `json:"enabled"`
		TTL     int  `json:"ttl"`
	} `json:"cache"`
	Search struct {
		PerPage            int    `json:"perPage"`
		Orientation        string `json:"orientation"`
		DebounceMs         int    `json:"debounceMs"`
		BrowseWithoutQuery bool   `json:"browseWithoutQuery"`
	} `json:"search"`
	Auth struct {
		Required bool `json:"required"`
	} `json:"auth"`
	Debug struct {
		PrettyJson bool `json:"prettyJson"`
	} `json:"debug"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Pexels.BaseUrl = DefaultPexelsBase
	cfg.Pexels.RequestsPerHour = 200
	cfg.Pexels.Burst = 20
	cfg.Pexels.TimeoutSeconds = 15
	cfg.App.Title = "Pexels Explorer"
	cfg.Listen = ":8081"
	cfg.Database = dbFile
	cfg.Cache.TTL = 86400
	cfg.Search.PerPage = DefaultPerPage
	cfg.Search.DebounceMs = 400
	return cfg
}

// LoadConfig reads the JSON config at path over the defaults. A missing file
// is not an error. PEXELS_API_KEY and PEXELS_API_BASE_URL override the file.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		defer f.Close()
		if err := decodeConfig(f, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if key := os.Getenv("PEXELS_API_KEY"); key != "" {
		cfg.Pexels.Key = key
	}
	if base := os.Getenv("PEXELS_API_BASE_URL"); base != "" {
		cfg.Pexels.BaseUrl = base
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeConfig(f io.ReadSeeker, cfg *Config) error {
	decoder := json.NewDecoder(f)
	switch err := decoder.Decode(cfg).(type) {
	case nil:
		return nil
	case *json.SyntaxError:
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			return err
		}
		pos := findPos(bufio.NewReader(f), int(err.Offset))
		return fmt.Errorf("unable to decode configuration file (Line: %d, Pos: %d): %w", pos.line, pos.pos, err)
	default:
		return fmt.Errorf("unable to decode configuration file: %w", err)
	}
}

func (cfg *Config) validate() error {
	if cfg.Pexels.BaseUrl == "" {
		return errors.New("pexels.com baseUrl must not be empty")
	}
	if _, err := ParseOrientation(cfg.Search.Orientation); err != nil {
		return fmt.Errorf("search.orientation: %w", err)
	}
	if cfg.Search.PerPage <= 0 {
		cfg.Search.PerPage = DefaultPerPage
	}
	if cfg.Pexels.Key == "" {
		log.New(os.Stderr, "(config) ", log.LstdFlags).
			Println("pexels.com key is not set, API calls will fail. Get a key at https://www.pexels.com/api/")
	}
	return nil
}

func (cfg *Config) DebounceDelay() time.Duration {
	return time.Duration(cfg.Search.DebounceMs) * time.Millisecond
}

func (cfg *Config) ControllerOptions() []ControllerOption {
	orientation, _ := ParseOrientation(cfg.Search.Orientation)
	return []ControllerOption{
		WithPerPage(cfg.Search.PerPage),
		WithOrientation(orientation),
		WithBrowse(cfg.Search.BrowseWithoutQuery),
	}
}

type FilePos struct {
	line int
	pos  int
}

func findPos(file *bufio.Reader, offset int) FilePos {
	p := FilePos{line: 1, pos: offset}
	var lineLen int
	for line, err := file.ReadBytes('\n'); len(line) > 0 && err == nil; line, err = file.ReadBytes('\n') {
		if p.pos < len(line) {
			return p
		}
		lineLen += len(line)
		if line[len(line)-1] == '\n' {
			p.line += 1
			p.pos -= lineLen
			lineLen = 0
		}
	}
	return p
}
