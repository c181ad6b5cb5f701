package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Target is one monitored bot declared in the environment.
type Target struct {
	ID        string
	URL       string
	DeployURL string
}

// MonitorConfig holds the sweep and state machine tunables.
type MonitorConfig struct {
	Interval      Duration `yaml:"interval"`
	ProbeTimeout  Duration `yaml:"probe_timeout"`
	DeployTimeout Duration `yaml:"deploy_timeout"`
	FailThreshold int      `yaml:"fail_threshold"`
	GraceWindow   Duration `yaml:"grace_window"`
}

// TelegramConfig holds notifier credentials. Token and chat id may also come
// from TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID, which take precedence.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// StorageConfig holds probe history storage settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// StateConfig holds the report-id state file location.
type StateConfig struct {
	Path string `yaml:"path"`
}

// Config is the root application configuration.
type Config struct {
	Monitor  MonitorConfig  `yaml:"monitor"`
	Telegram TelegramConfig `yaml:"telegram"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	State    StateConfig    `yaml:"state"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Interval:      Duration{60 * time.Second},
			ProbeTimeout:  Duration{8 * time.Second},
			DeployTimeout: Duration{8 * time.Second},
			FailThreshold: 2,
			GraceWindow:   Duration{10 * time.Minute},
		},
		Server:  ServerConfig{Address: ":8080"},
		Storage: StorageConfig{Path: "botmon.db"},
		State:   StateConfig{Path: "report_id.txt"},
	}
}

// Load reads the YAML config file at path, applying defaults for anything
// unset. A missing file is not an error: everything has a default except the
// notifier credentials, which may come from the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}

	if cfg.Monitor.Interval.Duration <= 0 {
		return nil, fmt.Errorf("monitor.interval must be positive")
	}
	if cfg.Monitor.FailThreshold < 1 {
		return nil, fmt.Errorf("monitor.fail_threshold must be at least 1")
	}
	if cfg.Monitor.GraceWindow.Duration <= 0 {
		return nil, fmt.Errorf("monitor.grace_window must be positive")
	}

	return cfg, nil
}

var botKeyRe = regexp.MustCompile(`^[Bb][Oo][Tt]([0-9]+)$`)

// TargetsFromEnv extracts the roster from environment entries. A target is
// declared as bot<N>={<probeURL>, <deployURL>} with both URLs http or https.
// Malformed entries are skipped; the roster is ordered by ascending N.
func TargetsFromEnv(environ []string) []Target {
	type numbered struct {
		n int
		t Target
	}
	var found []numbered
	seen := make(map[int]bool)

	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		m := botKeyRe.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		probeURL, deployURL, ok := parseTargetValue(value)
		if !ok {
			continue
		}
		seen[n] = true
		found = append(found, numbered{n: n, t: Target{
			ID:        "bot" + m[1],
			URL:       probeURL,
			DeployURL: deployURL,
		}})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	targets := make([]Target, 0, len(found))
	for _, f := range found {
		targets = append(targets, f.t)
	}
	return targets
}

// parseTargetValue parses "{<probeURL>, <deployURL>}".
func parseTargetValue(value string) (probeURL, deployURL string, ok bool) {
	v := strings.TrimSpace(value)
	if !strings.HasPrefix(v, "{") || !strings.HasSuffix(v, "}") {
		return "", "", false
	}
	v = strings.TrimSuffix(strings.TrimPrefix(v, "{"), "}")

	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return "", "", false
	}
	probeURL = strings.TrimSpace(parts[0])
	deployURL = strings.TrimSpace(parts[1])
	if !validHTTPURL(probeURL) || !validHTTPURL(deployURL) {
		return "", "", false
	}
	return probeURL, deployURL, true
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
