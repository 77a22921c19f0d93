/*
Package config provides configuration loading and validation for the
notifyevents CLI.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/notifyevents"
	"github.com/oarkflow/notifyevents/internal/urlcheck"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = ".notifyevents.yaml"

const maxIncludeDepth = 8

// Config represents the complete CLI configuration
type Config struct {
	// Token is the source token of the target channel
	Token string `yaml:"token,omitempty"`

	// Endpoint is the relay URL template, {token} is substituted
	Endpoint string `yaml:"endpoint,omitempty"`

	// UserAgent sent with every request
	UserAgent string `yaml:"user_agent,omitempty"`

	// Timeout for submitting a message, as a Go duration
	Timeout string `yaml:"timeout,omitempty"`

	// Parallelism caps concurrent attachment resolution, 0 means unbounded
	Parallelism int `yaml:"parallelism,omitempty"`

	// Include other configuration files
	Includes []string `yaml:"includes,omitempty"`

	// Custom template variables
	Variables map[string]interface{} `yaml:"variables,omitempty"`

	// Message defaults
	Message MessageDefaults `yaml:"message,omitempty"`

	// Actions added to every message
	Actions []Action `yaml:"actions,omitempty"`
}

// MessageDefaults are applied when the corresponding flag is not given.
type MessageDefaults struct {
	Title           string `yaml:"title,omitempty"`
	TitleTemplate   string `yaml:"title_template,omitempty"`
	ContentTemplate string `yaml:"content_template,omitempty"`
	Priority        string `yaml:"priority,omitempty"`
	Level           string `yaml:"level,omitempty"`
}

// Action is an action button definition.
type Action struct {
	Name            string            `yaml:"name"`
	Title           string            `yaml:"title"`
	CallbackURL     string            `yaml:"callback_url,omitempty"`
	CallbackMethod  string            `yaml:"callback_method,omitempty"`
	CallbackHeaders map[string]string `yaml:"callback_headers,omitempty"`
	CallbackContent string            `yaml:"callback_content,omitempty"`
}

// Defaults returns the values used for every field the file leaves empty.
func Defaults() *Config {
	return &Config{
		Endpoint:  notifyevents.DefaultEndpoint,
		UserAgent: "notifyevents-go/" + notifyevents.Version,
		Timeout:   "60s",
		Message: MessageDefaults{
			Priority: string(notifyevents.PriorityNormal),
			Level:    string(notifyevents.LevelInfo),
		},
	}
}

// Load loads configuration from a file, resolves its includes and fills in
// defaults.
func Load(path string) (*Config, error) {
	cfg, err := load(path, 0)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(path string, depth int) (*Config, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("includes nested deeper than %d levels at %s", maxIncludeDepth, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	baseDir := filepath.Dir(path)
	for _, include := range cfg.Includes {
		includePath := include
		if !filepath.IsAbs(includePath) {
			includePath = filepath.Join(baseDir, include)
		}

		matches, err := filepath.Glob(includePath)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %s: %w", include, err)
		}

		for _, match := range matches {
			includeCfg, err := load(match, depth+1)
			if err != nil {
				return nil, fmt.Errorf("failed to load include %s: %w", match, err)
			}

			if err := mergo.Merge(&cfg, includeCfg, mergo.WithAppendSlice); err != nil {
				return nil, fmt.Errorf("failed to merge include %s: %w", match, err)
			}
		}
	}

	return &cfg, nil
}

// ApplyDefaults fills every empty field from Defaults.
func (c *Config) ApplyDefaults() error {
	if err := mergo.Merge(c, Defaults()); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}
	return nil
}

// TimeoutDuration parses Timeout. An empty value yields zero.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !strings.Contains(c.Endpoint, "{token}") {
		return fmt.Errorf("endpoint %q must contain {token}", c.Endpoint)
	}
	if !urlcheck.IsValidHTTPURL(strings.ReplaceAll(c.Endpoint, "{token}", "token")) {
		return fmt.Errorf("endpoint %q is not a valid http(s) URL", c.Endpoint)
	}

	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative")
	}

	if c.Message.Priority != "" {
		if _, err := notifyevents.ParsePriority(c.Message.Priority); err != nil {
			return fmt.Errorf("message.priority: %w", err)
		}
	}
	if c.Message.Level != "" {
		if _, err := notifyevents.ParseLevel(c.Message.Level); err != nil {
			return fmt.Errorf("message.level: %w", err)
		}
	}

	for i, a := range c.Actions {
		if a.Name == "" || a.Title == "" {
			return fmt.Errorf("actions[%d]: name and title are required", i)
		}
		if a.CallbackURL != "" && !urlcheck.IsValidHTTPURL(a.CallbackURL) {
			return fmt.Errorf("actions[%d]: invalid callback_url %q", i, a.CallbackURL)
		}
	}

	return c.validateTemplates()
}

// validateTemplates validates all template strings in the configuration
func (c *Config) validateTemplates() error {
	templateRe := regexp.MustCompile(`\{\{.*?\}\}`)

	validateTemplate := func(name, tmpl string) error {
		if !templateRe.MatchString(tmpl) {
			return nil
		}
		_, err := template.New(name).Option("missingkey=zero").Funcs(stubFuncs()).Parse(tmpl)
		if err != nil {
			return fmt.Errorf("invalid template in %s: %w", name, err)
		}
		return nil
	}

	if err := validateTemplate("message.title_template", c.Message.TitleTemplate); err != nil {
		return err
	}
	if err := validateTemplate("message.content_template", c.Message.ContentTemplate); err != nil {
		return err
	}
	for i, a := range c.Actions {
		if err := validateTemplate(fmt.Sprintf("actions[%d].callback_content", i), a.CallbackContent); err != nil {
			return err
		}
	}
	return nil
}

// stubFuncs declares the names the tmpl package provides so templates using
// them parse here without importing it.
func stubFuncs() template.FuncMap {
	names := []string{
		"replace", "tolower", "toupper", "title", "trim", "trimprefix", "trimsuffix",
		"split", "join", "contains", "hasprefix", "hassuffix", "env", "default",
		"time", "now", "truncate", "indent",
	}
	funcs := template.FuncMap{}
	for _, name := range names {
		funcs[name] = func(...interface{}) interface{} { return nil }
	}
	return funcs
}

// DefaultTemplate returns the default configuration template
func DefaultTemplate() string {
	return `# notifyevents configuration file

# Source token of the channel, usually taken from the environment
token: ${NOTIFY_EVENTS_TOKEN}

# Relay endpoint, {token} is replaced by the token above
# endpoint: https://notify.events/api/v1/channel/source/{token}/execute

timeout: 60s

# Number of attachments resolved at once, 0 resolves all of them together
parallelism: 0

# Custom template variables
variables:
  service: myservice

# Message defaults
message:
  title_template: "{{ .service }} on {{ .Hostname }}"
  priority: normal
  level: info

# Actions added to every message
# actions:
#   - name: ack
#     title: Acknowledge
#     callback_url: https://example.com/ack
#     callback_method: post
#     callback_headers:
#       Authorization: Bearer ${ACK_TOKEN}
#     callback_content: '{"host":"{{ .Hostname }}"}'
`
}
