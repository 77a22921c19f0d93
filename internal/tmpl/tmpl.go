/*
Package tmpl renders message titles, contents and action payloads from the
templates in the configuration.
*/
package tmpl

import (
	"bytes"
	"os"
	"os/user"
	"runtime"
	"strings"
	"text/template"
	"time"

	"github.com/oarkflow/notifyevents/internal/config"
)

// Context provides template context and rendering
type Context struct {
	config *config.Config
	data   map[string]interface{}
}

// New creates a new template context
func New(cfg *config.Config) *Context {
	ctx := &Context{
		config: cfg,
		data:   make(map[string]interface{}),
	}
	ctx.init()
	return ctx
}

// init initializes the template data
func (c *Context) init() {
	now := time.Now()

	// Host info
	if hostname, err := os.Hostname(); err == nil {
		c.data["Hostname"] = hostname
	}
	if u, err := user.Current(); err == nil {
		c.data["User"] = u.Username
	}

	// Date/time
	c.data["Date"] = now.Format(time.RFC3339)
	c.data["Now"] = now
	c.data["Timestamp"] = now.Unix()

	// Runtime info
	c.data["Os"] = runtime.GOOS
	c.data["Arch"] = runtime.GOARCH

	// Environment
	env := make(map[string]string)
	for _, e := range os.Environ() {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			env[parts[0]] = parts[1]
		}
	}
	c.data["Env"] = env

	// Custom variables from config
	if c.config != nil {
		for k, v := range c.config.Variables {
			c.data[k] = v
		}
	}
}

// Apply applies the template to a string
func (c *Context) Apply(tmpl string) (string, error) {
	t, err := template.New("").Option("missingkey=zero").Funcs(c.funcs()).Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, c.data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// Set sets a value in the context
func (c *Context) Set(key string, value interface{}) {
	c.data[key] = value
}

// Get gets a value from the context
func (c *Context) Get(key string) string {
	if val, ok := c.data[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// funcs returns the template function map
func (c *Context) funcs() template.FuncMap {
	return template.FuncMap{
		// String functions
		"replace":    strings.ReplaceAll,
		"tolower":    strings.ToLower,
		"toupper":    strings.ToUpper,
		"title":      strings.Title,
		"trim":       strings.TrimSpace,
		"trimprefix": strings.TrimPrefix,
		"trimsuffix": strings.TrimSuffix,
		"split":      strings.Split,
		"join":       strings.Join,
		"contains":   strings.Contains,
		"hasprefix":  strings.HasPrefix,
		"hassuffix":  strings.HasSuffix,

		// Environment
		"env": os.Getenv,

		// Default value
		"default": func(def, val interface{}) interface{} {
			if val == nil || val == "" {
				return def
			}
			return val
		},

		// Date formatting
		"time": func(t time.Time, format string) string {
			return t.Format(format)
		},
		"now": time.Now,

		// Text shaping for chat clients
		"truncate": func(n int, s string) string {
			r := []rune(s)
			if n < 0 || len(r) <= n {
				return s
			}
			return string(r[:n]) + "…"
		},
		"indent": func(n int, s string) string {
			pad := strings.Repeat(" ", n)
			return pad + strings.ReplaceAll(s, "\n", "\n"+pad)
		},
	}
}
