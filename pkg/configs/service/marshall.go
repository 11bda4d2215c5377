package service

import (
	"fmt"
	"net/url"
	"time"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

type ConfigMarshall struct {
	Port             int                      `yaml:"port"`
	Database         string                   `yaml:"database"`
	ColumnSpecs      string                   `yaml:"columnSpecs"`
	SchemaRepository string                   `yaml:"schemaRepository"`
	LogLevel         string                   `yaml:"loglevel,omitempty"`
	LogFormat        string                   `yaml:"logFormat,omitempty"`
	Workspace        *WorkspaceConfigMarshall `yaml:"workspace"`
	Sketch           *SketchConfigMarshall    `yaml:"sketch,omitempty"`
	Cache            *CacheConfigMarshall     `yaml:"cache,omitempty"`
	Workers          *WorkersConfigMarshall   `yaml:"workers,omitempty"`
	TTL              *TTLConfigMarshall       `yaml:"ttl,omitempty"`
	Heartbeat        *HeartbeatConfigMarshall `yaml:"heartbeat,omitempty"`
}

var _ Marshalled[*Config] = &ConfigMarshall{}

func (c *ConfigMarshall) trySeal(path string) *Config {
	loglevel := c.LogLevel
	if loglevel == "" {
		loglevel = "info"
	}
	logFormat := c.LogFormat
	if logFormat == "" {
		logFormat = "json"
	}
	if logFormat != "json" && logFormat != "console" {
		panic(fmt.Errorf(`%s.logFormat should be "json" or "console": %s`, path, logFormat))
	}
	return &Config{
		port:             required(c.Port, path+".port"),
		database:         required(c.Database, path+".database"),
		columnSpecs:      required(c.ColumnSpecs, path+".columnSpecs"),
		schemaRepository: required(c.SchemaRepository, path+".schemaRepository"),
		loglevel:         loglevel,
		logFormat:        logFormat,
		workspace:        nonnil(c.Workspace, path+".workspace").trySeal(path + ".workspace"),
		sketch:           orZero(c.Sketch).trySeal(path + ".sketch"),
		cache:            orZero(c.Cache).trySeal(path + ".cache"),
		workers:          orZero(c.Workers).trySeal(path + ".workers"),
		ttl:              orZero(c.TTL).trySeal(path + ".ttl"),
		heartbeat:        orZero(c.Heartbeat).trySeal(path + ".heartbeat"),
	}
}

type WorkspaceConfigMarshall struct {
	URL string `yaml:"url"`
}

func (w *WorkspaceConfigMarshall) trySeal(path string) *WorkspaceConfig {
	return &WorkspaceConfig{url: requiredURL(w.URL, path+".url")}
}

type SketchConfigMarshall struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Retries int           `yaml:"retries,omitempty"`
}

func (s *SketchConfigMarshall) trySeal(path string) *SketchConfig {
	ret := &SketchConfig{
		timeout: positiveOr(s.Timeout, 30*time.Second, path+".timeout"),
		retries: positiveOr(s.Retries, 3, path+".retries"),
	}
	if s.URL != "" {
		ret.url = requiredURL(s.URL, path+".url")
	}
	return ret
}

type CacheConfigMarshall struct {
	Redis string        `yaml:"redis,omitempty"`
	TTL   time.Duration `yaml:"ttl,omitempty"`
}

func (c *CacheConfigMarshall) trySeal(path string) *CacheConfig {
	return &CacheConfig{
		redis: c.Redis,
		ttl:   positiveOr(c.TTL, 24*time.Hour, path+".ttl"),
	}
}

type WorkersConfigMarshall struct {
	Size   int           `yaml:"size,omitempty"`
	Queue  int           `yaml:"queue,omitempty"`
	Budget time.Duration `yaml:"budget,omitempty"`
}

func (w *WorkersConfigMarshall) trySeal(path string) *WorkersConfig {
	return &WorkersConfig{
		size:   positiveOr(w.Size, 4, path+".size"),
		queue:  positiveOr(w.Queue, 1000, path+".queue"),
		budget: positiveOr(w.Budget, 24*time.Hour, path+".budget"),
	}
}

type TTLConfigMarshall struct {
	Match     time.Duration `yaml:"match,omitempty"`
	Selection time.Duration `yaml:"selection,omitempty"`
}

func (t *TTLConfigMarshall) trySeal(path string) *TTLConfig {
	return &TTLConfig{
		match:     positiveOr(t.Match, 7*24*time.Hour, path+".match"),
		selection: positiveOr(t.Selection, 7*24*time.Hour, path+".selection"),
	}
}

type HeartbeatConfigMarshall struct {
	Interval  time.Duration `yaml:"interval,omitempty"`
	Staleness time.Duration `yaml:"staleness,omitempty"`
}

func (h *HeartbeatConfigMarshall) trySeal(path string) *HeartbeatConfig {
	interval := positiveOr(h.Interval, 10*time.Second, path+".interval")
	staleness := positiveOr(h.Staleness, 60*time.Second, path+".staleness")
	if staleness <= interval {
		panic(fmt.Errorf("%s.staleness should be longer than %s.interval", path, path))
	}
	return &HeartbeatConfig{interval: interval, staleness: staleness}
}

func orZero[T any](v *T) *T {
	if v == nil {
		return new(T)
	}
	return v
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}

func requiredURL(v string, path string) string {
	u, err := url.Parse(required(v, path))
	if err != nil || u.Scheme == "" || u.Host == "" {
		panic(fmt.Errorf("%s should be an absolute URL: %s", path, v))
	}
	return v
}

func positiveOr[T int | time.Duration](v T, def T, path string) T {
	if v < 0 {
		panic(fmt.Errorf("%s should not be negative", path))
	}
	if v == 0 {
		return def
	}
	return v
}
