// Package service holds the configuration of the collections service and its loops.
//
// To get a Config, use Load or Unmarshal.
package service

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	port             int
	database         string
	columnSpecs      string
	schemaRepository string
	loglevel         string
	logFormat        string
	workspace        *WorkspaceConfig
	sketch           *SketchConfig
	cache            *CacheConfig
	workers          *WorkersConfig
	ttl              *TTLConfig
	heartbeat        *HeartbeatConfig
}

func (c *Config) Port() int {
	return c.port
}

// Connection string for database.
func (c *Config) Database() string {
	return c.database
}

// Directory of column spec files of data products.
func (c *Config) ColumnSpecs() string {
	return c.columnSpecs
}

// Directory of schema migration files.
func (c *Config) SchemaRepository() string {
	return c.schemaRepository
}

// debug|info|warn|error. default: info
func (c *Config) LogLevel() string {
	return c.loglevel
}

// json|console. default: json
func (c *Config) LogFormat() string {
	return c.logFormat
}

func (c *Config) Workspace() *WorkspaceConfig {
	return c.workspace
}

func (c *Config) Sketch() *SketchConfig {
	return c.sketch
}

func (c *Config) Cache() *CacheConfig {
	return c.cache
}

func (c *Config) Workers() *WorkersConfig {
	return c.workers
}

func (c *Config) TTL() *TTLConfig {
	return c.ttl
}

func (c *Config) Heartbeat() *HeartbeatConfig {
	return c.heartbeat
}

type WorkspaceConfig struct {
	url string
}

// URL of the workspace service.
func (w *WorkspaceConfig) URL() string {
	return w.url
}

type SketchConfig struct {
	url     string
	timeout time.Duration
	retries int
}

// URL of the sketch service. Empty when the minhash matcher is disabled.
func (s *SketchConfig) URL() string {
	return s.url
}

// Timeout of each call. default: 30s
func (s *SketchConfig) Timeout() time.Duration {
	return s.timeout
}

// Attempts of each call. default: 3
func (s *SketchConfig) Retries() int {
	return s.retries
}

type CacheConfig struct {
	redis string
	ttl   time.Duration
}

// URL of redis. Empty when cache is disabled.
func (c *CacheConfig) Redis() string {
	return c.redis
}

func (c *CacheConfig) TTL() time.Duration {
	return c.ttl
}

type WorkersConfig struct {
	size   int
	queue  int
	budget time.Duration
}

// Count of workers. default: 4
func (w *WorkersConfig) Size() int {
	return w.size
}

// Capacity of job queue. default: 1000
func (w *WorkersConfig) Queue() int {
	return w.queue
}

// Wall-clock budget of each job. default: 24h
func (w *WorkersConfig) Budget() time.Duration {
	return w.budget
}

type TTLConfig struct {
	match     time.Duration
	selection time.Duration
}

func (t *TTLConfig) Match() time.Duration {
	return t.match
}

func (t *TTLConfig) Selection() time.Duration {
	return t.selection
}

type HeartbeatConfig struct {
	interval  time.Duration
	staleness time.Duration
}

func (h *HeartbeatConfig) Interval() time.Duration {
	return h.interval
}

func (h *HeartbeatConfig) Staleness() time.Duration {
	return h.staleness
}

// Load reads config from a file.
func Load(filepath string) (*Config, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

// Unmarshal parses config.
//
// Misconfiguration is returned as an error.
func Unmarshal(conf []byte) (out *Config, err error) {
	var m *ConfigMarshall
	if err := yaml.Unmarshal(conf, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("config is empty")
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("misconfiguration: %v", r)
		}
	}()
	return TrySeal[*Config](m), nil
}
