// Package config loads a typed configuration with viper and keeps it current while the
// file changes on disk.
package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const DefaultDebounce = 100 * time.Millisecond

// Config 持有当前配置值, 文件变更后自动重新加载
type Config[T any] struct {
	v     *viper.Viper
	path  string
	value *T

	watch    bool
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	watchers []func(old, new T)
}

type Option[T any] func(*Config[T])

// WithDefaults 设置默认值, key 使用点分路径, 例如 "client.timeout"
func WithDefaults[T any](defaults map[string]any) Option[T] {
	return func(c *Config[T]) {
		for k, v := range defaults {
			c.v.SetDefault(k, v)
		}
	}
}

// WithEnv 绑定环境变量: PREFIX_CLIENT_API_KEY -> client.api_key
//
// viper 只对已知 key 做自动绑定, 没有出现在文件和默认值里的 key 需要 WithBindEnv.
func WithEnv[T any](prefix string) Option[T] {
	return func(c *Config[T]) {
		c.v.SetEnvPrefix(prefix)
		c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		c.v.AutomaticEnv()
	}
}

// WithBindEnv 显式绑定 key 到环境变量
func WithBindEnv[T any](keys ...string) Option[T] {
	return func(c *Config[T]) {
		for _, k := range keys {
			_ = c.v.BindEnv(k)
		}
	}
}

// WithWatch 控制是否监听文件变更, 默认开启
func WithWatch[T any](on bool) Option[T] {
	return func(c *Config[T]) { c.watch = on }
}

func WithDebounce[T any](d time.Duration) Option[T] {
	return func(c *Config[T]) {
		if d > 0 {
			c.debounce = d
		}
	}
}

func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(c *Config[T]) {
		if l != nil {
			c.logger = l
		}
	}
}

// Load 读取配置文件 (yaml/json/toml, 按扩展名识别) 并解析到 T.
// path 为空时只使用默认值和环境变量, 也不会监听变更.
func Load[T any](path string, opts ...Option[T]) (*Config[T], error) {
	v := viper.New()
	c := &Config[T]{
		v:        v,
		path:     path,
		watch:    true,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var val T
	if err := v.Unmarshal(&val); err != nil {
		return nil, err
	}
	c.value = &val

	if c.watch && path != "" {
		c.startWatch()
	}
	return c, nil
}

// Path 返回配置文件路径
func (c *Config[T]) Path() string { return c.path }

// Get 获取当前配置 (并发安全, 返回深拷贝)
func (c *Config[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return deepCopy(*c.value)
}

// OnChange 注册变更回调, 只有内容真正变化时才会触发
func (c *Config[T]) OnChange(callback func(old, new T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, callback)
}

// Reload 立即重新读取配置文件并通知回调
func (c *Config[T]) Reload() error {
	if c.path == "" {
		return errors.New("config: no file to reload")
	}
	return c.handleConfigChange()
}

// Changed 比较两个值是否不同
func Changed[T any](old, new T) bool {
	return !reflect.DeepEqual(old, new)
}

// deepCopy 通过 JSON 序列化实现深拷贝
func deepCopy[T any](src T) T {
	var dst T
	data, _ := json.Marshal(src)
	_ = json.Unmarshal(data, &dst)
	return dst
}

func (c *Config[T]) startWatch() {
	var (
		timer *time.Timer
		mu    sync.Mutex
	)

	c.v.OnConfigChange(func(_ fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(c.debounce, func() {
			if err := c.handleConfigChange(); err != nil {
				c.logger.Warn("config reload failed", "path", c.path, "err", err)
			}
		})
	})

	c.v.WatchConfig()
}

func (c *Config[T]) handleConfigChange() error {
	old := c.Get()

	next, watchers, err := c.reload()
	if err != nil {
		return err
	}
	if reflect.DeepEqual(old, next) {
		return nil
	}

	c.logger.Info("config reloaded", "path", c.path)
	for _, cb := range watchers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("config watcher panicked", "panic", r)
				}
			}()
			cb(old, next)
		}()
	}
	return nil
}

// reload 重新加载配置, 失败时保留旧值
func (c *Config[T]) reload() (T, []func(old, new T), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	if err := c.v.ReadInConfig(); err != nil {
		return zero, nil, err
	}

	var val T
	if err := c.v.Unmarshal(&val); err != nil {
		return zero, nil, err
	}
	c.value = &val

	watchers := make([]func(old, new T), len(c.watchers))
	copy(watchers, c.watchers)

	return deepCopy(val), watchers, nil
}
