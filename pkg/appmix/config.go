package appmix

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MixyLabs/appmix/pkg/appmix/util"
)

// ConfigManager loads appmix.yaml and optionally watches it for changes
type ConfigManager struct {
	logger             *zap.SugaredLogger
	notifier           Notifier
	stopWatcherChannel chan bool

	reloadConsumers []chan bool

	configFilepath string
	userConfig     *viper.Viper

	current Config
}

// Config holds every user-tunable setting
type Config struct {
	ClientName       string        `mapstructure:"client_name"`
	Server           string        `mapstructure:"server"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	IterateWait      time.Duration `mapstructure:"iterate_wait"`
	StrictLookup     bool          `mapstructure:"strict_lookup"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
}

const (
	// DefaultConfigFilepath is looked up in the working directory
	DefaultConfigFilepath = "appmix.yaml"

	configType = "yaml"

	configKeyClientName       = "client_name"
	configKeyServer           = "server"
	configKeyOperationTimeout = "operation_timeout"
	configKeyIterateWait      = "iterate_wait"
	configKeyStrictLookup     = "strict_lookup"
	configKeyPollInterval     = "poll_interval"

	defaultPollInterval = 2 * time.Second
)

// NewConfig prepares a config manager for the given file, DefaultConfigFilepath when empty
func NewConfig(logger *zap.SugaredLogger, notifier Notifier, configFilepath string) (*ConfigManager, error) {
	logger = logger.Named("config")

	if configFilepath == "" {
		configFilepath = DefaultConfigFilepath
	}

	cc := &ConfigManager{
		logger:             logger,
		notifier:           notifier,
		reloadConsumers:    []chan bool{},
		stopWatcherChannel: make(chan bool),
		configFilepath:     configFilepath,
	}

	userConfig := viper.New()
	userConfig.SetConfigFile(configFilepath)
	userConfig.SetConfigType(configType)

	userConfig.SetDefault(configKeyClientName, DefaultClientName)
	userConfig.SetDefault(configKeyServer, "")
	userConfig.SetDefault(configKeyOperationTimeout, time.Duration(0))
	userConfig.SetDefault(configKeyIterateWait, defaultIterateWait)
	userConfig.SetDefault(configKeyStrictLookup, false)
	userConfig.SetDefault(configKeyPollInterval, defaultPollInterval)

	cc.userConfig = userConfig

	logger.Debug("Created config instance")

	return cc, nil
}

// Load reads the config file. A missing file isn't an error, defaults apply instead.
func (cc *ConfigManager) Load() error {
	cc.logger.Debugw("Loading config", "path", cc.configFilepath)

	if !util.FileExists(cc.configFilepath) {
		cc.logger.Debugw("Config file not found, using defaults", "path", cc.configFilepath)
	} else if err := cc.userConfig.ReadInConfig(); err != nil {
		cc.logger.Warnw("Viper failed to read user config", "error", err)

		// if the error is yaml-format-related, show a sensible error. otherwise, show 'em to the logs
		if strings.Contains(err.Error(), "yaml:") {
			cc.notifier.Notify("Invalid configuration!",
				fmt.Sprintf("Please make sure %s is in a valid YAML format.", filepath.Base(cc.configFilepath)))
		} else {
			cc.notifier.Notify("Error loading configuration!", "Please check appmix's logs for more details.")
		}

		return fmt.Errorf("read user config: %w", err)
	}

	if err := cc.populateFromViper(); err != nil {
		cc.logger.Warnw("Failed to populate config fields", "error", err)
		return fmt.Errorf("populate config fields: %w", err)
	}

	cc.logger.Info("Loaded config successfully")
	cc.logger.Infow("Config values",
		"clientName", cc.current.ClientName,
		"server", cc.current.Server,
		"operationTimeout", cc.current.OperationTimeout,
		"strictLookup", cc.current.StrictLookup)

	return nil
}

// Current returns the most recently loaded config
func (cc *ConfigManager) Current() *Config {
	return &cc.current
}

// SubscribeToChanges allows external components to receive updates when the config is reloaded
func (cc *ConfigManager) SubscribeToChanges() chan bool {
	c := make(chan bool, 1)
	cc.reloadConsumers = append(cc.reloadConsumers, c)

	return c
}

// WatchConfigFileChanges starts watching for configuration file changes
// and attempts reloading the config when they happen
func (cc *ConfigManager) WatchConfigFileChanges() {
	cc.logger.Debugw("Starting to watch user config file for changes", "path", cc.configFilepath)

	const (
		minTimeBetweenReloadAttempts = time.Millisecond * 500
		delayBetweenEventAndReload   = time.Millisecond * 50
	)

	lastAttemptedReload := time.Now()

	cc.userConfig.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) {
			return
		}

		now := time.Now()

		// many editors write twice
		if lastAttemptedReload.Add(minTimeBetweenReloadAttempts).After(now) {
			return
		}

		cc.logger.Debugw("Config file modified, attempting reload", "event", event)

		// let the editor flush the new contents to disk
		<-time.After(delayBetweenEventAndReload)

		if err := cc.Load(); err != nil {
			cc.logger.Warnw("Failed to reload config file", "error", err)
		} else {
			cc.logger.Info("Reloaded config successfully")
			cc.notifier.Notify("Configuration reloaded!", "Your changes have been applied.")

			cc.onConfigReloaded()
		}

		lastAttemptedReload = now
	})
	cc.userConfig.WatchConfig()

	<-cc.stopWatcherChannel
	cc.logger.Debug("Stopping user config file watcher")
	cc.userConfig.OnConfigChange(func(fsnotify.Event) {})
}

// StopWatchingConfigFile signals our filesystem watcher to stop
func (cc *ConfigManager) StopWatchingConfigFile() {
	cc.stopWatcherChannel <- true
}

func (cc *ConfigManager) populateFromViper() error {
	err := cc.userConfig.Unmarshal(&cc.current, func(dConf *mapstructure.DecoderConfig) {
		dConf.WeaklyTypedInput = false
		dConf.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		)
	})
	if err != nil {
		return err
	}

	if cc.current.ClientName == "" {
		cc.current.ClientName = DefaultClientName
	}

	if cc.current.PollInterval <= 0 {
		cc.current.PollInterval = defaultPollInterval
	}

	cc.logger.Debug("Populated config fields from viper")

	return nil
}

func (cc *ConfigManager) onConfigReloaded() {
	cc.logger.Debug("Notifying consumers about configuration reload")

	for _, consumer := range cc.reloadConsumers {
		// a consumer that hasn't caught up with the previous reload will read the latest config anyway
		select {
		case consumer <- true:
		default:
		}
	}
}

// EngineOptions derives the engine settings from the config
func (c *Config) EngineOptions() Options {
	return Options{
		ClientName:       c.ClientName,
		OperationTimeout: c.OperationTimeout,
		StrictLookup:     c.StrictLookup,
	}
}
