package providers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"ledgerd/internal/structures"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.BindEnv("logger.level", "LEDGERD_LOG_LEVEL")
	viper.BindEnv("sync.ttl", "LEDGERD_SYNC_TTL")
	viper.BindEnv("persistence.flushInterval", "LEDGERD_FLUSH_INTERVAL")
	viper.BindEnv("cache.enabled", "LEDGERD_CACHE_ENABLED")
	viper.BindEnv("cache.size", "LEDGERD_CACHE_SIZE")
	viper.BindEnv("feishu.appId", "LEDGERD_FEISHU_APP_ID")
	viper.BindEnv("feishu.appSecret", "LEDGERD_FEISHU_APP_SECRET")
	viper.BindEnv("feishu.appToken", "LEDGERD_FEISHU_APP_TOKEN")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "ledgerd"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
