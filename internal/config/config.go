package config

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

func InitialiseConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath("/etc/huesic/")
	viper.AddConfigPath("$HOME/.config/huesic/")
	viper.AddConfigPath(".")

	viper.SetDefault("listenAddr", ":8000")
	viper.SetDefault("dbPath", "huesic.db")
	viper.SetDefault("pollIntervalSeconds", 3)
	viper.SetDefault("spotify.redirectUri", "http://localhost:8000/api/callback")

	err := viper.ReadInConfig()
	if err != nil {
		log.Error(err)
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
}

func PollInterval() time.Duration {
	return time.Duration(viper.GetInt("pollIntervalSeconds")) * time.Second
}
