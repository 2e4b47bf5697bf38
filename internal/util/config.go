package util

import (
	"fmt"

	"github.com/spf13/viper"
)

// TargetConfig holds the connection settings for the target management system.
// The profile IDs and root folder are opaque to the reconciler; they are
// whatever the target instance was set up with.
type TargetConfig struct {
	BaseURL           string
	APIKey            string
	RootFolder        string
	QualityProfileID  int
	MetadataProfileID int
}

// GetTargetConfig reads the target system configuration from viper
func GetTargetConfig() (*TargetConfig, error) {
	cfg := &TargetConfig{
		BaseURL:           viper.GetString("lidarr.url"),
		APIKey:            viper.GetString("lidarr.api_key"),
		RootFolder:        viper.GetString("lidarr.root_folder"),
		QualityProfileID:  viper.GetInt("lidarr.quality_profile"),
		MetadataProfileID: viper.GetInt("lidarr.metadata_profile"),
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: lidarr.url is required", ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: lidarr.api_key is required", ErrInvalidConfig)
	}
	if cfg.RootFolder == "" {
		return nil, fmt.Errorf("%w: lidarr.root_folder is required", ErrInvalidConfig)
	}
	if cfg.QualityProfileID <= 0 || cfg.MetadataProfileID <= 0 {
		return nil, fmt.Errorf("%w: lidarr.quality_profile and lidarr.metadata_profile are required", ErrInvalidConfig)
	}

	return cfg, nil
}

// GetSourceURL returns the source catalog bridge URL
func GetSourceURL() (string, error) {
	url := viper.GetString("roon.url")
	if url == "" {
		return "", fmt.Errorf("%w: roon.url is required", ErrInvalidConfig)
	}
	return url, nil
}

// GetArtifactsDir returns the directory for event logs
func GetArtifactsDir() string {
	dir := viper.GetString("artifacts")
	if dir == "" {
		dir = "artifacts"
	}
	return dir
}
