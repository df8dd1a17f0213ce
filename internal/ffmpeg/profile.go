package ffmpeg

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile holds the tunable encoder parameters. GPU and CPU bundles share
// the bitrate ceiling and frame cadence so fallback output is visually
// equivalent to the hardware path.
type Profile struct {
	GPUPreset string `yaml:"gpu_preset"`
	CPUPreset string `yaml:"cpu_preset"`
	CRF       string `yaml:"crf"`
	BurnCRF   string `yaml:"burn_crf"`
	Bitrate   string `yaml:"bitrate"`
	MaxRate   string `yaml:"maxrate"`
	BufSize   string `yaml:"bufsize"`
	FrameRate string `yaml:"frame_rate"`
	GOP       string `yaml:"gop"`
}

// DefaultProfile returns the stock 30 fps / 4 Mbps short-form profile.
func DefaultProfile() Profile {
	return Profile{
		GPUPreset: "p4",
		CPUPreset: "medium",
		CRF:       "23",
		BurnCRF:   "19",
		Bitrate:   "4M",
		MaxRate:   "5M",
		BufSize:   "8M",
		FrameRate: "30",
		GOP:       "60",
	}
}

// LoadProfile reads a YAML profile file, applying its fields over the
// defaults so a partial file is valid.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("failed to read encoder profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("failed to parse encoder profile: %w", err)
	}
	return profile, nil
}

// FindProfileFile searches standard locations for an encoder profile.
// Returns empty string if none exists (non-fatal).
func FindProfileFile(dataDir string) string {
	locations := []string{
		"./videomaker.yaml",
		"./videomaker.yml",
		filepath.Join(dataDir, "encoder.yaml"),
		filepath.Join(dataDir, "encoder.yml"),
	}
	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
