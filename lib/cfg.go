package lib

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ParseDims parses "WxH".
func ParseDims(dims string) ([2]int, error) {
	parts := strings.Split(dims, "x")
	if len(parts) != 2 {
		return [2]int{}, errors.Wrapf(ErrConfig, "bad dims %v", dims)
	}
	var out [2]int
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 {
			return [2]int{}, errors.Wrapf(ErrConfig, "bad dims %v", dims)
		}
		out[i] = v
	}
	return out, nil
}

type NetworkConfig struct {
	Name        string     `yaml:"name"`
	Backend     string     `yaml:"backend"`
	Device      string     `yaml:"device"`
	ModelRoot   string     `yaml:"modelroot"`
	Model       string     `yaml:"model"`
	ModelConfig string     `yaml:"modelconfig"`
	Labels      string     `yaml:"labels"`
	Colors      string     `yaml:"colors"`
	InputSize   [2]int     `yaml:"inputsize"`
	Scale       float64    `yaml:"scale"`
	Mean        [3]float64 `yaml:"mean"`
	SwapRB      bool       `yaml:"swaprb"`
	// Command starts the subprocess backend, eg ["python", "segment.py"].
	Command []string `yaml:"command"`
}

// RoiConfig describes the crop taken from the mask: Left and Right are pixel
// margins, the top and bottom margins are the mask height divided by TopDiv
// and BottomDiv.
type RoiConfig struct {
	Left      int `yaml:"left"`
	Right     int `yaml:"right"`
	TopDiv    int `yaml:"topdiv"`
	BottomDiv int `yaml:"bottomdiv"`
}

type Config struct {
	Network       NetworkConfig `yaml:"network"`
	VisualizeBase struct {
		Visualize   string  `yaml:"visualize"`
		FilterMode  string  `yaml:"filtermode"`
		IgnoreClass string  `yaml:"ignoreclass"`
		Alpha       float64 `yaml:"alpha"`
		Stats       bool    `yaml:"stats"`
		Headless    bool    `yaml:"headless"`
	} `yaml:"visualizebase"`
	PathBase struct {
		Colors       []string `yaml:"colors"`
		Highlight    string   `yaml:"highlight"`
		Parity       bool     `yaml:"parity"`
		DrawCentroid bool     `yaml:"drawcentroid"`
		MarkerColor  string   `yaml:"markercolor"`
		MarkerRadius float64  `yaml:"markerradius"`
	} `yaml:"pathbase"`
	RoiBase   RoiConfig `yaml:"roibase"`
	VideoBase struct {
		Input       string  `yaml:"input"`
		Output      string  `yaml:"output"`
		InputWidth  int     `yaml:"inputwidth"`
		InputHeight int     `yaml:"inputheight"`
		Buffer      int     `yaml:"buffer"`
		FPS         float64 `yaml:"fps"`
		Codec       string  `yaml:"codec"`
	} `yaml:"videobase"`
	LogBase struct {
		Plot     string `yaml:"plot"`
		Progress bool   `yaml:"progress"`
		Profile  bool   `yaml:"profile"`
	} `yaml:"logbase"`
}

func DefaultConfig() Config {
	var cfg Config
	cfg.Network = NetworkConfig{
		Name:      "fcn-resnet18-voc",
		Backend:   "opencv",
		Device:    "cuda",
		ModelRoot: "./networks",
		InputSize: [2]int{320, 320},
		Scale:     1.0 / 255.0,
		SwapRB:    false,
	}
	cfg.VisualizeBase.Visualize = "overlay,mask"
	cfg.VisualizeBase.FilterMode = "linear"
	cfg.VisualizeBase.IgnoreClass = "void"
	cfg.VisualizeBase.Alpha = 175
	for _, c := range DefaultPathColors() {
		cfg.PathBase.Colors = append(cfg.PathBase.Colors, c.String())
	}
	cfg.PathBase.Highlight = White.String()
	cfg.PathBase.MarkerColor = RGB(255, 0, 0).String()
	cfg.PathBase.MarkerRadius = 15
	cfg.RoiBase = RoiConfig{Left: 1, Right: 1, TopDiv: 5, BottomDiv: 4}
	cfg.VideoBase.Buffer = 8
	cfg.VideoBase.FPS = 30
	cfg.VideoBase.Codec = "MJPG"
	cfg.LogBase.Profile = true
	return cfg
}

// GetConfig reads a YAML file over the defaults.
func GetConfig(configRoot string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(configRoot)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", configRoot)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(ErrConfig, "parse %s: %v", configRoot, err)
	}
	return cfg, nil
}

func SaveYaml(cfg Config, savePath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return errors.Wrapf(os.WriteFile(savePath, data, 0644), "write %s", savePath)
}

// ParseVisualize parses a comma separated subset of "overlay" and "mask".
func ParseVisualize(s string) (overlay bool, mask bool, err error) {
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "overlay":
			overlay = true
		case "mask":
			mask = true
		case "":
		default:
			return false, false, errors.Wrapf(ErrConfig, "unknown visualize option %q", part)
		}
	}
	if !overlay && !mask {
		return false, false, errors.Wrapf(ErrConfig, "visualize %q selects nothing", s)
	}
	return overlay, mask, nil
}

func (cfg Config) PathColorSet() (ColorSet, error) {
	var colors []Color
	for _, s := range cfg.PathBase.Colors {
		c, err := ParseColor(s)
		if err != nil {
			return ColorSet{}, err
		}
		colors = append(colors, c)
	}
	set, err := NewColorSet(colors...)
	if err != nil {
		return ColorSet{}, errors.Wrap(ErrConfig, err.Error())
	}
	return set, nil
}

func (cfg Config) HighlightColor() (Color, error) {
	return ParseColor(cfg.PathBase.Highlight)
}

// Validate checks option values that the pipeline cannot recover from.
func (cfg Config) Validate() error {
	if _, _, err := ParseVisualize(cfg.VisualizeBase.Visualize); err != nil {
		return err
	}
	if _, err := ParseFilterMode(cfg.VisualizeBase.FilterMode); err != nil {
		return err
	}
	if cfg.VisualizeBase.Alpha < 0 || cfg.VisualizeBase.Alpha > 255 {
		return errors.Wrapf(ErrConfig, "alpha %v outside [0, 255]", cfg.VisualizeBase.Alpha)
	}
	if _, err := cfg.PathColorSet(); err != nil {
		return err
	}
	if _, err := cfg.HighlightColor(); err != nil {
		return err
	}
	if _, err := ParseColor(cfg.PathBase.MarkerColor); err != nil {
		return err
	}
	if cfg.PathBase.MarkerRadius <= 0 {
		return errors.Wrapf(ErrConfig, "marker radius %v must be positive", cfg.PathBase.MarkerRadius)
	}
	r := cfg.RoiBase
	if r.Left < 0 || r.Right < 0 || r.TopDiv < 1 || r.BottomDiv < 1 {
		return errors.Wrapf(ErrConfig, "bad roi %+v", r)
	}
	return nil
}
