// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

// Package buildconfig loads the typed YAML configuration consumed by the
// build and deployment engine.
//
// String values may reference a small closed set of template variables
// ({platform}, {target}, {subtarget}, {subtarget_family}, {build_dir});
// they are expanded once at load time so the rest of the code only ever
// sees plain strings.
package buildconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigError reports a missing or invalid configuration attribute. It is
// raised before any I/O is attempted.
type ConfigError struct {
	Attribute string
	Message   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration attribute (%s): %s", e.Attribute, e.Message)
}

// Config is the root of the build configuration file.
type Config struct {
	Miner  MinerConfig       `yaml:"miner"`
	Build  BuildConfig       `yaml:"build"`
	Deploy DeployConfig      `yaml:"deploy"`
	Local  map[string]string `yaml:"local"`
	UEnv   UEnvConfig        `yaml:"uenv"`
}

// MinerConfig identifies the device being built for and its runtime
// identity.
type MinerConfig struct {
	Platform string     `yaml:"platform"`
	MAC      string     `yaml:"mac"`
	HWID     string     `yaml:"hwid"`
	Firmware int        `yaml:"firmware"`
	Pool     PoolConfig `yaml:"pool"`
}

// PoolConfig is the default pool the deployed device connects to.
type PoolConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

// BuildConfig configures the external make-based build system.
type BuildConfig struct {
	Dir     string            `yaml:"dir"`
	Name    string            `yaml:"name"`
	Jobs    int               `yaml:"jobs"`
	Verbose bool              `yaml:"verbose"`
	EnvPath string            `yaml:"env_path"`
	Aliases map[string]string `yaml:"aliases"`
	Key     KeyConfig         `yaml:"key"`
}

// KeyConfig points at the usign keypair used for package signing.
type KeyConfig struct {
	Secret string `yaml:"secret"`
	Public string `yaml:"public"`
}

// SSHConfig addresses the device a deployment run connects to.
type SSHConfig struct {
	Hostname       string `yaml:"hostname"`
	HostnameSuffix string `yaml:"hostname_suffix"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
}

// DeployConfig carries the deployment flags. The boolean flags may also be
// switched on by target aliases at resolve time.
type DeployConfig struct {
	SSH     SSHConfig `yaml:"ssh"`
	Targets []string  `yaml:"targets"`

	WriteBitstream    bool   `yaml:"write_bitstream"`
	FactoryImage      bool   `yaml:"factory_image"`
	WriteMinerCfg     bool   `yaml:"write_miner_cfg"`
	SetMinerEnv       bool   `yaml:"set_miner_env"`
	ResetUbootEnv     bool   `yaml:"reset_uboot_env"`
	ResetOverlay      bool   `yaml:"reset_overlay"`
	ResetExtroot      bool   `yaml:"reset_extroot"`
	RemoveExtrootUUID bool   `yaml:"remove_extroot_uuid"`
	Reboot            bool   `yaml:"reboot"`
	FeedsBase         string `yaml:"feeds_base"`
}

// UEnvConfig selects what goes into a generated uEnv.txt.
type UEnvConfig struct {
	MAC          bool `yaml:"mac"`
	FactoryReset bool `yaml:"factory_reset"`
	SDImages     bool `yaml:"sd_images"`
	SDBoot       bool `yaml:"sd_boot"`
}

// Load reads, validates and template-expands a configuration file.
func Load(path string) (*Config, error) {
	return LoadWithPlatform(path, "")
}

// LoadWithPlatform loads a configuration file with the platform replaced
// before validation and template expansion.
func LoadWithPlatform(path string, platform string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration (%s):\n%w", path, err)
	}

	config := &Config{
		Build: BuildConfig{Jobs: 1},
		Miner: MinerConfig{Firmware: 1},
	}

	decoder := yaml.NewDecoder(strings.NewReader(string(content)))
	decoder.KnownFields(true)
	err = decoder.Decode(config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration (%s):\n%w", path, err)
	}

	if platform != "" {
		config.Miner.Platform = platform
	}

	err = config.IsValid()
	if err != nil {
		return nil, err
	}

	config.resolveTemplates()
	return config, nil
}

// IsValid checks the attributes the engine cannot run without.
func (c *Config) IsValid() error {
	if c.Miner.Platform == "" {
		return &ConfigError{Attribute: "miner.platform", Message: "must be set"}
	}
	if !strings.Contains(c.Miner.Platform, "-") {
		return &ConfigError{
			Attribute: "miner.platform",
			Message:   "must have the form <target>-<subtarget>",
		}
	}
	if c.Build.Dir == "" {
		return &ConfigError{Attribute: "build.dir", Message: "must be set"}
	}
	if c.Build.Jobs < 1 {
		return &ConfigError{Attribute: "build.jobs", Message: "must be at least 1"}
	}
	return nil
}

// Target returns the platform target, e.g. "zynq".
func (c *Config) Target() string {
	target, _, _ := strings.Cut(c.Miner.Platform, "-")
	return target
}

// Subtarget returns the platform subtarget, e.g. "dm1-g19".
func (c *Config) Subtarget() string {
	_, subtarget, _ := strings.Cut(c.Miner.Platform, "-")
	return subtarget
}

// SubtargetFamily returns the device family of the subtarget, e.g. "dm1".
func (c *Config) SubtargetFamily() string {
	family, _, _ := strings.Cut(c.Subtarget(), "-")
	return family
}

// BuildDir returns the absolute build directory for this configuration.
func (c *Config) BuildDir() string {
	dir, err := filepath.Abs(c.Build.Dir)
	if err != nil {
		dir = c.Build.Dir
	}
	return filepath.Join(dir, c.Build.Name)
}

// Hostname returns the deployment hostname, deriving the standard
// MAC-based device name when none is configured.
func (c *Config) Hostname() string {
	if c.Deploy.SSH.Hostname != "" {
		return c.Deploy.SSH.Hostname
	}
	parts := strings.Split(c.Miner.MAC, ":")
	if len(parts) == 6 {
		suffix := strings.ToLower(strings.Join(parts[3:], ""))
		return "miner-" + suffix + c.Deploy.SSH.HostnameSuffix
	}
	return "miner" + c.Deploy.SSH.HostnameSuffix
}

func (c *Config) resolveTemplates() {
	replacer := strings.NewReplacer(
		"{platform}", c.Miner.Platform,
		"{target}", c.Target(),
		"{subtarget}", c.Subtarget(),
		"{subtarget_family}", c.SubtargetFamily(),
		"{build_dir}", c.BuildDir(),
	)

	for name, dir := range c.Local {
		c.Local[name] = replacer.Replace(dir)
	}
	c.Deploy.FeedsBase = replacer.Replace(c.Deploy.FeedsBase)
	c.Deploy.SSH.Hostname = replacer.Replace(c.Deploy.SSH.Hostname)
	c.Build.Key.Secret = replacer.Replace(c.Build.Key.Secret)
	c.Build.Key.Public = replacer.Replace(c.Build.Key.Public)
}
