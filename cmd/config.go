package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rounds"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage rounds configuration.

Every key can also be set through the environment: log.level is
ROUNDS_LOG_LEVEL, anthropic.model is ROUNDS_ANTHROPIC_MODEL, and so on.

Running bare 'rounds config' is the same as 'rounds config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configCheckRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// envKeyReplacer turns a dotted config key into its env var suffix.
var envKeyReplacer = strings.NewReplacer(".", "_")

// configKey describes one setting: its documentation in config.yaml, how
// 'config show' displays it, and how it is validated.
type configKey struct {
	Key      string
	Doc      string
	Int      bool
	Secret   bool // masked by 'config show', never written by 'config init'
	Computed bool // follows state_dir unless set; left out of 'config init'
	Check    func(string) error
}

var configKeys = []configKey{
	{Key: "state_dir", Doc: "State/data directory (default: ~/.config/rounds)", Computed: true},
	{Key: "db_path", Doc: "SQLite database path (default: <state_dir>/rounds.db)", Computed: true},
	{Key: "locale", Doc: `Language for status labels, e.g. "en" or "fr"`, Check: checkLocale},
	{Key: "port", Doc: "API server port for 'rounds serve'", Int: true, Check: checkPort},
	{Key: "log.level", Doc: "debug, info, warn or error", Check: oneOf("debug", "info", "warn", "error")},
	{Key: "log.format", Doc: "text or json", Check: oneOf("text", "json")},
	{Key: "anthropic.api_key", Doc: "Anthropic API key (falls back to $ANTHROPIC_API_KEY)", Secret: true},
	{Key: "anthropic.model", Doc: "Model that drafts author notices for 'rounds round notice'"},
}

func (k configKey) envVar() string {
	return "ROUNDS_" + strings.ToUpper(envKeyReplacer.Replace(k.Key))
}

// display returns the effective value as 'config show' prints it.
func (k configKey) display() string {
	v := viper.GetString(k.Key)
	if k.Secret && v != "" {
		return "********"
	}
	return v
}

func checkLocale(v string) error {
	c, err := getCatalog()
	if err != nil {
		return err
	}
	_, err = c.Lookup(v)
	return err
}

func checkPort(v string) error {
	if n, err := strconv.Atoi(v); err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port %q (want 1-65535)", v)
	}
	return nil
}

func oneOf(allowed ...string) func(string) error {
	return func(v string) error {
		for _, a := range allowed {
			if strings.EqualFold(v, a) {
				return nil
			}
		}
		return fmt.Errorf("invalid value %q (want %s)", v, strings.Join(allowed, ", "))
	}
}

// validateConfig checks the effective value of every key that has a checker.
func validateConfig() []error {
	var errs []error
	for _, k := range configKeys {
		if k.Check == nil {
			continue
		}
		if err := k.Check(viper.GetString(k.Key)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k.Key, err))
		}
	}
	return errs
}

const configHeader = `# rounds configuration
# See: rounds config show (for effective values and sources)
#
# state_dir, db_path and anthropic.api_key are not written here; add them
# by hand or set ROUNDS_STATE_DIR, ROUNDS_DB_PATH, ROUNDS_ANTHROPIC_API_KEY.

`

// renderConfig builds config.yaml from the current values, one commented
// entry per key.
func renderConfig() ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range configKeys {
		if k.Secret || k.Computed {
			continue
		}
		parts := strings.Split(k.Key, ".")
		parent := root
		for _, p := range parts[:len(parts)-1] {
			parent = childMapping(parent, p)
		}
		name := &yaml.Node{Kind: yaml.ScalarNode, Value: parts[len(parts)-1], HeadComment: k.Doc}
		parent.Content = append(parent.Content, name, k.valueNode())
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func (k configKey) valueNode() *yaml.Node {
	if k.Int {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(viper.GetInt(k.Key))}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: viper.GetString(k.Key), Style: yaml.DoubleQuotedStyle}
}

// childMapping returns the mapping stored under name in m, adding it if missing.
func childMapping(m *yaml.Node, name string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == name {
			return m.Content[i+1]
		}
	}
	child := &yaml.Node{Kind: yaml.MappingNode}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name}, child)
	return child
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	data, err := renderConfig()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, string(data))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, string(data))
	return nil
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	fileValues := readConfigFileValues(cfgPath)
	for _, k := range configKeys {
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, k.display(), detectSource(k, fileValues))
	}

	for _, err := range validateConfig() {
		ui.Warning("%v", err)
	}
	return nil
}

func configCheckRun() error {
	errs := validateConfig()
	for _, err := range errs {
		ui.Error("%v", err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration has %d invalid value(s)", len(errs))
	}
	ui.Success("Configuration is valid")
	return nil
}

// readConfigFileValues returns the dotted keys present in the YAML file at path.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource reports whether a key's value comes from the environment,
// the config file or the built-in default.
func detectSource(k configKey, fileValues map[string]bool) string {
	if env := k.envVar(); os.Getenv(env) != "" {
		return fmt.Sprintf("(env: %s)", env)
	}
	if fileValues[k.Key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'rounds config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	if err := editCmd.Run(); err != nil {
		return err
	}

	// Re-read so mistakes show up now rather than on the next command.
	viper.SetConfigFile(cfgPath)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("config file no longer parses: %w", err)
	}
	for _, err := range validateConfig() {
		ui.Warning("%v", err)
	}
	return nil
}
