package logging

// Config is the `logging` extension of pulse.yml. PULSE_LOG_LEVEL and
// PULSE_LOG_CALLER override Level and ReportCaller.
type Config struct {
	Level        string         `yaml:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,description=Minimum level written"`
	ReportCaller bool           `yaml:"report_caller" json:"report_caller,omitempty" jsonschema:"description=Add file:line and function to each entry"`
	File         FileSinkConfig `yaml:"file" json:"file,omitempty"`
	Format       FormatConfig   `yaml:"format" json:"format,omitempty"`
}

// FileSinkConfig mirrors log entries into a file next to the console output.
type FileSinkConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled,omitempty"`
	// Empty Path writes <state dir>/logs/<component>-<date>.log.
	Path   string `yaml:"path" json:"path,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"enum=text,enum=json"`
}

// FormatConfig selects the console layout.
type FormatConfig struct {
	Preset           string `yaml:"preset" json:"preset,omitempty" jsonschema:"enum=default,enum=simple,enum=json"`
	DisableTimestamp bool   `yaml:"disable_timestamp" json:"disable_timestamp,omitempty"`
	DisableComponent bool   `yaml:"disable_component" json:"disable_component,omitempty"`
	// auto sends structured logs to stderr only when it is not a terminal.
	StructuredToStderr string `yaml:"structured_to_stderr" json:"structured_to_stderr,omitempty" jsonschema:"enum=auto,enum=always,enum=never"`
}
