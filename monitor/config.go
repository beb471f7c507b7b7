package monitor

// EventWriterConfig configures an EventWriter.
type EventWriterConfig struct {
	// LogDir must be an existing directory. Empty disables the writer.
	LogDir string `json:"log_dir"`
	// MaxQueue is the number of pending events that forces a flush.
	MaxQueue int `json:"max_queue"`
	// FlushSecs is the longest time events stay buffered.
	FlushSecs int `json:"flush_secs"`
	// SplitFiles starts a new event file after every epoch instead of
	// appending to one file.
	SplitFiles bool `json:"split_files"`
}

func DefaultEventWriterConfig() EventWriterConfig {
	return EventWriterConfig{
		MaxQueue:  10,
		FlushSecs: 120,
	}
}

// Merge applies non-zero fields from source over c.
func (c *EventWriterConfig) Merge(source *EventWriterConfig) {
	if source.LogDir != "" {
		c.LogDir = source.LogDir
	}
	if source.MaxQueue > 0 {
		c.MaxQueue = source.MaxQueue
	}
	if source.FlushSecs > 0 {
		c.FlushSecs = source.FlushSecs
	}
	if source.SplitFiles {
		c.SplitFiles = true
	}
}

// JSONWriterConfig configures a JSONWriter.
type JSONWriterConfig struct {
	// LogDir holds stats.json. Empty disables the writer.
	LogDir string `json:"log_dir"`
}

func DefaultJSONWriterConfig() JSONWriterConfig {
	return JSONWriterConfig{}
}

func (c *JSONWriterConfig) Merge(source *JSONWriterConfig) {
	if source.LogDir != "" {
		c.LogDir = source.LogDir
	}
}

// ScalarPrinterConfig configures a ScalarPrinter.
type ScalarPrinterConfig struct {
	// EnableStep prints buffered scalars after every step.
	EnableStep bool `json:"enable_step"`
	// EnableEpoch prints buffered scalars after every epoch.
	EnableEpoch bool `json:"enable_epoch"`
	// Whitelist holds regular expressions; only matching names print.
	// Nil matches every name.
	Whitelist []string `json:"whitelist"`
	// Blacklist holds regular expressions; matching names never print.
	Blacklist []string `json:"blacklist"`
}

// DefaultScalarPrinterConfig prints once per epoch, every name.
func DefaultScalarPrinterConfig() ScalarPrinterConfig {
	return ScalarPrinterConfig{
		EnableEpoch: true,
	}
}
