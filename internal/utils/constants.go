package utils

// EmptyString represents a reusable empty string constant.
const EmptyString = ""

const (
	// ConfigFileName is the file name used inside GlobalConfigDirectoryName.
	ConfigFileName = "config.yaml"
	// LocalConfigFileName is the name of the per-project configuration file.
	LocalConfigFileName = ".reposcope.yaml"
	// GlobalConfigDirectoryName is the directory under the user's home holding global configuration.
	GlobalConfigDirectoryName = ".reposcope"
	// GitDirectoryName marks the source checkout when resolving the development version.
	GitDirectoryName = ".git"
	// LoggerInitializationFailedMessageFormat reports a logger construction failure.
	LoggerInitializationFailedMessageFormat = "initialize logger: %w"
	// ApplicationExecutionFailedMessage prefixes fatal application errors.
	ApplicationExecutionFailedMessage = "reposcope failed"
)
