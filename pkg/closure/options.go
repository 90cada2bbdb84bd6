package closure

import "github.com/charmbracelet/log"

// DefaultMaxNodes bounds the size of a single closure. Real design-object
// graphs stay far below it; hitting it usually means a handler reports
// children that never converge.
const DefaultMaxNodes = 50_000

// Options configures closure resolution.
type Options struct {
	// MaxNodes is the largest closure Resolve will build before failing with
	// an INVALID_INPUT error. Zero or negative means DefaultMaxNodes.
	MaxNodes int

	// Logger receives skipped-dependency warnings and progress at debug level.
	// Nil means log.Default().
	Logger *log.Logger
}

// WithDefaults returns a copy of o with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	if o.MaxNodes <= 0 {
		o.MaxNodes = DefaultMaxNodes
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}
