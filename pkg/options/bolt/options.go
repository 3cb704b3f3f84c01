// Package boltopts provides options for the embedded bbolt vector store.
package boltopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains bbolt file configuration.
type Options struct {
	// Path is the database file path.
	Path string `json:"path" mapstructure:"path"`

	// OpenTimeout is how long to wait for the file lock.
	OpenTimeout time.Duration `json:"open-timeout" mapstructure:"open-timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Path:        "_output/rag-data/vectors.db",
		OpenTimeout: 5 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Path, options.Join(prefixes...)+"bolt.path", o.Path, "bbolt database file path.")
	fs.DurationVar(&o.OpenTimeout, options.Join(prefixes...)+"bolt.open-timeout", o.OpenTimeout, "Timeout waiting for the bbolt file lock.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Path == "" {
		errs = append(errs, fmt.Errorf("bolt path is required"))
	}
	if o.OpenTimeout <= 0 {
		errs = append(errs, fmt.Errorf("bolt open-timeout must be positive"))
	}
	return errs
}
