// Package qdrantopts provides options for the Qdrant gRPC client.
package qdrantopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Qdrant client configuration.
type Options struct {
	// Address is the Qdrant gRPC address (host:port).
	Address string `json:"address" mapstructure:"address"`

	// APIKey is sent as the api-key metadata header when set.
	APIKey string `json:"-" mapstructure:"api-key"`

	// Timeout for each operation.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Address: "localhost:6334",
		Timeout: 30 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Address, options.Join(prefixes...)+"qdrant.address", o.Address, "Qdrant gRPC address (host:port).")
	fs.StringVar(&o.APIKey, options.Join(prefixes...)+"qdrant.api-key", o.APIKey, "Qdrant API key.")
	fs.DurationVar(&o.Timeout, options.Join(prefixes...)+"qdrant.timeout", o.Timeout, "Qdrant operation timeout.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, fmt.Errorf("qdrant address is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("qdrant timeout must be positive"))
	}
	return errs
}
