// Package temporalclient provides Temporal client configuration loading
// using the SDK's envconfig contrib package.
//
// This enables configuration via environment variables (TEMPORAL_ADDRESS,
// TEMPORAL_NAMESPACE, TEMPORAL_TLS_CLIENT_CERT_PATH, etc.) and the Temporal
// config file, with the deep-research config applied on top.
package temporalclient

import (
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/contrib/envconfig"
	tlog "go.temporal.io/sdk/log"
)

// Overrides replace envconfig-provided values when non-empty.
type Overrides struct {
	HostPort  string
	Namespace string
	Logger    tlog.Logger
}

// LoadClientOptions loads Temporal client options using the envconfig system
// and applies the overrides.
//
// See: github.com/temporalio/samples-go/external-env-conf
func LoadClientOptions(overrides Overrides) (client.Options, error) {
	opts, err := envconfig.LoadClientOptions(envconfig.LoadClientOptionsRequest{})
	if err != nil {
		return client.Options{}, err
	}

	if overrides.HostPort != "" {
		opts.HostPort = overrides.HostPort
	}
	if overrides.Namespace != "" {
		opts.Namespace = overrides.Namespace
	}
	if overrides.Logger != nil {
		opts.Logger = overrides.Logger
	}

	return opts, nil
}

// Dial loads the client options and connects.
func Dial(overrides Overrides) (client.Client, client.Options, error) {
	opts, err := LoadClientOptions(overrides)
	if err != nil {
		return nil, client.Options{}, err
	}
	c, err := client.Dial(opts)
	if err != nil {
		return nil, opts, err
	}
	return c, opts, nil
}
