package board

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Options selects and configures a board client.
type Options struct {
	APIKey      string
	LocalAPIKey string
	UseLocalAPI bool
	LocalHost   string
	LocalPort   int
	BoardType   string
}

// New builds the appropriate client for the options: the Local API when
// requested (or when only a local key is present), the Cloud API otherwise.
func New(opts Options, logger zerolog.Logger) (DisplayPort, error) {
	bt, err := TypeFromString(opts.BoardType)
	if err != nil {
		return nil, err
	}

	useLocal := opts.UseLocalAPI || (opts.LocalAPIKey != "" && opts.APIKey == "")
	if useLocal {
		if opts.LocalAPIKey == "" {
			return nil, fmt.Errorf("local API requested but no local API key configured")
		}
		host := opts.LocalHost
		if host == "" {
			host = "vestaboard.local"
		}
		port := opts.LocalPort
		if port == 0 {
			port = 7000
		}
		return NewLocalClient(opts.LocalAPIKey, host, port, bt, logger), nil
	}

	if opts.APIKey == "" {
		return nil, fmt.Errorf("no Vestaboard API key configured")
	}
	return NewCloudClient(opts.APIKey, bt, logger), nil
}
