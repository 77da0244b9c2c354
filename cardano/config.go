package cardano

import (
	"errors"
	"strings"
	"time"

	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

type Config struct {
	Network        *types.NetworkIdentifier
	Params         *Params
	Currency       *types.Currency
	Endpoint       string
	Mnemonic       string
	Destination    string
	PoolKeyHash    string
	Scenarios      []string
	FeeEstimate    int64
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
	RequestTimeout time.Duration
	DataDirectory  string
	StatsdAddress  string
	IncludeMempool bool
	SkipParseCheck bool
}

func LoadConfig() (*Config, error) {
	result := Config{}

	result.Currency = &Currency

	switch network := Network(strings.ToUpper(viper.GetString("network"))); network {
	case Mainnet:
		result.Params = &MainnetParams
	case Preprod:
		result.Params = &PreprodParams
	case Preview:
		result.Params = &PreviewParams
	default:
		return nil, errors.New("unknown network")
	}

	result.Network = &types.NetworkIdentifier{
		Blockchain: Blockchain,
		Network:    strings.ToLower(string(result.Params.Network)),
	}

	result.Endpoint = viper.GetString("endpoint")
	if result.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	result.Mnemonic = viper.GetString("mnemonic")
	if result.Mnemonic == "" {
		return nil, errors.New("mnemonic is required")
	}

	dataDirectory, err := homedir.Expand(viper.GetString("data-directory"))
	if err != nil {
		return nil, err
	}
	result.DataDirectory = dataDirectory

	result.Destination = viper.GetString("destination")
	result.PoolKeyHash = viper.GetString("pool-hash")
	result.Scenarios = viper.GetStringSlice("scenario")
	result.FeeEstimate = viper.GetInt64("fee-estimate")
	if result.FeeEstimate <= 0 {
		result.FeeEstimate = DefaultFeeEstimate
	}
	result.PollInterval = viper.GetDuration("poll-interval")
	if result.PollInterval <= 0 {
		result.PollInterval = DefaultPollInterval
	}
	result.ConfirmTimeout = viper.GetDuration("confirm-timeout")
	if result.ConfirmTimeout <= 0 {
		result.ConfirmTimeout = DefaultConfirmTimeout
	}
	result.RequestTimeout = viper.GetDuration("request-timeout")
	result.StatsdAddress = viper.GetString("statsd-addr")
	result.IncludeMempool = viper.GetBool("include-mempool")
	result.SkipParseCheck = viper.GetBool("skip-parse-check")

	return &result, nil
}
