package config

import (
	"fmt"
	"os"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server         Server     `yaml:"server"`
	Signer         Signer     `yaml:"signer"`
	Generation     Generation `yaml:"generation"`
	Storage        Storage    `yaml:"storage"`
	Profiles       Profiles   `yaml:"profiles"`
	Networks       []Network  `yaml:"networks"`
	DefaultChainID uint64     `yaml:"defaultChainId"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Signer struct {
	PrivateKey string `yaml:"privatekey"`
}

type Profiles struct {
	// JitterMaxMs spreads out profile fetches when a long history renders at
	// once. Zero means the built-in default.
	JitterMaxMs int `yaml:"jitterMaxMs"`
}

type Generation struct {
	// EndpointURL is the external generation service the adapter calls.
	// When it points at this server's own routes the built-in backend below
	// serves it.
	EndpointURL string `yaml:"endpointUrl"`
	OpenAIKey   string `yaml:"openaiKey"`
	TextModel   string `yaml:"textModel"`
	ImageModel  string `yaml:"imageModel"`
}

type Storage struct {
	CredentialURL string `yaml:"credentialUrl"`
	UploadURL     string `yaml:"uploadUrl"`
	// APIToken is the long-lived token the credential issuer trades for
	// short-lived, single-use upload JWTs.
	APIToken string `yaml:"apiToken"`
}

// Network is one supported ledger network. Residency probing walks networks
// with Probe set, in declared order; adding a network is a one-entry change.
type Network struct {
	ChainID        uint64 `yaml:"chainId"`
	Name           string `yaml:"name"`
	RPCEndpoint    string `yaml:"rpcEndpoint"`
	FactoryAddress string `yaml:"factoryAddress"`
	FollowerSystem string `yaml:"followerSystem"`
	IPFSGateway    string `yaml:"ipfsGateway"`
	Probe          bool   `yaml:"probe"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if len(config.Networks) == 0 {
		return Config{}, fmt.Errorf("config declares no networks")
	}
	if _, ok := config.Network(config.DefaultChainID); !ok {
		return Config{}, fmt.Errorf("default chain %d is not a configured network", config.DefaultChainID)
	}

	return config, nil
}

// Network returns the entry for chainID.
func (c Config) Network(chainID uint64) (Network, bool) {
	for _, n := range c.Networks {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return Network{}, false
}

// ProbeOrder lists the networks eligible for residency probing, in declared
// order.
func (c Config) ProbeOrder() []Network {
	var out []Network
	for _, n := range c.Networks {
		if n.Probe {
			out = append(out, n)
		}
	}
	return out
}
