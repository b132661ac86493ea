// Package providers wires configuration into the concrete infrastructure:
// RPC clients, ledger backends, off-chain clients, and the generation
// backend.
package providers

import (
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/yearone-io/story-adventure/client"
	"github.com/yearone-io/story-adventure/internal/config"
	"github.com/yearone-io/story-adventure/internal/infrastructure/generator"
	"github.com/yearone-io/story-adventure/internal/infrastructure/ledger"
	"github.com/yearone-io/story-adventure/internal/service"
	"github.com/yearone-io/story-adventure/internal/usecase"
)

// NewClient constructs the HTTP client for the off-chain collaborators.
func NewClient(conf config.Config, logger zerolog.Logger) *client.Client {
	return client.New(client.Endpoints{
		Generation: conf.Generation.EndpointURL,
		Credential: conf.Storage.CredentialURL,
		Upload:     conf.Storage.UploadURL,
	}, logger)
}

// NewBackends dials every configured network and builds its ledger backend.
func NewBackends(conf config.Config) (ledger.BackendSet, error) {
	key, err := crypto.HexToECDSA(conf.Signer.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse signer key")
	}

	backends := make(ledger.BackendSet, len(conf.Networks))
	for _, network := range conf.Networks {
		rpc, err := ethclient.Dial(network.RPCEndpoint)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to dial network %d", network.ChainID)
		}
		backends[network.ChainID] = ledger.NewEthBackend(network, rpc, key)
	}
	return backends, nil
}

// NewNetworkResolver builds the residency resolver with one probe per
// probe-eligible network, in declared order.
func NewNetworkResolver(conf config.Config, logger zerolog.Logger) (*service.NetworkResolver, error) {
	resolver := service.NewNetworkResolver(conf.DefaultChainID, logger)
	for _, network := range conf.ProbeOrder() {
		rpc, err := ethclient.Dial(network.RPCEndpoint)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to dial probe network %d", network.ChainID)
		}
		resolver.AddProbe(network.ChainID, rpc)
	}
	return resolver, nil
}

// NewGenerator picks the generation backend: the remote service when an
// endpoint is configured, the hosted-model backend otherwise.
func NewGenerator(conf config.Config, cl *client.Client, logger zerolog.Logger) usecase.Generator {
	if conf.Generation.EndpointURL != "" {
		return cl
	}
	return generator.NewOpenAI(conf.Generation.OpenAIKey, conf.Generation.TextModel, conf.Generation.ImageModel, logger)
}

// defaultProfileJitter applies when the config leaves the jitter unset.
const defaultProfileJitter = 250 * time.Millisecond

// NewStoryUsecase assembles the full read/generate/commit pipeline.
func NewStoryUsecase(conf config.Config, backends ledger.BackendSet, resolver *service.NetworkResolver,
	cl *client.Client, gen usecase.Generator, logger zerolog.Logger) *usecase.StoryUsecase {
	jitter := time.Duration(conf.Profiles.JitterMaxMs) * time.Millisecond
	if jitter == 0 {
		jitter = defaultProfileJitter
	}
	reader := ledger.NewReader(backends, resolver, cl, logger)
	writer := ledger.NewWriter(backends, resolver, cl, logger)
	source := ledger.NewProfileSource(backends, cl, logger)
	profiles := service.NewProfileService(source, jitter, logger)
	return usecase.NewStoryUsecase(reader, writer, gen, profiles, logger)
}
