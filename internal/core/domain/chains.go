package domain

import (
	"strconv"
	"strings"
)

type ChainID = string

// NormalizeChainID returns the canonical decimal form of a numeric chain id
// given in decimal or 0x-prefixed hex. ok is false for anything else.
func NormalizeChainID(id string) (ChainID, bool) {
	id = strings.TrimSpace(id)
	var (
		v   uint64
		err error
	)
	if hex, found := strings.CutPrefix(strings.ToLower(id), "0x"); found {
		v, err = strconv.ParseUint(hex, 16, 64)
	} else {
		v, err = strconv.ParseUint(id, 10, 64)
	}
	if err != nil {
		return id, false
	}
	return strconv.FormatUint(v, 10), true
}

// Chain is one entry of the chain registry.
type Chain struct {
	ID     ChainID `yaml:"id"      json:"id"`
	Name   string  `yaml:"name"    json:"name"`
	RPCURL string  `yaml:"rpc_url" json:"-"`
}

const (
	ChainIDEthereum  ChainID = "1"
	ChainIDOptimism  ChainID = "10"
	ChainIDLukso     ChainID = "42"
	ChainIDGnosis    ChainID = "100"
	ChainIDPolygon   ChainID = "137"
	ChainIDFantom    ChainID = "250"
	ChainIDHedera    ChainID = "295"
	ChainIDZkSyncEra ChainID = "324"
	ChainIDMetis     ChainID = "1088"
	ChainIDSei       ChainID = "1329"
	ChainIDBase      ChainID = "8453"
	ChainIDSepolia   ChainID = "11155111"
	ChainIDArbitrum  ChainID = "42161"
	ChainIDCelo      ChainID = "42220"
	ChainIDAvalanche ChainID = "43114"
	ChainIDScroll    ChainID = "534352"
)

// ChainIDToName maps the default registry ids to display names.
var ChainIDToName = map[ChainID]string{
	ChainIDEthereum:  "Ethereum",
	ChainIDOptimism:  "Optimism",
	ChainIDLukso:     "Lukso",
	ChainIDGnosis:    "Gnosis",
	ChainIDPolygon:   "Polygon",
	ChainIDFantom:    "Fantom",
	ChainIDHedera:    "Hedera",
	ChainIDZkSyncEra: "zkSync Era",
	ChainIDMetis:     "Metis",
	ChainIDSei:       "Sei",
	ChainIDBase:      "Base",
	ChainIDSepolia:   "Sepolia",
	ChainIDArbitrum:  "Arbitrum",
	ChainIDCelo:      "Celo",
	ChainIDAvalanche: "Avalanche",
	ChainIDScroll:    "Scroll",
}

var defaultChainOrder = []ChainID{
	ChainIDEthereum, ChainIDOptimism, ChainIDLukso, ChainIDGnosis,
	ChainIDPolygon, ChainIDFantom, ChainIDHedera, ChainIDZkSyncEra,
	ChainIDMetis, ChainIDSei, ChainIDBase, ChainIDSepolia,
	ChainIDArbitrum, ChainIDCelo, ChainIDAvalanche, ChainIDScroll,
}

// DefaultChains returns the registry used when the config lists no chains.
func DefaultChains() []Chain {
	chains := make([]Chain, 0, len(defaultChainOrder))
	for _, id := range defaultChainOrder {
		chains = append(chains, Chain{ID: id, Name: ChainIDToName[id]})
	}
	return chains
}
