package branding

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DefaultBlendWeight is applied when a table entry does not pin its own
// fine-tune blend weight.
const DefaultBlendWeight = 0.8

// Descriptor is the resolved branding input for a client: the name of the
// fine-tune asset to apply and how strongly to blend it.
type Descriptor struct {
	AssetName   string  `json:"asset_name"`
	BlendWeight float64 `json:"blend_weight"`
}

// Resolver maps client identifiers to branding descriptors. Lookups are
// case-insensitive and many-to-one: several aliases may share one
// descriptor. The table is built once at process start and is read-only
// afterwards.
type Resolver struct {
	table map[string]Descriptor
}

// NewResolver builds a resolver from an alias table. Keys are normalized to
// lower case; entries without a blend weight get DefaultBlendWeight.
func NewResolver(table map[string]Descriptor) *Resolver {
	normalized := make(map[string]Descriptor, len(table))
	for alias, desc := range table {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias == "" || desc.AssetName == "" {
			continue
		}
		if desc.BlendWeight <= 0 || desc.BlendWeight > 1 {
			desc.BlendWeight = DefaultBlendWeight
		}
		normalized[alias] = desc
	}
	return &Resolver{table: normalized}
}

// Resolve returns the descriptor for a client id. A miss (including an empty
// id) is a normal outcome, not an error: generation proceeds unbranded.
func (r *Resolver) Resolve(clientID string) (Descriptor, bool) {
	clientID = strings.ToLower(strings.TrimSpace(clientID))
	if clientID == "" {
		return Descriptor{}, false
	}
	desc, ok := r.table[clientID]
	return desc, ok
}

// Len reports the number of aliases in the table.
func (r *Resolver) Len() int { return len(r.table) }

type tableFile struct {
	Aliases map[string]Descriptor `json:"aliases"`
}

// LoadTable reads an alias table from a JSON file:
//
//	{"aliases": {"xdc": {"asset_name": "xdc_network", "blend_weight": 0.8}}}
func LoadTable(path string) (map[string]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("branding: read table: %w", err)
	}
	var f tableFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("branding: parse table: %w", err)
	}
	if len(f.Aliases) == 0 {
		return nil, fmt.Errorf("branding: table %s has no aliases", path)
	}
	return f.Aliases, nil
}

// DefaultTable is the built-in client alias table used when neither a table
// file nor a database mapping is configured. Short forms and formal network
// names resolve to the same asset.
func DefaultTable() map[string]Descriptor {
	asset := func(name string) Descriptor {
		return Descriptor{AssetName: name, BlendWeight: DefaultBlendWeight}
	}
	return map[string]Descriptor{
		"xdc":           asset("xdc_network"),
		"xdc_network":   asset("xdc_network"),
		"hedera":        asset("hedera"),
		"hbar":          asset("hbar"),
		"hashpack":      asset("hashpack"),
		"constellation": asset("constellation"),
		"dag":           asset("constellation"),
		"algorand":      asset("algorand"),
		"algo":          asset("algorand"),
		"tha":           asset("tha"),
		"genfinity":     asset("genfinity"),
		"gen":           asset("genfinity"),
		"bitcoin":       asset("bitcoin_logo"),
		"ethereum":      asset("ethereum_logo"),
		"binance":       asset("binance_logo"),
		"coinbase":      asset("coinbase_logo"),
	}
}
