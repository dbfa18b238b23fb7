package dex

import (
	"fmt"
	"sort"
	"strings"
)

// GaugeStyle identifies how a gauge reports pending rewards.
type GaugeStyle string

const (
	// GaugeNone means positions are never staked.
	GaugeNone GaugeStyle = "none"
	// GaugeMasterChef exposes pendingCake(tokenId) and CAKE().
	GaugeMasterChef GaugeStyle = "masterchef"
	// GaugeEarned exposes earned(account, tokenId) and rewardToken().
	GaugeEarned GaugeStyle = "earned"
)

// Profile is the static behaviour of a DEX family. AutoPancake marks vaults
// exposing the autoRebalancePancake and autoHarvestAndCompoundPancake entry points.
type Profile struct {
	Name        string
	Gauge       GaugeStyle
	AutoPancake bool
}

var profiles = map[string]Profile{
	"pancake_v3": {Name: "pancake_v3", Gauge: GaugeMasterChef, AutoPancake: true},
	"uniswap_v3": {Name: "uniswap_v3", Gauge: GaugeNone},
	"aerodrome":  {Name: "aerodrome", Gauge: GaugeEarned},
}

// DefaultDEX is used when a query names no DEX.
const DefaultDEX = "pancake_v3"

// LookupProfile returns the profile for name, case-insensitively.
func LookupProfile(name string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultDEX
	}
	p, ok := profiles[key]
	if !ok {
		return Profile{}, fmt.Errorf("unknown dex %q (known: %s)", name, strings.Join(KnownDEXes(), ", "))
	}
	return p, nil
}

// KnownDEXes lists the registered profile names.
func KnownDEXes() []string {
	out := make([]string, 0, len(profiles))
	for name := range profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
