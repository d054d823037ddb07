package crypto

import (
	"fmt"
	"sort"
)

// Network holds the version bytes a network uses for addresses and WIFs
type Network struct {
	Name       string
	PubKeyHash byte // address version byte, also the transaction network byte
	WIF        byte
}

var networks = map[string]Network{
	"mainnet": {Name: "mainnet", PubKeyHash: 0x17, WIF: 0xaa},
	"devnet":  {Name: "devnet", PubKeyHash: 0x1e, WIF: 0xaa},
	"testnet": {Name: "testnet", PubKeyHash: 0x17, WIF: 0xba},
	"unitnet": {Name: "unitnet", PubKeyHash: 0x17, WIF: 0xaa},
}

// NetworkByName returns the parameters of a supported network
func NetworkByName(name string) (Network, error) {
	n, ok := networks[name]
	if !ok {
		return Network{}, fmt.Errorf("unsupported network %q (supported: %v)", name, NetworkNames())
	}
	return n, nil
}

// NetworkNames lists the supported network names in sorted order
func NetworkNames() []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
