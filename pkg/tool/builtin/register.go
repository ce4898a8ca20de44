// Package builtin declares the oracle-backed tool catalog.
package builtin

import (
	"alphaagent/pkg/tool"
)

// Tool names advertised to the model.
const (
	WebSearch    = "web_search"
	ReadWebpage  = "read_webpage"
	GetAllPrices = "get_all_prices"
)

// Node identifies which oracle serves a tool.
type Node int

const (
	NodeWeb Node = iota
	NodeCrypto
)

func (n Node) String() string {
	if n == NodeWeb {
		return "web"
	}
	return "crypto"
}

type WebSearchArgs struct {
	Query string `json:"query"`
}

type ReadWebpageArgs struct {
	URL string `json:"url"`
}

type PricesArgs struct{}

// NodeFor routes a tool name. Search and page reads go to the web node,
// everything else to the crypto node.
func NodeFor(name string) Node {
	switch name {
	case WebSearch, ReadWebpage:
		return NodeWeb
	default:
		return NodeCrypto
	}
}

// RegisterAll registers the catalog and routes unknown names to the crypto node.
func RegisterAll(r *tool.Registry, web, crypto tool.Caller) {
	r.Register(tool.NewRemote(WebSearch, "Search the live web for breaking crypto news.", web).
		WithArgs(WebSearchArgs{}))
	r.Register(tool.NewRemote(ReadWebpage, "Read a specific webpage to extract sentiment.", web).
		WithArgs(ReadWebpageArgs{}))
	r.Register(tool.NewRemote(GetAllPrices, "Returns live prices for BTC, ETH, SOL, and BNB in one call.", crypto).
		WithArgs(PricesArgs{}))

	r.SetFallback(func(name string) (tool.Tool, error) {
		caller := crypto
		if NodeFor(name) == NodeWeb {
			caller = web
		}
		return tool.NewRemote(name, "", caller), nil
	})
}
