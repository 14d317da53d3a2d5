// Package bitquery implements providers.Provider over BitQuery's GraphQL
// API, trying the v2 ("streaming") schema first and falling back to the
// v1 schema on error or empty result, the way the original data fetcher
// tries its v2 query before its v1 query.
package bitquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rawblock/forensic-engine/internal/forensics/config"
	"github.com/rawblock/forensic-engine/internal/forensics/errs"
	"github.com/rawblock/forensic-engine/internal/forensics/model"
)

type Provider struct {
	v2Endpoint string
	v1Endpoint string
	token      string
	hc         *http.Client
}

func New(v2Endpoint, v1Endpoint, accessToken string, hc *http.Client) *Provider {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Provider{v2Endpoint: v2Endpoint, v1Endpoint: v1Endpoint, token: accessToken, hc: hc}
}

func (p *Provider) Name() string { return "bitquery" }

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

func (p *Provider) post(ctx context.Context, endpoint string, query string, variables map[string]interface{}, out interface{}) error {
	if p.token == "" {
		return errs.Configf("bitquery.post", "BITQUERY_ACCESS_TOKEN is not configured")
	}
	body, _ := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("X-API-KEY", p.token)

	resp, err := p.hc.Do(req)
	if err != nil {
		return errs.Transient("bitquery.post", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errs.Permanent("bitquery.post", fmt.Errorf("unauthorized"))
	}
	if resp.StatusCode/100 != 2 {
		return errs.Transient("bitquery.post", fmt.Errorf("http %d", resp.StatusCode))
	}

	var gr graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return errs.Permanent("bitquery.post", err)
	}
	if len(gr.Errors) > 0 {
		return errs.Transient("bitquery.post", fmt.Errorf("graphql error: %s", gr.Errors[0].Message))
	}
	if out != nil {
		return json.Unmarshal(gr.Data, out)
	}
	return nil
}

const v2TransfersQuery = `
query ($network: evm_network, $token: String!, $limit: Int!) {
  EVM(network: $network) {
    Transfers(
      limit: {count: $limit}
      orderBy: {ascending: Block_Time}
      where: {Transfer: {Currency: {SmartContract: {is: $token}}}}
    ) {
      Transaction { Hash }
      Transfer { Sender Receiver Amount }
      Block { Time Number }
    }
  }
}`

type v2TransferNode struct {
	Transaction struct {
		Hash string `json:"Hash"`
	} `json:"Transaction"`
	Transfer struct {
		Sender   string `json:"Sender"`
		Receiver string `json:"Receiver"`
		Amount   string `json:"Amount"`
	} `json:"Transfer"`
	Block struct {
		Time   string `json:"Time"`
		Number string `json:"Number"`
	} `json:"Block"`
}

type v2TransfersData struct {
	EVM struct {
		Transfers []v2TransferNode `json:"Transfers"`
	} `json:"EVM"`
}

const v1TransfersQuery = `
query ($network: EthereumNetwork!, $token: String!, $limit: Int!) {
  ethereum(network: $network) {
    transfers(
      currency: {is: $token}
      options: {limit: $limit, asc: "block.timestamp.time"}
    ) {
      transaction { hash }
      sender { address }
      receiver { address }
      amount
      block { timestamp { unixtime } height }
    }
  }
}`

type v1TransferNode struct {
	Transaction struct {
		Hash string `json:"hash"`
	} `json:"transaction"`
	Sender struct {
		Address string `json:"address"`
	} `json:"sender"`
	Receiver struct {
		Address string `json:"address"`
	} `json:"receiver"`
	Amount float64 `json:"amount"`
	Block  struct {
		Timestamp struct {
			Unixtime int64 `json:"unixtime"`
		} `json:"timestamp"`
		Height int64 `json:"height"`
	} `json:"block"`
}

type v1TransfersData struct {
	Ethereum struct {
		Transfers []v1TransferNode `json:"transfers"`
	} `json:"ethereum"`
}

// FetchTransfers tries the v2 schema first, falling back to v1 on error
// or an empty result set.
func (p *Provider) FetchTransfers(ctx context.Context, chain, tokenAddress string, maxCount int) ([]model.Transfer, error) {
	v2Network, v1Network := config.BitqueryNetworks(chain)

	var v2data v2TransfersData
	err := p.post(ctx, p.v2Endpoint, v2TransfersQuery, map[string]interface{}{
		"network": v2Network,
		"token":   strings.ToLower(tokenAddress),
		"limit":   maxCount,
	}, &v2data)

	if err == nil && len(v2data.EVM.Transfers) > 0 {
		out := make([]model.Transfer, 0, len(v2data.EVM.Transfers))
		for _, n := range v2data.EVM.Transfers {
			var value float64
			fmt.Sscanf(n.Transfer.Amount, "%f", &value)
			ts := parseRFC3339(n.Block.Time)
			var block uint64
			fmt.Sscanf(n.Block.Number, "%d", &block)
			out = append(out, model.Transfer{
				Hash:      n.Transaction.Hash,
				From:      strings.ToLower(n.Transfer.Sender),
				To:        strings.ToLower(n.Transfer.Receiver),
				Value:     value,
				Timestamp: ts,
				Block:     block,
			})
		}
		return out, nil
	}

	var v1data v1TransfersData
	if err := p.post(ctx, p.v1Endpoint, v1TransfersQuery, map[string]interface{}{
		"network": v1Network,
		"token":   strings.ToLower(tokenAddress),
		"limit":   maxCount,
	}, &v1data); err != nil {
		return nil, err
	}

	out := make([]model.Transfer, 0, len(v1data.Ethereum.Transfers))
	for _, n := range v1data.Ethereum.Transfers {
		out = append(out, model.Transfer{
			Hash:      n.Transaction.Hash,
			From:      strings.ToLower(n.Sender.Address),
			To:        strings.ToLower(n.Receiver.Address),
			Value:     n.Amount,
			Timestamp: n.Block.Timestamp.Unixtime,
			Block:     uint64(n.Block.Height),
		})
	}
	return out, nil
}

const v2MetadataQuery = `
query ($network: evm_network, $token: String!) {
  EVM(network: $network) {
    TokenInfo: Transfers(limit: {count: 1}, where: {Transfer: {Currency: {SmartContract: {is: $token}}}}) {
      Transfer { Currency { Symbol Name Decimals SmartContract } }
    }
  }
}`

type v2MetadataData struct {
	EVM struct {
		TokenInfo []struct {
			Transfer struct {
				Currency struct {
					Symbol        string `json:"Symbol"`
					Name          string `json:"Name"`
					Decimals      int    `json:"Decimals"`
					SmartContract string `json:"SmartContract"`
				} `json:"Currency"`
			} `json:"Transfer"`
		} `json:"TokenInfo"`
	} `json:"EVM"`
}

// FetchMetadata queries the v2 schema only; there is no v1 metadata
// lookup. An error, an empty result, or a symbol of "UNKNOWN" is
// returned as an error, so the caller moves on to the next provider in
// priority order.
func (p *Provider) FetchMetadata(ctx context.Context, chain, tokenAddress string) (model.TokenMetadata, error) {
	v2Network, _ := config.BitqueryNetworks(chain)

	var v2data v2MetadataData
	err := p.post(ctx, p.v2Endpoint, v2MetadataQuery, map[string]interface{}{
		"network": v2Network,
		"token":   strings.ToLower(tokenAddress),
	}, &v2data)

	if err == nil && len(v2data.EVM.TokenInfo) > 0 {
		cur := v2data.EVM.TokenInfo[0].Transfer.Currency
		if cur.Symbol != "" && cur.Symbol != "UNKNOWN" {
			decimals := cur.Decimals
			if decimals == 0 {
				decimals = 18
			}
			return model.TokenMetadata{
				Address:  strings.ToLower(tokenAddress),
				Symbol:   cur.Symbol,
				Name:     cur.Name,
				Decimals: decimals,
			}, nil
		}
	}

	return model.TokenMetadata{}, errs.Transient("bitquery.FetchMetadata", fmt.Errorf("no usable metadata from v2 schema"))
}

func parseRFC3339(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}
