// Package lcd queries Cosmos SDK REST (LCD) endpoints.
package lcd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"

	"ibctrace/internal/model"
)

// maxPages bounds pagination so a misbehaving endpoint cannot loop forever.
const maxPages = 100

// StatusError is a non-200 reply from an LCD endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lcd balances: status %d: %s", e.Code, e.Body)
}

// Temporary reports whether retrying the request can succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type Client struct {
	base   string
	client *http.Client
}

func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(base, "/"), client: httpClient}
}

type coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

type balancesResponse struct {
	Balances   []coin `json:"balances"`
	Pagination struct {
		NextKey string `json:"next_key"`
	} `json:"pagination"`
}

// Balances returns every denom held by address, following pagination.
func (c *Client) Balances(ctx context.Context, address string) (map[string]*big.Int, error) {
	out := make(map[string]*big.Int)
	key := ""
	for page := 0; page < maxPages; page++ {
		resp, err := c.balancesPage(ctx, address, key)
		if err != nil {
			return nil, err
		}
		for _, b := range resp.Balances {
			amt, ok := new(big.Int).SetString(b.Amount, 10)
			if !ok || amt.Sign() < 0 {
				return nil, fmt.Errorf("lcd balances: invalid amount %q for %s", b.Amount, b.Denom)
			}
			if cur, ok := out[b.Denom]; ok {
				amt.Add(amt, cur)
			}
			out[b.Denom] = amt
		}
		if resp.Pagination.NextKey == "" {
			return out, nil
		}
		key = resp.Pagination.NextKey
	}
	return nil, fmt.Errorf("lcd balances: more than %d pages", maxPages)
}

func (c *Client) balancesPage(ctx context.Context, address, key string) (*balancesResponse, error) {
	u := c.base + "/cosmos/bank/v1beta1/balances/" + url.PathEscape(address)
	if key != "" {
		u += "?pagination.key=" + url.QueryEscape(key)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	var out balancesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("lcd balances: decode: %w", err)
	}
	return &out, nil
}

// Source routes balance queries to the LCD client of each chain.
type Source struct {
	clients map[model.ChainID]*Client
}

func NewSource(clients map[model.ChainID]*Client) *Source {
	return &Source{clients: clients}
}

// Balances implements aggregate.BalanceSource.
func (s *Source) Balances(ctx context.Context, chain model.ChainID, address string) (map[string]*big.Int, error) {
	c, ok := s.clients[chain]
	if !ok {
		return nil, fmt.Errorf("no rest endpoint for chain %s", chain)
	}
	return c.Balances(ctx, address)
}
