package snapshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
	dlerrors "github.com/abdoElHodaky/dlob-go/pkg/errors"
)

// RPCFetcher implements AccountsFetcher against a Solana JSON-RPC HTTP
// endpoint's getProgramAccounts method, the bulk call the builder and
// Client use for wholesale book rebuilds.
type RPCFetcher struct {
	endpoint   string
	httpClient *http.Client
}

// NewRPCFetcher creates an RPCFetcher against endpoint (cfg.Solana.RPCEndpoint).
func NewRPCFetcher(endpoint string, timeout time.Duration) *RPCFetcher {
	return &RPCFetcher{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcAccountValue struct {
	Pubkey  string   `json:"pubkey"`
	Account struct {
		Owner string   `json:"owner"`
		Data  []string `json:"data"` // [base64, "base64"]
	} `json:"account"`
}

type rpcProgramAccountsResponse struct {
	Result struct {
		Context struct {
			Slot uint64 `json:"slot"`
		} `json:"context"`
		Value []rpcAccountValue `json:"value"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// FetchProgramAccounts calls getProgramAccounts with base64 encoding and
// withContext=true so the response carries the slot it was read at.
func (f *RPCFetcher) FetchProgramAccounts(ctx context.Context, programID dlobtypes.Pubkey) ([]RawAccount, uint64, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getProgramAccounts",
		Params: []interface{}{
			programID.String(),
			map[string]interface{}{
				"encoding":   "base64",
				"withContext": true,
			},
		},
	})
	if err != nil {
		return nil, 0, dlerrors.New(dlerrors.ErrSnapshotFailed, "failed to marshal getProgramAccounts request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, dlerrors.New(dlerrors.ErrSnapshotFailed, "failed to build getProgramAccounts request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, dlerrors.New(dlerrors.ErrSnapshotFailed, "getProgramAccounts request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, dlerrors.New(dlerrors.ErrSnapshotFailed, fmt.Sprintf("getProgramAccounts returned status %d", resp.StatusCode))
	}

	var parsed rpcProgramAccountsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, dlerrors.New(dlerrors.ErrSnapshotFailed, "failed to decode getProgramAccounts response").WithCause(err)
	}
	if parsed.Error != nil {
		return nil, 0, dlerrors.New(dlerrors.ErrSnapshotFailed, "getProgramAccounts RPC error: "+parsed.Error.Message)
	}

	accounts := make([]RawAccount, 0, len(parsed.Result.Value))
	for _, v := range parsed.Result.Value {
		if len(v.Account.Data) == 0 {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(v.Account.Data[0])
		if err != nil {
			continue
		}
		pubkey, err := dlobtypes.PubkeyFromBase58(v.Pubkey)
		if err != nil {
			continue
		}
		owner, err := dlobtypes.PubkeyFromBase58(v.Account.Owner)
		if err != nil {
			continue
		}
		accounts = append(accounts, RawAccount{Pubkey: pubkey, Owner: owner, Data: raw})
	}

	return accounts, parsed.Result.Context.Slot, nil
}
