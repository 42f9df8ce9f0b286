package snapshot

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCFetcherParsesGetProgramAccountsResponse(t *testing.T) {
	program := programKey(1)
	owner := program
	pubkey := programKey(2)
	data := base64.StdEncoding.EncodeToString([]byte("account-bytes"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"result": {
				"context": {"slot": 77},
				"value": [{
					"pubkey": "` + pubkey.String() + `",
					"account": {"owner": "` + owner.String() + `", "data": ["` + data + `", "base64"]}
				}]
			}
		}`))
	}))
	defer server.Close()

	fetcher := NewRPCFetcher(server.URL, time.Second)
	accounts, slot, err := fetcher.FetchProgramAccounts(context.Background(), program)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), slot)
	require.Len(t, accounts, 1)
	assert.Equal(t, "account-bytes", string(accounts[0].Data))
	assert.Equal(t, pubkey, accounts[0].Pubkey)
}

func TestRPCFetcherReturnsErrorOnRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "boom"}}`))
	}))
	defer server.Close()

	fetcher := NewRPCFetcher(server.URL, time.Second)
	_, _, err := fetcher.FetchProgramAccounts(context.Background(), programKey(1))
	require.Error(t, err)
}
