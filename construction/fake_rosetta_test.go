package construction

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/coinbase/rosetta-sdk-go/types"

	"github.com/cardano-community/rosetta-cardano-check/cardano"
	"github.com/cardano-community/rosetta-cardano-check/rosetta"
)

// fakeRosetta implements just enough of the data and construction endpoints
// for the engine to run end to end against httptest. Handlers never call
// require: they run off the test goroutine, so state is captured under the
// mutex and asserted afterwards.
type fakeRosetta struct {
	mu sync.Mutex

	coins        []*types.Coin
	suggestedFee int64

	metadataError string
	submitError   string
	submitHash    string
	emptyPayloads bool
	dropParsedOp  bool

	unsigned string
	signed   string
	hash     string

	tipStart             int64
	tipStep              int64
	tipFrozen            bool
	confirmAt            int64
	useOtherTransactions bool
	statusFailures       int

	calls            []string
	statusCalls      int
	operations       []*types.Operation
	payloadsMetadata map[string]interface{}
	combinedCount    int
}

func newFakeRosetta() *fakeRosetta {
	return &fakeRosetta{
		suggestedFee: 170_000,
		unsigned:     "82a0f5f6",
		signed:       "83a100f5d90102",
		hash:         "0bdca6a9561644eb21e26f33045e05e1a466f91189d01e5f6a10722bed1d2b50",
		tipStart:     100,
	}
}

func blockHash(index int64) string {
	return "block-" + strconv.FormatInt(index, 10)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRosettaError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusInternalServerError, &types.Error{Code: 5000, Message: message})
}

func (f *fakeRosetta) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, r.URL.Path)
		f.mu.Unlock()

		switch r.URL.Path {
		case "/account/coins":
			f.handleCoins(w, r)
		case "/account/balance":
			f.handleBalance(w, r)
		case "/construction/preprocess":
			f.handlePreprocess(w, r)
		case "/construction/metadata":
			f.handleMetadata(w, r)
		case "/construction/payloads":
			f.handlePayloads(w, r)
		case "/construction/parse":
			f.handleParse(w, r)
		case "/construction/combine":
			f.handleCombine(w, r)
		case "/construction/hash":
			f.handleHash(w, r)
		case "/construction/submit":
			f.handleSubmit(w, r)
		case "/network/status":
			f.handleNetworkStatus(w, r)
		case "/block":
			f.handleBlock(w, r)
		case "/block/transaction":
			f.handleBlockTransaction(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (f *fakeRosetta) handleCoins(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	coins := f.coins
	tip := f.tipStart
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, &types.AccountCoinsResponse{
		BlockIdentifier: &types.BlockIdentifier{Index: tip, Hash: blockHash(tip)},
		Coins:           coins,
	})
}

func (f *fakeRosetta) handleBalance(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	tip := f.tipStart
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, &types.AccountBalanceResponse{
		BlockIdentifier: &types.BlockIdentifier{Index: tip, Hash: blockHash(tip)},
		Balances:        []*types.Amount{{Value: "0", Currency: &cardano.Currency}},
	})
}

func (f *fakeRosetta) handlePreprocess(w http.ResponseWriter, r *http.Request) {
	var req types.ConstructionPreprocessRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	writeJSON(w, http.StatusOK, &types.ConstructionPreprocessResponse{
		Options: map[string]interface{}{
			"relative_ttl":     float64(1000),
			"transaction_size": float64(300),
		},
	})
}

func (f *fakeRosetta) handleMetadata(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	metadataError := f.metadataError
	suggestedFee := f.suggestedFee
	f.mu.Unlock()

	if metadataError != "" {
		writeRosettaError(w, metadataError)
		return
	}

	writeJSON(w, http.StatusOK, &types.ConstructionMetadataResponse{
		Metadata: map[string]interface{}{"ttl": "12345"},
		SuggestedFee: []*types.Amount{
			{Value: strconv.FormatInt(suggestedFee, 10), Currency: &cardano.Currency},
		},
	})
}

func (f *fakeRosetta) handlePayloads(w http.ResponseWriter, r *http.Request) {
	var req types.ConstructionPayloadsRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.operations = req.Operations
	f.payloadsMetadata = req.Metadata
	emptyPayloads := f.emptyPayloads
	unsigned := f.unsigned
	f.mu.Unlock()

	response := &types.ConstructionPayloadsResponse{UnsignedTransaction: unsigned}
	if !emptyPayloads {
		response.Payloads = signingPayloads(req.Operations)
	}
	writeJSON(w, http.StatusOK, response)
}

// signingPayloads fabricates one payload per distinct operation account, the
// way a construction endpoint asks for a witness per spending key.
func signingPayloads(operations []*types.Operation) []*types.SigningPayload {
	seen := map[string]bool{}
	payloads := []*types.SigningPayload{}
	for _, operation := range operations {
		if operation.Type == cardano.OutputOpType || operation.Account == nil {
			continue
		}
		if seen[operation.Account.Address] {
			continue
		}
		seen[operation.Account.Address] = true
		payloads = append(payloads, &types.SigningPayload{
			AccountIdentifier: operation.Account,
			Bytes:             []byte("sign:" + operation.Account.Address),
			SignatureType:     types.Ed25519,
		})
	}
	return payloads
}

func (f *fakeRosetta) handleParse(w http.ResponseWriter, r *http.Request) {
	var req types.ConstructionParseRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	operations := f.operations
	if f.dropParsedOp && len(operations) > 0 {
		operations = operations[:len(operations)-1]
	}
	f.mu.Unlock()

	response := &types.ConstructionParseResponse{Operations: operations}
	if req.Signed {
		seen := map[string]bool{}
		for _, operation := range operations {
			if operation.Type != cardano.InputOpType || seen[operation.Account.Address] {
				continue
			}
			seen[operation.Account.Address] = true
			response.AccountIdentifierSigners = append(response.AccountIdentifierSigners, operation.Account)
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (f *fakeRosetta) handleCombine(w http.ResponseWriter, r *http.Request) {
	var req types.ConstructionCombineRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.combinedCount = len(req.Signatures)
	signed := f.signed
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, &types.ConstructionCombineResponse{SignedTransaction: signed})
}

func (f *fakeRosetta) handleHash(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	hash := f.hash
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, &types.TransactionIdentifierResponse{
		TransactionIdentifier: &types.TransactionIdentifier{Hash: hash},
	})
}

func (f *fakeRosetta) handleSubmit(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	submitError := f.submitError
	hash := f.hash
	if f.submitHash != "" {
		hash = f.submitHash
	}
	f.mu.Unlock()

	if submitError != "" {
		writeRosettaError(w, submitError)
		return
	}
	writeJSON(w, http.StatusOK, &types.TransactionIdentifierResponse{
		TransactionIdentifier: &types.TransactionIdentifier{Hash: hash},
	})
}

// handleNetworkStatus advances the tip by tipStep per call, so every poll
// sees a moving chain.
func (f *fakeRosetta) handleNetworkStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.statusCalls++
	failing := f.statusCalls <= f.statusFailures
	step := f.tipStep
	if step == 0 {
		step = 1
	}
	tip := f.tipStart + int64(f.statusCalls)*step
	if f.tipFrozen {
		tip = f.tipStart
	}
	f.mu.Unlock()

	if failing {
		writeRosettaError(w, "node still syncing")
		return
	}

	writeJSON(w, http.StatusOK, &types.NetworkStatusResponse{
		CurrentBlockIdentifier: &types.BlockIdentifier{Index: tip, Hash: blockHash(tip)},
		CurrentBlockTimestamp:  1_700_000_000_000,
		GenesisBlockIdentifier: &types.BlockIdentifier{Index: 0, Hash: blockHash(0)},
	})
}

func (f *fakeRosetta) handleBlock(w http.ResponseWriter, r *http.Request) {
	var req types.BlockRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	index := int64(0)
	if req.BlockIdentifier != nil && req.BlockIdentifier.Index != nil {
		index = *req.BlockIdentifier.Index
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	block := &types.Block{
		BlockIdentifier:       &types.BlockIdentifier{Index: index, Hash: blockHash(index)},
		ParentBlockIdentifier: &types.BlockIdentifier{Index: index - 1, Hash: blockHash(index - 1)},
		Timestamp:             1_700_000_000_000,
		Transactions:          []*types.Transaction{},
	}
	response := &types.BlockResponse{Block: block}

	if f.confirmAt != 0 && index == f.confirmAt {
		if f.useOtherTransactions {
			response.OtherTransactions = []*types.TransactionIdentifier{{Hash: f.hash}}
		} else {
			block.Transactions = []*types.Transaction{f.confirmedTransaction()}
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (f *fakeRosetta) handleBlockTransaction(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	transaction := f.confirmedTransaction()
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, &types.BlockTransactionResponse{Transaction: transaction})
}

// confirmedTransaction echoes the operations captured from the payloads call
// with a success status, the way a live endpoint renders a settled
// transaction. Callers must hold f.mu.
func (f *fakeRosetta) confirmedTransaction() *types.Transaction {
	operations := make([]*types.Operation, len(f.operations))
	for i, operation := range f.operations {
		opCopy := *operation
		status := cardano.SuccessStatus
		opCopy.Status = &status
		operations[i] = &opCopy
	}
	return &types.Transaction{
		TransactionIdentifier: &types.TransactionIdentifier{Hash: f.hash},
		Operations:            operations,
	}
}

func (f *fakeRosetta) callSequence() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeRosetta) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, call := range f.calls {
		if call == path {
			count++
		}
	}
	return count
}

func (f *fakeRosetta) combined() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.combinedCount
}

func (f *fakeRosetta) statusCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func (f *fakeRosetta) capturedOperations() []*types.Operation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Operation{}, f.operations...)
}

func (f *fakeRosetta) capturedPayloadsMetadata() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloadsMetadata
}

func (f *fakeRosetta) setCoins(amounts ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coins = make([]*types.Coin, len(amounts))
	for i, amount := range amounts {
		f.coins[i] = &types.Coin{
			CoinIdentifier: &types.CoinIdentifier{
				Identifier: testTxHash + ":" + strconv.Itoa(i),
			},
			Amount: &types.Amount{
				Value:    strconv.FormatInt(amount, 10),
				Currency: &cardano.Currency,
			},
		}
	}
}

// newHarness starts the fake endpoint and builds a client and config wired
// to it.
func newHarness(t *testing.T, fake *fakeRosetta) (*rosetta.Client, *cardano.Config) {
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	config := &cardano.Config{
		Network:        &types.NetworkIdentifier{Blockchain: cardano.Blockchain, Network: "preprod"},
		Params:         &cardano.PreprodParams,
		Currency:       &cardano.Currency,
		Endpoint:       server.URL,
		FeeEstimate:    200_000,
		PollInterval:   time.Millisecond,
		ConfirmTimeout: time.Second,
		RequestTimeout: 5 * time.Second,
	}

	return rosetta.NewClient(config), config
}
