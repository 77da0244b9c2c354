package rosetta

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coinbase/rosetta-sdk-go/client"
	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/davecgh/go-spew/spew"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/cardano-community/rosetta-cardano-check/cardano"
)

const userAgent = "rosetta-cardano-check"

// Client is a thin mapping from engine calls to the Rosetta endpoints. Every
// request carries the configured network identifier and every failure comes
// back as a cardano.ProtocolError naming the step, except submit rejections
// which map to cardano.ErrSubmissionRejected.
type Client struct {
	api     *client.APIClient
	network *types.NetworkIdentifier
}

func NewClient(config *cardano.Config) *Client {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = cardano.DefaultRequestTimeout
	}

	clientConfig := client.NewConfiguration(
		config.Endpoint,
		userAgent,
		&http.Client{Timeout: timeout},
	)

	return &Client{
		api:     client.NewAPIClient(clientConfig),
		network: config.Network,
	}
}

// Network returns the identifier every request is issued against.
func (c *Client) Network() *types.NetworkIdentifier {
	return c.network
}

// wrapErr folds the twin error results of a generated client call into one
// error. The server's error body wins over the transport error because it
// carries the reason.
func wrapErr(state string, rErr *types.Error, err error) error {
	if rErr != nil {
		return cardano.NewProtocolError(state, errors.New(rosettaErrMessage(rErr)))
	}
	if err != nil {
		return cardano.NewProtocolError(state, err)
	}
	return nil
}

func rosettaErrMessage(rErr *types.Error) string {
	if len(rErr.Details) > 0 {
		return fmt.Sprintf("%s (code %d): %v", rErr.Message, rErr.Code, rErr.Details)
	}
	return fmt.Sprintf("%s (code %d)", rErr.Message, rErr.Code)
}

func dump(message string, v interface{}) {
	if glog.V(2) {
		glog.InfoDepth(1, message+":\n"+spew.Sdump(v))
	}
}

func (c *Client) AccountCoins(ctx context.Context, address string, includeMempool bool) ([]*types.Coin, *types.BlockIdentifier, error) {
	request := &types.AccountCoinsRequest{
		NetworkIdentifier: c.network,
		AccountIdentifier: &types.AccountIdentifier{Address: address},
		IncludeMempool:    includeMempool,
	}
	dump("AccountCoins request", request)

	response, rErr, err := c.api.AccountAPI.AccountCoins(ctx, request)
	if err := wrapErr("account_coins", rErr, err); err != nil {
		return nil, nil, err
	}

	return response.Coins, response.BlockIdentifier, nil
}

func (c *Client) AccountBalance(ctx context.Context, address string) (*types.AccountBalanceResponse, error) {
	request := &types.AccountBalanceRequest{
		NetworkIdentifier: c.network,
		AccountIdentifier: &types.AccountIdentifier{Address: address},
	}
	dump("AccountBalance request", request)

	response, rErr, err := c.api.AccountAPI.AccountBalance(ctx, request)
	if err := wrapErr("account_balance", rErr, err); err != nil {
		return nil, err
	}

	return response, nil
}

func (c *Client) Preprocess(ctx context.Context, operations []*types.Operation) (map[string]interface{}, error) {
	request := &types.ConstructionPreprocessRequest{
		NetworkIdentifier: c.network,
		Operations:        operations,
	}
	dump("ConstructionPreprocess request", request)

	response, rErr, err := c.api.ConstructionAPI.ConstructionPreprocess(ctx, request)
	if err := wrapErr("preprocess", rErr, err); err != nil {
		return nil, err
	}

	return response.Options, nil
}

func (c *Client) Metadata(ctx context.Context, options map[string]interface{}) (*types.ConstructionMetadataResponse, error) {
	request := &types.ConstructionMetadataRequest{
		NetworkIdentifier: c.network,
		Options:           options,
	}
	dump("ConstructionMetadata request", request)

	response, rErr, err := c.api.ConstructionAPI.ConstructionMetadata(ctx, request)
	if err := wrapErr("metadata", rErr, err); err != nil {
		return nil, err
	}
	dump("ConstructionMetadata response", response)

	return response, nil
}

func (c *Client) Payloads(ctx context.Context, operations []*types.Operation, metadata map[string]interface{}) (*types.ConstructionPayloadsResponse, error) {
	request := &types.ConstructionPayloadsRequest{
		NetworkIdentifier: c.network,
		Operations:        operations,
		Metadata:          metadata,
	}
	dump("ConstructionPayloads request", request)

	response, rErr, err := c.api.ConstructionAPI.ConstructionPayloads(ctx, request)
	if err := wrapErr("payloads", rErr, err); err != nil {
		return nil, err
	}
	dump("ConstructionPayloads response", response)

	return response, nil
}

func (c *Client) Parse(ctx context.Context, signed bool, transaction string) (*types.ConstructionParseResponse, error) {
	request := &types.ConstructionParseRequest{
		NetworkIdentifier: c.network,
		Signed:            signed,
		Transaction:       transaction,
	}
	dump("ConstructionParse request", request)

	response, rErr, err := c.api.ConstructionAPI.ConstructionParse(ctx, request)
	if err := wrapErr("parse", rErr, err); err != nil {
		return nil, err
	}

	return response, nil
}

func (c *Client) Combine(ctx context.Context, unsignedTransaction string, signatures []*types.Signature) (string, error) {
	request := &types.ConstructionCombineRequest{
		NetworkIdentifier:   c.network,
		UnsignedTransaction: unsignedTransaction,
		Signatures:          signatures,
	}
	dump("ConstructionCombine request", request)

	response, rErr, err := c.api.ConstructionAPI.ConstructionCombine(ctx, request)
	if err := wrapErr("combine", rErr, err); err != nil {
		return "", err
	}
	if response.SignedTransaction == "" {
		return "", cardano.NewProtocolError("combine", errors.New("response missing signed transaction"))
	}

	return response.SignedTransaction, nil
}

func (c *Client) Hash(ctx context.Context, signedTransaction string) (*types.TransactionIdentifier, error) {
	request := &types.ConstructionHashRequest{
		NetworkIdentifier: c.network,
		SignedTransaction: signedTransaction,
	}

	response, rErr, err := c.api.ConstructionAPI.ConstructionHash(ctx, request)
	if err := wrapErr("hash", rErr, err); err != nil {
		return nil, err
	}
	if response.TransactionIdentifier == nil {
		return nil, cardano.NewProtocolError("hash", errors.New("response missing transaction identifier"))
	}

	return response.TransactionIdentifier, nil
}

// Submit broadcasts the signed transaction. An error body from the endpoint
// is a definite rejection; a transport failure leaves the outcome unknown and
// is reported as a protocol error instead.
func (c *Client) Submit(ctx context.Context, signedTransaction string) (*types.TransactionIdentifier, error) {
	request := &types.ConstructionSubmitRequest{
		NetworkIdentifier: c.network,
		SignedTransaction: signedTransaction,
	}

	response, rErr, err := c.api.ConstructionAPI.ConstructionSubmit(ctx, request)
	if rErr != nil {
		return nil, errors.Wrap(cardano.ErrSubmissionRejected, rosettaErrMessage(rErr))
	}
	if err != nil {
		return nil, cardano.NewProtocolError("submit", err)
	}
	if response.TransactionIdentifier == nil {
		return nil, cardano.NewProtocolError("submit", errors.New("response missing transaction identifier"))
	}

	glog.Infof("Submitted transaction %s", response.TransactionIdentifier.Hash)

	return response.TransactionIdentifier, nil
}

func (c *Client) NetworkStatus(ctx context.Context) (*types.NetworkStatusResponse, error) {
	request := &types.NetworkRequest{
		NetworkIdentifier: c.network,
	}

	response, rErr, err := c.api.NetworkAPI.NetworkStatus(ctx, request)
	if err := wrapErr("network_status", rErr, err); err != nil {
		return nil, err
	}

	return response, nil
}

func (c *Client) Block(ctx context.Context, index int64) (*types.BlockResponse, error) {
	request := &types.BlockRequest{
		NetworkIdentifier: c.network,
		BlockIdentifier:   &types.PartialBlockIdentifier{Index: &index},
	}

	response, rErr, err := c.api.BlockAPI.Block(ctx, request)
	if err := wrapErr("block", rErr, err); err != nil {
		return nil, err
	}

	return response, nil
}

func (c *Client) BlockTransaction(ctx context.Context, blockID *types.BlockIdentifier, transactionID *types.TransactionIdentifier) (*types.Transaction, error) {
	request := &types.BlockTransactionRequest{
		NetworkIdentifier:     c.network,
		BlockIdentifier:       blockID,
		TransactionIdentifier: transactionID,
	}

	response, rErr, err := c.api.BlockAPI.BlockTransaction(ctx, request)
	if err := wrapErr("block_transaction", rErr, err); err != nil {
		return nil, err
	}

	return response.Transaction, nil
}
