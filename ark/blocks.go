package ark

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/AlexZinkM/exchange-json-rpc/internal/model"
)

// BlockInfo returns a block by id
func (s *Service) BlockInfo(ctx context.Context, id string) (json.RawMessage, error) {
	block, ok := data(s.relay.Get(ctx, "blocks/"+id, nil))
	if !ok {
		return nil, model.NotFound("Block %s could not be found.", id)
	}
	return raw(block), nil
}

// LatestBlock returns the highest block the peer knows
func (s *Service) LatestBlock(ctx context.Context) (json.RawMessage, error) {
	query := url.Values{
		"orderBy": {"height:desc"},
		"limit":   {"1"},
	}

	blocks, ok := data(s.relay.Get(ctx, "blocks", query))
	if !ok || !blocks.Get("0").Exists() {
		return nil, model.NotFound("Latest block could not be found.")
	}
	return raw(blocks.Get("0")), nil
}

// BlockTransactions returns a page of the transactions in a block, newest first
func (s *Service) BlockTransactions(ctx context.Context, id string, offset *int) (*model.TransactionList, error) {
	query := url.Values{"orderBy": {"timestamp:desc"}}
	if offset != nil {
		query.Set("offset", strconv.Itoa(*offset))
	}

	resp := s.relay.Get(ctx, "blocks/"+id+"/transactions", query)
	txs, ok := data(resp)
	if !ok {
		return nil, model.NotFound("Block %s could not be found.", id)
	}

	return &model.TransactionList{
		Count: resp.Get("meta.totalCount").Int(),
		Data:  raw(txs),
	}, nil
}
