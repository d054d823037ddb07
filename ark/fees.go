package ark

import (
	"context"
	"net/url"
	"strconv"

	"github.com/AlexZinkM/exchange-json-rpc/internal/common"
	"github.com/AlexZinkM/exchange-json-rpc/internal/crypto"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const feeStatisticsDays = "30"

// averageFee returns the 30 day average fee of a transaction type.
// Averages are cached per type; false means the node did not provide one.
func (s *Service) averageFee(ctx context.Context, txType uint16) (uint64, bool) {
	name := crypto.TypeName(txType)
	if cached, ok := s.fees.Get(name); ok {
		return cached.(uint64), true
	}

	resp := s.relay.Get(ctx, "node/fees", url.Values{"days": {feeStatisticsDays}})
	avg := resp.Get("data.1." + name + ".avg")
	if !resp.OK() || !avg.Exists() {
		return 0, false
	}

	fee, err := strconv.ParseUint(avg.String(), 10, 64)
	if err != nil || fee == 0 {
		return 0, false
	}

	s.fees.Set(name, fee, cache.DefaultExpiration)
	return fee, true
}

// applyFee sets the requested fee, or the network average, or leaves the static default
func (s *Service) applyFee(ctx context.Context, tx *crypto.Transaction, requested common.Amount) {
	if requested > 0 {
		tx.Fee = uint64(requested)
		return
	}

	if fee, ok := s.averageFee(ctx, tx.Type); ok {
		tx.Fee = fee
		return
	}

	s.log.Warn("Failed to retrieve the average fee.",
		zap.String("type", crypto.TypeName(tx.Type)),
		zap.String("fallback", common.ArktoshiToARK(tx.Fee)))
}
