package blockchain

import "github.com/ethereum/go-ethereum/metrics"

var (
	blockExtendedMeter   = metrics.NewRegisteredMeter("chain/push/extended", nil)
	blockForkedMeter     = metrics.NewRegisteredMeter("chain/push/forked", nil)
	blockRebranchedMeter = metrics.NewRegisteredMeter("chain/push/rebranched", nil)
	blockIgnoredMeter    = metrics.NewRegisteredMeter("chain/push/ignored", nil)
	blockRejectedMeter   = metrics.NewRegisteredMeter("chain/push/rejected", nil)
	pushTimer            = metrics.NewRegisteredTimer("chain/push/time", nil)
	headGauge            = metrics.NewRegisteredGauge("chain/head/number", nil)
)
