package blockchain

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"

	"github.com/peregrinenet/go-peregrine/inter"
)

// MacroCertificate is the per-macro-block digest handed to succinct
// proof builders: enough to prove the elected validator set without the
// block itself.
type MacroCertificate struct {
	Number           idx.Block
	HeaderHash       common.Hash
	ValidatorSetRoot common.Hash
}

// CertificateConsumer receives a certificate for every macro block that
// lands on the main chain. Calls arrive in chain order after the push
// committed, still under the chain lock, so consumers must not call
// back into the chain.
type CertificateConsumer interface {
	ConsumeMacroCertificate(MacroCertificate)
}

// SubscribeCertificates registers a consumer for future macro blocks.
func (bc *Blockchain) SubscribeCertificates(c CertificateConsumer) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.certConsumers = append(bc.certConsumers, c)
}

func macroCertificate(b *inter.MacroBlock) MacroCertificate {
	return MacroCertificate{
		Number:           b.Number(),
		HeaderHash:       b.Hash(),
		ValidatorSetRoot: b.BodyRoot(),
	}
}

func (bc *Blockchain) emitCertificates() {
	for _, cert := range bc.pendingCerts {
		for _, c := range bc.certConsumers {
			c.ConsumeMacroCertificate(cert)
		}
	}
	bc.pendingCerts = nil
}
