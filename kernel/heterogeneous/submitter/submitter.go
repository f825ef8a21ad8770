package submitter

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/lib/logs"
	"github.com/xuperchain/xdock/lib/metrics"
)

// Submitter hands observed and submitted txs back to the native chain.
// Duplicate detection belongs to the native chain: AlreadyExists is success.
type Submitter struct {
	chain     string
	converter def.Converter
	log       logs.Logger
}

func NewSubmitter(chainId int, converter def.Converter) (*Submitter, error) {
	if converter == nil {
		return nil, def.ErrParameter.More("converter is nil")
	}
	log, err := logs.NewLogger("", "submitter")
	if err != nil {
		return nil, err
	}
	return &Submitter{
		chain:     strconv.Itoa(chainId),
		converter: converter,
		log:       log,
	}, nil
}

func (s *Submitter) SubmitPendingDeposit(ctx context.Context, info *def.TxInfo) error {
	status, err := s.converter.PendingTxSubmit(ctx, info)
	if err != nil {
		metrics.SubmitCounter.WithLabelValues(s.chain, "failed").Inc()
		return errors.Wrapf(err, "pending deposit %s", info.TxHash)
	}
	s.done("deposit", status, "txHash", info.TxHash)
	return nil
}

func (s *Submitter) SubmitPendingWithdraw(ctx context.Context, nerveTxHash, txHash string) error {
	status, err := s.converter.PendingTxOfWithdraw(ctx, nerveTxHash, txHash)
	if err != nil {
		metrics.SubmitCounter.WithLabelValues(s.chain, "failed").Inc()
		return errors.Wrapf(err, "pending withdraw %s of %s", txHash, nerveTxHash)
	}
	s.done("withdraw", status, "nerveTxHash", nerveTxHash, "txHash", txHash)
	return nil
}

// SubmitConfirmed reports a final tx. An AlreadyExists error is absorbed.
func (s *Submitter) SubmitConfirmed(ctx context.Context, tx *def.ConfirmedTx) error {
	err := s.converter.TxConfirmed(ctx, tx)
	if err != nil && !errors.Is(err, def.ErrAlreadyExists) {
		metrics.SubmitCounter.WithLabelValues(s.chain, "failed").Inc()
		return errors.Wrapf(err, "confirm %s", tx.TxHash)
	}
	metrics.SubmitCounter.WithLabelValues(s.chain, "confirmed").Inc()
	s.log.Info("tx confirmed to native chain", "type", tx.TxType, "txHash", tx.TxHash,
		"nerveTxHash", tx.NerveTxHash, "height", tx.BlockHeight)
	return nil
}

func (s *Submitter) done(kind string, status def.SubmitStatus, ctx ...interface{}) {
	metrics.SubmitCounter.WithLabelValues(s.chain, status.String()).Inc()
	if status == def.SubmitAlreadyExists {
		s.log.Debug("pending "+kind+" already exists on native chain", ctx...)
		return
	}
	s.log.Info("pending "+kind+" submitted", ctx...)
}
