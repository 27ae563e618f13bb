package order

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/walletbot/internal/domain"
	"github.com/vadiminshakov/walletbot/internal/metrics"
	"github.com/vadiminshakov/walletbot/internal/storage/orderjournal"
	"go.uber.org/zap"
)

type orderGateway interface {
	SubmitMarketSell(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
	SubmitLimitSell(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
}

type orderJournal interface {
	Prepare(userID int64, req domain.OrderRequest) (*orderjournal.Record, error)
	MarkDone(rec *orderjournal.Record, res domain.OrderResult) error
	MarkFailed(rec *orderjournal.Record, cause error) error
}

type orderMetrics interface {
	ObserveOrder(kind, outcome string)
}

// Submitter sends order requests to the exchange and records the outcome.
type Submitter struct {
	gateway orderGateway
	journal orderJournal
	metrics orderMetrics
	logger  *zap.Logger
}

// NewSubmitter creates a submitter. journal and m may be nil.
func NewSubmitter(gateway orderGateway, journal orderJournal, m orderMetrics, logger *zap.Logger) (*Submitter, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{gateway: gateway, journal: journal, metrics: m, logger: logger}, nil
}

// Submit places req on the exchange. A non-nil error always means the order
// was not confirmed by the exchange.
func (s *Submitter) Submit(ctx context.Context, userID int64, req domain.OrderRequest) (domain.OrderResult, error) {
	logger := s.logger.With(
		zap.Int64("user_id", userID),
		zap.String("symbol", req.Symbol),
		zap.String("kind", string(req.Kind)),
		zap.String("quantity", req.Quantity.String()),
		zap.String("client_order_id", req.ClientOrderID),
	)

	var rec *orderjournal.Record
	if s.journal != nil {
		var err error
		rec, err = s.journal.Prepare(userID, req)
		if err != nil {
			// no journal entry, no order
			s.observe(req.Kind, metrics.OutcomeFailure)
			return domain.OrderResult{}, errors.Wrap(err, "failed to journal order")
		}
	}

	var (
		res domain.OrderResult
		err error
	)
	switch req.Kind {
	case domain.OrderKindMarket:
		res, err = s.gateway.SubmitMarketSell(ctx, req)
	case domain.OrderKindLimit:
		res, err = s.gateway.SubmitLimitSell(ctx, req)
	default:
		err = errors.Errorf("unsupported order kind %q", req.Kind)
	}

	if err != nil {
		logger.Error("order submission failed", zap.Error(err))
		s.observe(req.Kind, metrics.OutcomeFailure)
		if s.journal != nil {
			if jerr := s.journal.MarkFailed(rec, err); jerr != nil {
				logger.Warn("failed to journal order failure", zap.Error(jerr))
			}
		}
		return domain.OrderResult{}, err
	}

	logger.Info("order submitted", zap.String("order_id", res.OrderID), zap.String("status", res.Status))
	s.observe(req.Kind, metrics.OutcomeSuccess)
	if s.journal != nil {
		if jerr := s.journal.MarkDone(rec, res); jerr != nil {
			logger.Warn("failed to journal order result", zap.Error(jerr))
		}
	}

	return res, nil
}

func (s *Submitter) observe(kind domain.OrderKind, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveOrder(string(kind), outcome)
}
