package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chatagent-backend/internal/logging"
	"chatagent-backend/internal/models"
	"chatagent-backend/internal/monitoring"
)

const NoMatchesReply = "No encontré productos que coincidan."

type productSearcher interface {
	Search(ctx context.Context, baseURL, query string) ([]models.Product, error)
}

// SearchService turns a chat message into a catalog search and the search
// result into a single sentence.
type SearchService struct {
	catalog productSearcher
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

func NewSearchService(catalog productSearcher, metrics *monitoring.Metrics, logger *logging.Logger) *SearchService {
	return &SearchService{
		catalog: catalog,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *SearchService) Reply(ctx context.Context, baseURL, message string) (string, error) {
	start := time.Now()
	products, err := s.catalog.Search(ctx, baseURL, message)
	s.record(err, time.Since(start))
	if err != nil {
		return "", err
	}

	s.logger.Debug("Product search completed",
		zap.String("query", message),
		zap.Int("matches", len(products)),
	)

	return FormatReply(products), nil
}

func (s *SearchService) record(err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	outcome := "ok"
	var upstreamErr *UpstreamError
	switch {
	case err == nil:
	case errors.As(err, &upstreamErr):
		outcome = "upstream_error"
	default:
		outcome = "failed"
	}
	s.metrics.RecordUpstreamCall(outcome, elapsed)
}

// FormatReply reduces a product list to the chat reply sentence.
func FormatReply(products []models.Product) string {
	if len(products) == 0 {
		return NoMatchesReply
	}

	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
	}

	return fmt.Sprintf("Encontré %d producto(s): %s", len(products), strings.Join(names, ", "))
}
