// Package processor holds the customer record transformations.
package processor

import (
	"context"
	"strings"

	"github.com/tigerroll/csvload/example/customer/internal/domain/entity"
	"github.com/tigerroll/csvload/pkg/batch/component/item"
	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// CustomerProcessor normalizes a customer and validates its email.
// A customer without an email is filtered; an email without '@' fails the chunk.
type CustomerProcessor struct {
	chain *item.CompositeItemProcessor[entity.Customer]
}

var _ port.ItemProcessor[entity.Customer, entity.Customer] = (*CustomerProcessor)(nil)

// NewCustomerProcessor creates the processor.
func NewCustomerProcessor() *CustomerProcessor {
	return &CustomerProcessor{
		chain: item.NewCompositeItemProcessor[entity.Customer](
			item.ProcessorFunc[entity.Customer, entity.Customer](normalize),
			item.ProcessorFunc[entity.Customer, entity.Customer](validateEmail),
		),
	}
}

func (p *CustomerProcessor) Process(ctx context.Context, c entity.Customer) (entity.Customer, error) {
	return p.chain.Process(ctx, c)
}

func normalize(_ context.Context, c entity.Customer) (entity.Customer, error) {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Country = strings.ToUpper(strings.TrimSpace(c.Country))
	return c, nil
}

func validateEmail(_ context.Context, c entity.Customer) (entity.Customer, error) {
	if c.Email == "" {
		logger.Debugf("Customer %d has no email. Skipping.", c.ID)
		return c, port.ErrSkipItem
	}
	if !strings.Contains(c.Email, "@") {
		return c, exception.NewTransformValidationError("email", "customer %d: %q is not an email address", c.ID, c.Email)
	}
	return c, nil
}
