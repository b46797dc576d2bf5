package in

import (
	"github.com/brianYuDesign/balance-engine/internal/services/command"
	"github.com/brianYuDesign/balance-engine/internal/services/query"
	"github.com/brianYuDesign/balance-engine/pkg"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	nethttp "github.com/brianYuDesign/balance-engine/pkg/net/http"
	"github.com/gofiber/fiber/v2"
)

// BalanceHandler is the request adapter over the write pipeline and the
// balance read side.
type BalanceHandler struct {
	Command *command.UseCase
	Query   *query.UseCase
}

// CreateMutation accepts one mutation request and returns the minted event id.
// Duplicates come back as 409 with the distinguished duplicate code so
// idempotent clients can treat them as prior acceptance.
func (h *BalanceHandler) CreateMutation(p any, c *fiber.Ctx) error {
	ctx := c.UserContext()
	logger := pkg.NewLoggerFromContext(ctx)

	input := p.(*mmodel.CreateMutationInput)

	request, err := h.Command.CreateMutation(ctx, input)
	if err != nil {
		logger.Errorf("Failed to create mutation: %v", err)

		return nethttp.WithError(c, err)
	}

	return nethttp.Created(c, fiber.Map{
		"eventId":       request.EventID,
		"transactionId": request.TransactionID,
	})
}

// GetBalance returns the balance of one (account, currency) pair.
func (h *BalanceHandler) GetBalance(c *fiber.Ctx) error {
	ctx := c.UserContext()

	accountID := c.Params("account_id")
	currency := c.Params("currency")

	balance, err := h.Query.GetBalance(ctx, accountID, currency)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	return nethttp.OK(c, balance)
}

// GetAllBalances returns every currency balance held by one account.
func (h *BalanceHandler) GetAllBalances(c *fiber.Ctx) error {
	ctx := c.UserContext()

	accountID := c.Params("account_id")

	balances, err := h.Query.GetAllBalances(ctx, accountID)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	return nethttp.OK(c, balances)
}
