package in

import (
	"github.com/brianYuDesign/balance-engine/pkg"
	"github.com/brianYuDesign/balance-engine/pkg/mlog"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	nethttp "github.com/brianYuDesign/balance-engine/pkg/net/http"
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/trace"
)

// NewRouter registers the inbound call surface on a fiber app. Every request
// gets the service logger and tracer injected into its context.
func NewRouter(logger mlog.Logger, tracer trace.Tracer, handler *BalanceHandler) *fiber.App {
	f := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	f.Use(func(c *fiber.Ctx) error {
		ctx := pkg.ContextWithLogger(c.UserContext(), logger)
		ctx = pkg.ContextWithTracer(ctx, tracer)

		c.SetUserContext(ctx)

		return c.Next()
	})

	f.Post("/v1/mutations", nethttp.WithBody(func() any { return new(mmodel.CreateMutationInput) }, handler.CreateMutation))

	f.Get("/v1/accounts/:account_id/balances/:currency", handler.GetBalance)
	f.Get("/v1/accounts/:account_id/balances", handler.GetAllBalances)

	f.Get("/health", nethttp.Ping)

	return f
}
