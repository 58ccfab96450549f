package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/neogan74/auditledger/internal/inventory"
	"github.com/neogan74/auditledger/internal/ledger"
	"github.com/neogan74/auditledger/internal/logger"
	"github.com/neogan74/auditledger/internal/middleware"
)

// LedgerHandler serves the per-asset ledger history and its verification.
type LedgerHandler struct {
	svc *inventory.Service
}

func NewLedgerHandler(svc *inventory.Service) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

func assetParam(c *fiber.Ctx) (string, error) {
	return url.PathUnescape(c.Params("asset"))
}

func (h *LedgerHandler) Entries(c *fiber.Ctx) error {
	assetID, err := assetParam(c)
	if err != nil {
		return middleware.BadRequest(c, "invalid asset id")
	}

	entries, err := h.svc.LedgerEntries(c.UserContext(), assetID)
	if err != nil {
		return respondError(c, err)
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	return c.JSON(fiber.Map{"asset_id": assetID, "entries": entries, "count": len(entries)})
}

// Verify replays the chain of one asset. A broken chain is reported as a
// conflict carrying the verification result.
func (h *LedgerHandler) Verify(c *fiber.Ctx) error {
	assetID, err := assetParam(c)
	if err != nil {
		return middleware.BadRequest(c, "invalid asset id")
	}

	result, err := h.svc.VerifyChain(c.UserContext(), assetID)
	if err != nil {
		return respondError(c, err)
	}
	if violation := result.Violation(); violation != nil {
		middleware.GetLogger(c).Warn("Ledger chain integrity violation",
			logger.AssetID(assetID),
			logger.String("entry_id", violation.EntryID),
			logger.String("reason", violation.Reason))
		return middleware.ErrorWithDetails(c, fiber.StatusConflict, violation.Error(), result)
	}
	return c.JSON(result)
}
