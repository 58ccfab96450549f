package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/neogan74/auditledger/internal/inventory"
	"github.com/neogan74/auditledger/internal/logger"
	"github.com/neogan74/auditledger/internal/middleware"
	"github.com/neogan74/auditledger/internal/store"
)

// AuditHandler exposes the audit lifecycle and collection endpoints.
type AuditHandler struct {
	svc *inventory.Service
}

func NewAuditHandler(svc *inventory.Service) *AuditHandler {
	return &AuditHandler{svc: svc}
}

func (h *AuditHandler) Create(c *fiber.Ctx) error {
	var req inventory.CreateAuditRequest
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest(c, "Invalid JSON body")
	}

	audit, err := h.svc.CreateAudit(c.UserContext(), req, actorOf(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(audit)
}

func (h *AuditHandler) List(c *fiber.Ctx) error {
	filter := store.AuditFilter{
		Type:      store.AuditType(c.Query("type")),
		Status:    store.Status(c.Query("status")),
		CreatedBy: c.Query("created_by"),
		Skip:      c.QueryInt("skip", 0),
		Limit:     c.QueryInt("limit", 100),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return middleware.BadRequest(c, "unknown audit type "+string(filter.Type))
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return middleware.BadRequest(c, "unknown audit status "+string(filter.Status))
	}
	if filter.Skip < 0 || filter.Limit < 0 || filter.Limit > 1000 {
		return middleware.BadRequest(c, "skip must be >= 0 and limit between 0 and 1000")
	}

	audits, err := h.svc.ListAudits(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	if audits == nil {
		audits = []*store.Audit{}
	}
	return c.JSON(fiber.Map{"audits": audits, "count": len(audits)})
}

func (h *AuditHandler) Get(c *fiber.Ctx) error {
	audit, err := h.svc.GetAudit(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(audit)
}

func (h *AuditHandler) Items(c *fiber.Ctx) error {
	items, err := h.svc.ListItems(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []*store.AuditItem{}
	}
	return c.JSON(fiber.Map{"items": items, "count": len(items)})
}

func (h *AuditHandler) CountList(c *fiber.Ctx) error {
	list, err := h.svc.CountList(c.UserContext(), c.Params("id"), inventory.CountListFilter{
		SectorID:   c.Query("sector_id"),
		LocationID: c.Query("location_id"),
		Priority:   inventory.CountPriority(c.Query("priority")),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

func (h *AuditHandler) Start(c *fiber.Ctx) error {
	audit, err := h.svc.StartAudit(c.UserContext(), c.Params("id"), actorOf(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(audit)
}

func (h *AuditHandler) Collect(c *fiber.Ctx) error {
	var body struct {
		Readings []inventory.Reading `json:"readings"`
	}
	if err := c.BodyParser(&body); err != nil {
		return middleware.BadRequest(c, "Invalid JSON body")
	}

	auditID := c.Params("id")
	result, err := h.svc.Collect(c.UserContext(), auditID, body.Readings, actorOf(c))
	if err != nil {
		return respondError(c, err)
	}

	if len(result.Failures) > 0 {
		middleware.GetLogger(c).Warn("Some readings were rejected",
			logger.AuditID(auditID),
			logger.Int("rejected", len(result.Failures)))
	}
	return c.JSON(result)
}

func (h *AuditHandler) Reconcile(c *fiber.Ctx) error {
	summary, err := h.svc.StartReconciliation(c.UserContext(), c.Params("id"), actorOf(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

func (h *AuditHandler) Report(c *fiber.Ctx) error {
	report, err := h.svc.ReconciliationReport(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

func (h *AuditHandler) Finalize(c *fiber.Ctx) error {
	var body struct {
		Notes string `json:"notes"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return middleware.BadRequest(c, "Invalid JSON body")
		}
	}

	audit, err := h.svc.FinalizeAudit(c.UserContext(), c.Params("id"), actorOf(c), body.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(audit)
}

func (h *AuditHandler) Cancel(c *fiber.Ctx) error {
	audit, err := h.svc.CancelAudit(c.UserContext(), c.Params("id"), actorOf(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(audit)
}
