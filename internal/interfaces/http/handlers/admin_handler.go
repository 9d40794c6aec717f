package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bridge-settle.backend/internal/domain/entities"
	domainerrors "bridge-settle.backend/internal/domain/errors"
	domainrepos "bridge-settle.backend/internal/domain/repositories"
	"bridge-settle.backend/internal/infrastructure/jobs"
	"bridge-settle.backend/internal/interfaces/http/response"
	"bridge-settle.backend/pkg/utils"
)

// AdminHandler exposes the operator surface over the settlement engine:
// reading a bridge row's status and forcing an out-of-cycle sweep pass,
// same shape as the teacher's read/act handler pairing but scoped to
// operators rather than merchants.
type AdminHandler struct {
	bridgeTx     domainrepos.BridgeTransactionRepository
	sourceSweeps map[string]jobs.Runner // version label -> runner
	destSweeps   map[string]jobs.Runner
}

func NewAdminHandler(bridgeTx domainrepos.BridgeTransactionRepository, sourceSweeps, destSweeps map[string]jobs.Runner) *AdminHandler {
	return &AdminHandler{bridgeTx: bridgeTx, sourceSweeps: sourceSweeps, destSweeps: destSweeps}
}

// Healthz reports liveness only; it does not probe the database or chain
// RPCs, since those are covered separately by the reconciler and sweep
// job logs.
// GET /healthz
func (h *AdminHandler) Healthz(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

// GetBridgeTransaction returns one bridge row by id for operator lookup.
// GET /admin/bridge-transactions/:id
func (h *AdminHandler) GetBridgeTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid id"))
		return
	}

	bt, err := h.bridgeTx.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == domainerrors.ErrNotFound {
			response.Error(c, domainerrors.NotFound("bridge transaction not found"))
			return
		}
		response.Error(c, domainerrors.InternalError(err))
		return
	}
	response.Success(c, http.StatusOK, bt)
}

// ListBridgeTransactionsByStatus pages through bridge rows at a given
// status, newest first, for an operator to spot-check a backlog (e.g.
// everything stuck at StatusPaidCrash after an incident).
// GET /admin/bridge-transactions?status=0&page=1&limit=50
func (h *AdminHandler) ListBridgeTransactionsByStatus(c *gin.Context) {
	statusVal, err := strconv.Atoi(c.DefaultQuery("status", "0"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid status"))
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	params := utils.GetPaginationParams(page, limit)
	if params.Limit <= 0 {
		params.Limit = 50
	}

	rows, total, err := h.bridgeTx.ListByStatus(c.Request.Context(), entities.BridgeStatus(statusVal), params.CalculateOffset(), params.Limit)
	if err != nil {
		response.Error(c, domainerrors.InternalError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"rows": rows,
		"meta": utils.CalculateMeta(total, params.Page, params.Limit),
	})
}

// TriggerSourceSweep runs every configured source sweep once, outside its
// normal ticker cadence, and reports the row count each produced.
// POST /admin/sweep/source
func (h *AdminHandler) TriggerSourceSweep(c *gin.Context) {
	h.triggerAll(c, h.sourceSweeps)
}

// TriggerDestSweep runs every configured destination sweep once.
// POST /admin/sweep/dest
func (h *AdminHandler) TriggerDestSweep(c *gin.Context) {
	h.triggerAll(c, h.destSweeps)
}

func (h *AdminHandler) triggerAll(c *gin.Context, sweeps map[string]jobs.Runner) {
	results := make(gin.H, len(sweeps))
	for version, runner := range sweeps {
		n, err := runner.Run(c.Request.Context())
		if err != nil {
			results[version] = gin.H{"error": err.Error()}
			continue
		}
		results[version] = gin.H{"processed": n}
	}
	response.Success(c, http.StatusOK, results)
}
