package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/sarthakg043/ewallet-guildup/internal/config"
	"github.com/sarthakg043/ewallet-guildup/internal/infrastructure/lock"
	"github.com/sarthakg043/ewallet-guildup/internal/service"
	"github.com/sarthakg043/ewallet-guildup/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService *service.AccountService
	ledgerService  *service.LedgerService
	queryService   *service.QueryService
	logger         *slog.Logger
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, locker lock.Locker, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		accountService: service.NewAccountService(db, logger),
		ledgerService:  service.NewLedgerService(db, locker, cfg, logger),
		queryService:   service.NewQueryService(db),
		logger:         logger.With(slog.String("component", "handler")),
	}
}

// ============================================================
// 账户
// ============================================================

// OpenAccountRequest 开户请求
type OpenAccountRequest struct {
	Username string `json:"username" binding:"required"`
}

// OpenAccount 开户
// POST /api/v1/accounts
func (h *Handler) OpenAccount(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.accountService.Open(c.Request.Context(), req.Username)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_id": account.ID,
		"username":   account.Username,
		"balance":    account.Balance,
	})
}

// LookupAccount 按用户名查询收款账户，不返回余额
// GET /api/v1/accounts/:username
func (h *Handler) LookupAccount(c *gin.Context) {
	account, err := h.accountService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_id": account.ID,
		"username":   account.Username,
	})
}

// GetAccount 查询当前账户信息
// GET /api/v1/wallet/account
func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.accountService.GetByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, account)
}

// ============================================================
// 记账
// ============================================================

// AmountRequest 充值 / 提现请求
// amount 支持 JSON 数字或数字字符串
type AmountRequest struct {
	Amount      json.RawMessage `json:"amount"`
	Description string          `json:"description"`
}

// TransferRequest 转账请求
type TransferRequest struct {
	ReceiverUsername string          `json:"receiver_username" binding:"required"`
	Amount           json.RawMessage `json:"amount"`
	Description      string          `json:"description"`
}

// Deposit 充值
// POST /api/v1/wallet/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.ledgerService.Deposit(c.Request.Context(), currentUserID(c), amount, req.Description)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, result)
}

// Withdraw 提现
// POST /api/v1/wallet/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.ledgerService.Withdraw(c.Request.Context(), currentUserID(c), amount, req.Description)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, result)
}

// Transfer 转账
// POST /api/v1/wallet/transfer
//
// 扣款、入账、记流水在同一个数据库事务内完成，
// 失败时双方余额都不变，也不会留下流水
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.ledgerService.Transfer(c.Request.Context(), currentUserID(c), req.ReceiverUsername, amount, req.Description)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 查询
// ============================================================

// GetBalance 查询余额
// GET /api/v1/wallet/balance
func (h *Handler) GetBalance(c *gin.Context) {
	userID := currentUserID(c)
	balance, err := h.queryService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_id": userID,
		"balance":    balance,
	})
}

// ListTransactions 查询流水，最新的在前
// GET /api/v1/wallet/transactions?page=1&page_size=20
// 不带 page 参数时返回全部流水
func (h *Handler) ListTransactions(c *gin.Context) {
	userID := currentUserID(c)

	if c.Query("page") == "" {
		list, err := h.queryService.GetHistory(c.Request.Context(), userID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		response.Success(c, gin.H{"list": list})
		return
	}

	page, err := strconv.Atoi(c.Query("page"))
	if err != nil {
		response.ParamError(c, "page 参数错误")
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil {
		response.ParamError(c, "page_size 参数错误")
		return
	}

	result, err := h.queryService.GetHistoryPage(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.SuccessPage(c, result.List, result.Total, result.Page, result.PageSize)
}

// GetTransaction 查询单笔流水，只能查看与自己相关的流水
// GET /api/v1/wallet/transactions/:transaction_no
func (h *Handler) GetTransaction(c *gin.Context) {
	trans, err := h.queryService.GetTransaction(c.Request.Context(), c.Param("transaction_no"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !trans.Involves(currentUserID(c)) {
		h.writeError(c, service.ErrTransactionNotFound)
		return
	}
	response.Success(c, trans)
}

func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, service.ErrInvalidAmount
		}
		return service.ParseAmount(s)
	}
	return service.ParseAmount(string(raw))
}

var businessCodes = []struct {
	err  error
	code int
}{
	{service.ErrInvalidAmount, response.CodeInvalidAmount},
	{service.ErrAccountNotFound, response.CodeAccountNotFound},
	{service.ErrInsufficientFunds, response.CodeInsufficientFunds},
	{service.ErrTransientStore, response.CodeTransientFailure},
	{service.ErrTransactionNotFound, response.CodeTransactionNotFound},
	{service.ErrUsernameTaken, response.CodeUsernameTaken},
	{service.ErrInvalidUsername, response.CodeInvalidUsername},
}

// writeError 业务错误返回对应错误码，其余错误不向调用方暴露细节
func (h *Handler) writeError(c *gin.Context, err error) {
	for _, bc := range businessCodes {
		if errors.Is(err, bc.err) {
			response.Error(c, bc.code, bc.err.Error())
			return
		}
	}
	h.logger.Error("请求处理失败", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	response.Fail(c, response.CodeServerError)
}
