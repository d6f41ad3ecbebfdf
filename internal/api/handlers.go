// internal/api/handlers.go
package api

import (
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/dex"
	"github.com/rovshanmuradov/solana-launchpad/internal/portfolio"
	"github.com/rovshanmuradov/solana-launchpad/internal/types"
)

type handler struct {
	deps   Deps
	logger *zap.Logger
}

type lookupRequest struct {
	Mint string `json:"mint" binding:"required"`
}

type createTokenRequest struct {
	Name     string `json:"name" binding:"required"`
	Symbol   string `json:"symbol" binding:"required"`
	URI      string `json:"uri"`
	Decimals *uint8 `json:"decimals" binding:"required"`
}

type metadataRequest struct {
	Name   string `json:"name" binding:"required"`
	Symbol string `json:"symbol" binding:"required"`
	URI    string `json:"uri"`
}

type amountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

type transferRequest struct {
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

type launchRequest struct {
	Mint        string `json:"mint" binding:"required"`
	Price       string `json:"price" binding:"required"`
	TotalSupply string `json:"total_supply" binding:"required"`
}

type createPoolRequest struct {
	Mint         string `json:"mint" binding:"required"`
	TokenAmount  string `json:"token_amount" binding:"required"`
	SOLAmount    string `json:"sol_amount" binding:"required"`
	// Пустая цена выводится из sol_amount / token_amount.
	InitialPrice string `json:"initial_price"`
}

type addLiquidityRequest struct {
	TokenAmount string `json:"token_amount" binding:"required"`
	SOLAmount   string `json:"sol_amount" binding:"required"`
}

type swapRequest struct {
	Mint      string                `json:"mint" binding:"required"`
	Direction string                `json:"direction" binding:"required"`
	Amount    string                `json:"amount" binding:"required"`
	Price     string                `json:"price"`
	Slippage  *types.SlippageConfig `json:"slippage"`
}

type createTokenResponse struct {
	Mint              string `json:"mint"`
	TokenAccount      string `json:"token_account"`
	InitialSupply     uint64 `json:"initial_supply"`
	Signature         string `json:"signature"`
	MintSignature     string `json:"mint_signature"`
	MetadataSignature string `json:"metadata_signature,omitempty"`
	MetadataError     string `json:"metadata_error,omitempty"`
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) listTokens(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.snapshot()})
}

// snapshot скрывает текст последней ошибки обновления.
func (h *handler) snapshot() portfolio.Snapshot {
	snap := h.deps.Dashboard.Snapshot()
	if snap.LastError != "" {
		snap.LastError = "last refresh failed"
	}
	if snap.Tokens == nil {
		snap.Tokens = []portfolio.TokenRecord{}
	}
	return snap
}

func (h *handler) refreshTokens(c *gin.Context) {
	if _, err := h.deps.Dashboard.Refresh(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.snapshot()})
}

func (h *handler) lookupToken(c *gin.Context) {
	var req lookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	mint, err := types.ParseAddress("mint", req.Mint)
	if err != nil {
		respondError(c, err)
		return
	}
	rec, added, err := h.deps.Dashboard.Lookup(c.Request.Context(), mint)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec, "added": added})
}

func (h *handler) createToken(c *gin.Context) {
	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.deps.Tokens.CreateToken(c.Request.Context(), types.TokenInfo{
		Name:     req.Name,
		Symbol:   req.Symbol,
		URI:      req.URI,
		Decimals: *req.Decimals,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := createTokenResponse{
		Mint:          res.Mint.String(),
		TokenAccount:  res.TokenAccount.String(),
		InitialSupply: res.InitialSupply,
		Signature:     res.Signature.String(),
		MintSignature: res.MintSignature.String(),
	}
	if res.MetadataErr != nil {
		h.logger.Warn("Token created without metadata",
			zap.String("mint", resp.Mint),
			zap.Error(res.MetadataErr))
		resp.MetadataError = "metadata attachment failed, retry via /tokens/" + resp.Mint + "/metadata"
	} else {
		resp.MetadataSignature = res.MetadataSignature.String()
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (h *handler) attachMetadata(c *gin.Context) {
	mint, ok := h.mintParam(c)
	if !ok {
		return
	}
	var req metadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sig, err := h.deps.Tokens.AttachMetadata(c.Request.Context(), mint, req.Name, req.Symbol, req.URI)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signature": sig.String()})
}

func (h *handler) mintTokens(c *gin.Context) {
	mint, ok := h.mintParam(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sig, err := h.deps.Tokens.MintTokens(c.Request.Context(), mint, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signature": sig.String()})
}

func (h *handler) transferTokens(c *gin.Context) {
	mint, ok := h.mintParam(c)
	if !ok {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	to, err := types.ParseAddress("to", req.To)
	if err != nil {
		respondError(c, err)
		return
	}
	sig, err := h.deps.Tokens.TransferTokens(c.Request.Context(), mint, to, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signature": sig.String()})
}

func (h *handler) ammInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mode":         h.deps.AMM.Mode(),
		"capabilities": h.deps.AMM.Capabilities(),
	})
}

func (h *handler) launch(c *gin.Context) {
	var req launchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	mint, err := types.ParseAddress("mint", req.Mint)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.deps.AMM.LaunchSale(c.Request.Context(), dex.LaunchRequest{
		Mint:        mint,
		Price:       req.Price,
		TotalSupply: req.TotalSupply,
	})
	h.respondResult(c, res, err)
}

func (h *handler) listPools(c *gin.Context) {
	pools, err := h.deps.AMM.ListUserPools(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if pools == nil {
		pools = []dex.PoolInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"data": pools})
}

// checkPool отвечает, торгуется ли mint: GET /pools/check/:mint
func (h *handler) checkPool(c *gin.Context) {
	mint, ok := h.mintParam(c)
	if !ok {
		return
	}
	has, err := h.deps.AMM.HasPool(c.Request.Context(), mint)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dex.PoolCheck{Mint: mint.String(), HasPool: has}})
}

func (h *handler) createPool(c *gin.Context) {
	var req createPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	mint, err := types.ParseAddress("mint", req.Mint)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.deps.AMM.CreatePool(c.Request.Context(), dex.CreatePoolRequest{
		Mint:         mint,
		TokenAmount:  req.TokenAmount,
		SOLAmount:    req.SOLAmount,
		InitialPrice: req.InitialPrice,
	})
	h.respondResult(c, res, err)
}

func (h *handler) addLiquidity(c *gin.Context) {
	var req addLiquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.deps.AMM.AddLiquidity(c.Request.Context(), dex.AddLiquidityRequest{
		PoolID:      c.Param("id"),
		TokenAmount: req.TokenAmount,
		SOLAmount:   req.SOLAmount,
	})
	h.respondResult(c, res, err)
}

// removeLiquidity берёт процент из query: DELETE /pools/:id/liquidity?percentage=50
func (h *handler) removeLiquidity(c *gin.Context) {
	res, err := h.deps.AMM.RemoveLiquidity(c.Request.Context(), dex.RemoveLiquidityRequest{
		PoolID:     c.Param("id"),
		Percentage: c.DefaultQuery("percentage", "100"),
	})
	h.respondResult(c, res, err)
}

func (h *handler) quote(c *gin.Context) {
	req, ok := h.bindSwap(c)
	if !ok {
		return
	}
	q, err := h.deps.AMM.Quote(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": q})
}

func (h *handler) swap(c *gin.Context) {
	req, ok := h.bindSwap(c)
	if !ok {
		return
	}
	res, err := h.deps.AMM.Swap(c.Request.Context(), req)
	h.respondResult(c, res, err)
}

func (h *handler) bindSwap(c *gin.Context) (dex.SwapRequest, bool) {
	var req swapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return dex.SwapRequest{}, false
	}
	mint, err := types.ParseAddress("mint", req.Mint)
	if err != nil {
		respondError(c, err)
		return dex.SwapRequest{}, false
	}
	slippage := types.SlippageConfig{Type: types.SlippagePercent, Value: types.DefaultSlippagePercent}
	if req.Slippage != nil {
		slippage = *req.Slippage
	}
	return dex.SwapRequest{
		Mint:      mint,
		Direction: dex.SwapDirection(req.Direction),
		Amount:    req.Amount,
		Price:     req.Price,
		Slippage:  slippage,
	}, true
}

func (h *handler) respondResult(c *gin.Context, res *dex.Result, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *handler) mintParam(c *gin.Context) (solana.PublicKey, bool) {
	mint, err := types.ParseAddress("mint", c.Param("mint"))
	if err != nil {
		respondError(c, err)
		return solana.PublicKey{}, false
	}
	return mint, true
}
