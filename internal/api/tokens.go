package api

import (
	"net/http"

	"github.com/sqlscribe/sqlscribe/internal/auth"
)

type tokensResponse struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

func handleTokens(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Tokens == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TOKENS_NOT_CONFIGURED", "token accounting is not configured", false, nil)
		return
	}
	input, output := deps.Tokens.Totals()
	writeJSON(w, http.StatusOK, tokensResponse{
		InputTokens:  input,
		OutputTokens: output,
		TotalTokens:  input + output,
	})
}

func handleTokensReset(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Tokens == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TOKENS_NOT_CONFIGURED", "token accounting is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	deps.Tokens.Reset()
	writeJSON(w, http.StatusOK, tokensResponse{})
}
