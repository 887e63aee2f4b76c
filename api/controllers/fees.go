package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/influencehub-backend/api/responses"
	"github.com/angelmondragon/influencehub-backend/internal/escrow"
	"github.com/angelmondragon/influencehub-backend/internal/fees"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/influencehub-backend/pkg/errors"
	"github.com/angelmondragon/influencehub-backend/pkg/logger"
)

type feeQuote struct {
	Success bool `json:"success"`
	fees.BreakdownView
}

// FeeQuote previews the release split for an amount without touching any state.
func FeeQuote(calc *fees.Calculator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fee calculator unavailable"))
			return
		}

		query := r.URL.Query()
		rawAmount := strings.TrimSpace(query.Get("amount"))
		if rawAmount == "" {
			writeFeeError(w, "amount is required")
			return
		}
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			writeFeeError(w, "amount must be numeric")
			return
		}
		if amount.IsNegative() {
			writeFeeError(w, "amount must not be negative")
			return
		}

		currency := enums.CurrencyUSD
		if raw := strings.TrimSpace(query.Get("currency")); raw != "" {
			parsed, err := enums.ParseCurrency(raw)
			if err != nil {
				writeFeeError(w, "unsupported currency")
				return
			}
			currency = parsed
		}

		breakdown, err := calc.Calculate(amount, currency)
		if err != nil {
			writeFeeError(w, err.Error())
			return
		}
		responses.WriteResult(w, http.StatusOK, feeQuote{Success: true, BreakdownView: breakdown.View()})
	}
}

func writeFeeError(w http.ResponseWriter, message string) {
	responses.WriteResult(w, http.StatusBadRequest, escrow.Invalid(message))
}
