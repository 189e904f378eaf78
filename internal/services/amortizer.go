// Card obligation amortization. Installments split a principal over a fixed
// number of billing cycles with the final cycle absorbing the integer
// division remainder; revolving obligations charge a flat amount every cycle
// until explicitly closed. All arithmetic is integer yen.
package services

import "kakeibo/internal/core"

// InstallmentAmounts splits principal over months cycles. Every cycle gets
// principal/months; the final cycle additionally absorbs the remainder, so
// the amounts always sum to principal exactly.
func InstallmentAmounts(principalYen int64, months int) []int64 {
	if months < 1 || principalYen <= 0 {
		return nil
	}
	per := principalYen / int64(months)
	out := make([]int64, months)
	for i := range out {
		out[i] = per
	}
	out[months-1] = principalYen - per*int64(months-1)
	return out
}

// CycleCharge returns the amount due from an obligation in the billing cycle
// whose withdraw month is (year, month), and whether the obligation is
// active in that cycle at all.
//
// For installments the cycle index runs 0..TotalMonths-1 from the start
// cycle; after that no further charges exist. Revolving obligations charge
// MonthlyPaymentYen in every cycle from the start until the closed flag is
// set; the engine does not track a decrementing revolving principal.
func CycleCharge(ob core.CardObligation, year, month int) (int64, bool) {
	idx := core.MonthIndex(year, month) - core.MonthIndex(ob.StartYear, ob.StartMonth)
	if idx < 0 {
		return 0, false
	}

	switch ob.Kind {
	case core.Installment:
		if idx >= ob.TotalMonths {
			return 0, false
		}
		return InstallmentAmounts(ob.PrincipalYen, ob.TotalMonths)[idx], true
	case core.Revolving:
		if ob.Closed {
			return 0, false
		}
		return ob.MonthlyPaymentYen, true
	default:
		return 0, false
	}
}
