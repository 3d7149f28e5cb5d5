package bybit

import (
	"errors"
	"fmt"
)

// Recognized retCode values. Kept as a closed set: only the codes the
// bot branches on are named, everything else is terminal.
const (
	// CodeInsufficientBalance rejects an order whose quantity does not
	// fit the available margin. The market executor retries once, one
	// quantity step lower, on exactly this code.
	CodeInsufficientBalance = 110007

	// CodeLeverageNotModified means the leverage already has the
	// requested value. Treated as success.
	CodeLeverageNotModified = 110043
)

// APIError is a Bybit business rejection (retCode != 0 with a valid
// HTTP response).
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit retCode=%d: %s", e.Code, e.Msg)
}

// IsRetCode reports whether err is an APIError carrying code.
func IsRetCode(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// ErrSymbolNotFound marks a ticker or instrument lookup for a pair the
// exchange does not list.
var ErrSymbolNotFound = errors.New("bybit: symbol not found")

var errEmptyWallet = errors.New("bybit: empty wallet balance payload")
