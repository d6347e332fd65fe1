package protocol

// API error codes. Domain rejections (insufficient stock, insufficient funds)
// are not errors; they surface as a failed TradeResult with a reason.
const (
	ErrBadRequest = "E_BAD_REQUEST"
	ErrSchema     = "E_SCHEMA"
	ErrNotFound   = "E_NOT_FOUND"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest: {},
	ErrSchema:     {},
	ErrNotFound:   {},
	ErrInternal:   {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
