package split

import "errors"

var (
	ErrNonPositivePrice = errors.New("price must be positive")
	ErrInvalidRate      = errors.New("commission rate out of range")
)

// RateScale is the denominator for commission rates: rates are expressed in
// basis points, 10000 == 100%.
const RateScale = 10000

// DefaultPlatformBps is the platform's share when a photographer profile does
// not override it (20% platform / 80% photographer).
const DefaultPlatformBps = 2000

type Split struct {
	PlatformFee        int64
	PhotographerAmount int64
}

// Compute divides a gross price into the platform fee and the photographer's
// share. Rounding is applied once, half-up, to the fee; the photographer takes
// the remainder, so the two parts always sum exactly to price.
func Compute(price int64, platformBps int32) (Split, error) {
	if price <= 0 {
		return Split{}, ErrNonPositivePrice
	}
	if platformBps < 0 || platformBps > RateScale {
		return Split{}, ErrInvalidRate
	}
	fee := (price*int64(platformBps) + RateScale/2) / RateScale
	return Split{
		PlatformFee:        fee,
		PhotographerAmount: price - fee,
	}, nil
}
