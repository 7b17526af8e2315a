package impl

import (
	"math/big"

	"github.com/onchainwatch/permresolve/internal/permission"
)

// DelayResolver reads a numeric delay field off a named contract in
// the Discovered Store (spec §4.3).
type DelayResolver struct {
	snapshot permission.DiscoveredSnapshot
}

// NewDelayResolver builds a DelayResolver bound to a snapshot.
func NewDelayResolver(snapshot permission.DiscoveredSnapshot) *DelayResolver {
	return &DelayResolver{snapshot: snapshot}
}

// Resolve returns the delay in seconds named by ref, or an error if the
// contract, field, or value's shape is unsuitable (spec §4.3). The
// Traversal Engine treats a failure as a zero-second step and records
// no warning for it.
func (r *DelayResolver) Resolve(ref permission.DelayRef) (uint64, error) {
	entry, ok := r.snapshot.Lookup(ref.ContractAddress)
	if !ok {
		return 0, &permission.ErrDelayContractMissing{Contract: ref.ContractAddress.String()}
	}

	fv, ok := entry.FieldByName(ref.FieldName)
	if !ok {
		return 0, &permission.ErrDelayFieldMissing{Contract: ref.ContractAddress.String(), Field: ref.FieldName}
	}

	if fv.Kind != permission.FieldValueNumber {
		return 0, &permission.ErrDelayNotNumeric{
			Contract: ref.ContractAddress.String(),
			Field:    ref.FieldName,
			Got:      fv.Kind,
		}
	}

	value, ok := new(big.Int).SetString(fv.Number, 10)
	if !ok {
		return 0, &permission.ErrDelayNotNumeric{
			Contract: ref.ContractAddress.String(),
			Field:    ref.FieldName,
			Got:      fv.Kind,
		}
	}
	if value.Sign() < 0 {
		return 0, &permission.ErrDelayNegative{
			Contract: ref.ContractAddress.String(),
			Field:    ref.FieldName,
			Value:    fv.Number,
		}
	}

	return value.Uint64(), nil
}
