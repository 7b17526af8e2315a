package impl_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onchainwatch/permresolve/internal/permission"
	"github.com/onchainwatch/permresolve/internal/permission/impl"
)

func TestDelayResolverResolvesNumericField(t *testing.T) {
	t.Parallel()
	r := impl.NewDelayResolver(newSnapshot())

	secs, err := r.Resolve(permission.DelayRef{ContractAddress: addr("0x71"), FieldName: "minDelay"})
	require.NoError(t, err)
	require.Equal(t, uint64(86400), secs)
}

func TestDelayResolverAcceptsValuesBeyond64Bits(t *testing.T) {
	t.Parallel()
	entries := []permission.DiscoveredEntry{
		{
			Address: addr("0x71"),
			Type:    permission.AddressTypeTimelock,
			Fields: []permission.NamedField{
				{Name: "minDelay", Value: permission.FieldValue{Kind: permission.FieldValueNumber, Number: "99999999999999999999999999999"}},
			},
		},
	}
	r := impl.NewDelayResolver(permission.NewDiscoveredSnapshot(entries, "h"))

	_, err := r.Resolve(permission.DelayRef{ContractAddress: addr("0x71"), FieldName: "minDelay"})
	require.NoError(t, err)
}

func TestDelayResolverMissingContractErrors(t *testing.T) {
	t.Parallel()
	r := impl.NewDelayResolver(newSnapshot())

	_, err := r.Resolve(permission.DelayRef{ContractAddress: addr("0xNOPE"), FieldName: "minDelay"})
	require.Error(t, err)
	var target *permission.ErrDelayContractMissing
	require.ErrorAs(t, err, &target)
}

func TestDelayResolverMissingFieldErrors(t *testing.T) {
	t.Parallel()
	r := impl.NewDelayResolver(newSnapshot())

	_, err := r.Resolve(permission.DelayRef{ContractAddress: addr("0x71"), FieldName: "nope"})
	require.Error(t, err)
	var target *permission.ErrDelayFieldMissing
	require.ErrorAs(t, err, &target)
}

func TestDelayResolverNonNumericErrors(t *testing.T) {
	t.Parallel()
	r := impl.NewDelayResolver(newSnapshot())

	_, err := r.Resolve(permission.DelayRef{ContractAddress: addr("0x71"), FieldName: "admin"})
	require.Error(t, err)
	var target *permission.ErrDelayNotNumeric
	require.ErrorAs(t, err, &target)
}

func TestDelayResolverNegativeErrors(t *testing.T) {
	t.Parallel()
	entries := []permission.DiscoveredEntry{
		{
			Address: addr("0x71"),
			Type:    permission.AddressTypeTimelock,
			Fields: []permission.NamedField{
				{Name: "minDelay", Value: permission.FieldValue{Kind: permission.FieldValueNumber, Number: "-5"}},
			},
		},
	}
	r := impl.NewDelayResolver(permission.NewDiscoveredSnapshot(entries, "h"))

	_, err := r.Resolve(permission.DelayRef{ContractAddress: addr("0x71"), FieldName: "minDelay"})
	require.Error(t, err)
	var target *permission.ErrDelayNegative
	require.ErrorAs(t, err, &target)
}
