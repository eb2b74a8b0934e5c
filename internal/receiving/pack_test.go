package receiving

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s got %s %v", want, got.String(), msgAndArgs)
}

func packLine() ReceiptLine {
	return ReceiptLine{
		ItemID:        1,
		BatchNumber:   "B-01",
		Packs:         2,
		StripsPerPack: 10,
		UnitsPerStrip: 10,
		PackCost:      dec("100"),
	}
}

func TestResolvePackScenario(t *testing.T) {
	res := ResolvePack(packLine(), FieldPackCost)

	require.True(t, res.IsConfigured)
	require.False(t, res.IsPartial)
	require.Equal(t, int64(200), res.TotalUnits)
	require.Equal(t, int64(20), res.TotalStrips)
	requireDecimal(t, "0.50", res.PerUnitCost)
	requireDecimal(t, "5", res.PerStripCost)
	require.True(t, res.PerUnitMRP.IsZero())
}

func TestResolvePackPartialConfiguration(t *testing.T) {
	cases := map[string]ReceiptLine{
		"packs only":      {Packs: 2},
		"missing units":   {Packs: 2, StripsPerPack: 10},
		"pack cost only":  {PackCost: dec("50")},
		"negative strips": {Packs: 1, StripsPerPack: -1, UnitsPerStrip: 10},
		"zero packs":      {StripsPerPack: 10, UnitsPerStrip: 10},
	}
	for name, line := range cases {
		res := ResolvePack(line, FieldPacks)
		require.True(t, res.IsPartial, name)
		require.False(t, res.IsConfigured, name)
		require.Zero(t, res.TotalUnits, name)
	}

	res := ResolvePack(ReceiptLine{Quantity: dec("4")}, FieldQuantity)
	require.False(t, res.IsPartial)
	require.False(t, res.IsConfigured)
}

func TestResolvePackRejectsOversizedConfiguration(t *testing.T) {
	cases := map[string]ReceiptLine{
		"wraps int64":     {Packs: 1 << 32, StripsPerPack: 1<<32 + 1, UnitsPerStrip: 1},
		"wraps to zero":   {Packs: 1 << 32, StripsPerPack: 1 << 32, UnitsPerStrip: 1},
		"above max units": {Packs: 1_000_000, StripsPerPack: 1_000_000, UnitsPerStrip: 2},
	}
	for name, line := range cases {
		line.Quantity = dec("5")
		res := ResolvePack(line, FieldPacks)
		require.True(t, res.IsOversized, name)
		require.False(t, res.IsConfigured, name)
		require.False(t, res.IsPartial, name)
		require.Zero(t, res.TotalUnits, name)
		require.Zero(t, res.Denominator, name)

		patched, _ := ApplyPatch(line, LinePatch{}, FieldPacks)
		requireDecimal(t, "5", patched.Quantity, name)
	}

	res := ResolvePack(ReceiptLine{Packs: 1_000_000, StripsPerPack: 1_000_000, UnitsPerStrip: 1}, FieldPacks)
	require.True(t, res.IsConfigured)
	require.Equal(t, MaxPackUnits, res.TotalUnits)
}

func TestResolvePackUnitSourceDerivesPackPricing(t *testing.T) {
	line := packLine()
	line.PackCost = decimal.Zero
	line.UnitCost = dec("0.37")
	line.UnitMRP = dec("0.55")

	res := ResolvePack(line, FieldUnitCost)
	requireDecimal(t, "74", res.PackCost)
	requireDecimal(t, "110", res.PackMRP)
	requireDecimal(t, "0.37", res.PerUnitCost)
}

func TestResolvePackIgnoresNonPositiveSources(t *testing.T) {
	line := packLine()
	line.PackCost = decimal.Zero
	line.UnitCost = dec("0.80")

	res := ResolvePack(line, FieldPacks)
	requireDecimal(t, "0.80", res.PerUnitCost, "unit cost kept when pack cost is zero")

	line = packLine()
	line.UnitCost = decimal.Zero
	res = ResolvePack(line, FieldUnitCost)
	requireDecimal(t, "100", res.PackCost, "pack cost kept when unit cost is zero")
}

func TestResolvePackUnrelatedSourceMirrorsLine(t *testing.T) {
	line := packLine()
	line.UnitCost = dec("9")
	for _, source := range []Field{FieldNone, FieldBatchNumber, FieldDiscountPercent, FieldQuantity} {
		res := ResolvePack(line, source)
		requireDecimal(t, "9", res.PerUnitCost, source)
		requireDecimal(t, "100", res.PackCost, source)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	line, _ := ApplyPatch(packLine(), LinePatch{PackMRP: ptr(dec("155.55"))}, FieldPackMRP)
	line, _ = ApplyPatch(line, LinePatch{}, FieldPackCost)

	once := Recompute(line)
	twice := Recompute(once)
	require.Equal(t, ResolvePack(once, FieldNone), ResolvePack(twice, FieldNone))
	requireDecimal(t, once.UnitCost.String(), twice.UnitCost)
	requireDecimal(t, once.UnitMRP.String(), twice.UnitMRP)
	requireDecimal(t, once.PackCost.String(), twice.PackCost)
	requireDecimal(t, once.Quantity.String(), twice.Quantity)

	// Re-driving from the pack side does not drift either.
	again, _ := ApplyPatch(once, LinePatch{}, FieldPackCost)
	requireDecimal(t, once.UnitCost.String(), again.UnitCost)
}

func TestPackRoundTripWithinTolerance(t *testing.T) {
	cases := []struct {
		packs, strips, units int64
		packCost             string
	}{
		{1, 10, 10, "100"},
		{2, 10, 10, "100"},
		{3, 7, 13, "99.99"},
		{5, 3, 17, "1234.57"},
		{1, 1, 1, "0.01"},
		{4, 15, 9, "333.33"},
	}
	tolerance := dec("0.01")
	for _, tc := range cases {
		line := ReceiptLine{Packs: tc.packs, StripsPerPack: tc.strips, UnitsPerStrip: tc.units, PackCost: dec(tc.packCost)}
		fromPack, res := ApplyPatch(line, LinePatch{}, FieldPackCost)
		denom := decimal.NewFromInt(res.Denominator)
		diff := fromPack.UnitCost.Mul(denom).Sub(dec(tc.packCost)).Abs()
		require.Truef(t, diff.LessThan(tolerance), "pack->unit %+v diff %s", tc, diff)

		fromUnit, res := ApplyPatch(fromPack, LinePatch{}, FieldUnitCost)
		back := fromUnit.PackCost.Div(decimal.NewFromInt(res.Denominator))
		diff = back.Sub(fromPack.UnitCost).Abs()
		require.Truef(t, diff.Mul(denom).LessThanOrEqual(tolerance), "unit->pack %+v diff %s", tc, diff)
	}
}

func TestApplyPatchLocksQuantityWhileConfigured(t *testing.T) {
	line, _ := ApplyPatch(packLine(), LinePatch{}, FieldPackCost)
	requireDecimal(t, "200", line.Quantity)

	line, _ = ApplyPatch(line, LinePatch{Quantity: ptr(dec("7"))}, FieldQuantity)
	requireDecimal(t, "200", line.Quantity, "manual quantity is overridden")

	line, _ = ApplyPatch(line, LinePatch{Packs: ptr(int64(3))}, FieldPacks)
	requireDecimal(t, "300", line.Quantity)

	// Clearing one dimension hands quantity back to the user.
	line, res := ApplyPatch(line, LinePatch{Packs: ptr(int64(0))}, FieldPacks)
	require.False(t, res.IsConfigured)
	require.True(t, res.IsPartial)
	line, _ = ApplyPatch(line, LinePatch{Quantity: ptr(dec("7"))}, FieldQuantity)
	requireDecimal(t, "7", line.Quantity)
}

func TestApplyPatchExpiry(t *testing.T) {
	line := packLine()
	expiry := mustDate("2027-06-30")
	line, _ = ApplyPatch(line, LinePatch{ExpiryDate: &expiry}, FieldExpiryDate)
	require.NotNil(t, line.ExpiryDate)
	require.True(t, line.ExpiryDate.Equal(expiry))

	line, _ = ApplyPatch(line, LinePatch{ClearExpiry: true}, FieldExpiryDate)
	require.Nil(t, line.ExpiryDate)
}
