package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/units"
)

func ptr[T any](v T) *T {
	return &v
}

var ts = time.Date(2024, 2, 1, 7, 30, 0, 0, time.FixedZone("WAT", 3600))

func validReading(key string) RawReading {
	return RawReading{
		Key:       ptr(key),
		Timestamp: ptr(ts),
		Value:     ptr(units.MustParse("120")),
		Period:    ptr("morning"),
	}
}

func validTopUp(key string) RawTopUp {
	return RawTopUp{
		Key:              ptr(key),
		Timestamp:        ptr(ts),
		UnitsAdded:       ptr(units.MustParse("50")),
		ResultingReading: ptr(units.MustParse("170")),
	}
}

func TestValidateReadings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *RawReading)
		reason error
	}{
		{name: "valid"},
		{name: "missing key", mutate: func(r *RawReading) { r.Key = nil }, reason: ErrMissingKey},
		{name: "blank key", mutate: func(r *RawReading) { r.Key = ptr("  ") }, reason: ErrMissingKey},
		{name: "missing timestamp", mutate: func(r *RawReading) { r.Timestamp = nil }, reason: ErrMissingTimestamp},
		{name: "missing value", mutate: func(r *RawReading) { r.Value = nil }, reason: ErrMissingValue},
		{name: "missing period", mutate: func(r *RawReading) { r.Period = nil }, reason: ErrMissingPeriod},
		{name: "negative value", mutate: func(r *RawReading) { r.Value = ptr(units.MustParse("-1")) }, reason: ErrNegativeValue},
		{name: "unknown period", mutate: func(r *RawReading) { r.Period = ptr("noon") }, reason: meter.ErrInvalidPeriod},
		{name: "zero value is present", mutate: func(r *RawReading) { r.Value = ptr(units.Zero()) }},
		{name: "undecodable", mutate: func(r *RawReading) { r.DecodeErr = errors.New("quoted value") }, reason: ErrMalformedItem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validReading("r1")
			if tt.mutate != nil {
				tt.mutate(&raw)
			}

			res := ValidateAndStage([]RawReading{raw}, nil)

			if tt.reason == nil {
				require.Len(t, res.AcceptedReadings, 1)
				assert.Empty(t, res.Rejected)
				assert.Equal(t, meter.Morning, res.AcceptedReadings[0].Period)
				return
			}

			assert.Empty(t, res.AcceptedReadings)
			require.Len(t, res.Rejected, 1)
			assert.Equal(t, KindReading, res.Rejected[0].Kind)
			assert.Contains(t, res.Rejected[0].Reason, tt.reason.Error())
		})
	}
}

func TestValidateTopUps(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *RawTopUp)
		reason error
	}{
		{name: "valid"},
		{name: "missing key", mutate: func(r *RawTopUp) { r.Key = nil }, reason: ErrMissingKey},
		{name: "missing timestamp", mutate: func(r *RawTopUp) { r.Timestamp = nil }, reason: ErrMissingTimestamp},
		{name: "missing units", mutate: func(r *RawTopUp) { r.UnitsAdded = nil }, reason: ErrMissingUnits},
		{name: "missing result", mutate: func(r *RawTopUp) { r.ResultingReading = nil }, reason: ErrMissingResult},
		{name: "zero units", mutate: func(r *RawTopUp) { r.UnitsAdded = ptr(units.Zero()) }, reason: ErrNonPositiveUnits},
		{name: "with cost", mutate: func(r *RawTopUp) { r.Cost = ptr(units.MustParse("2500")) }},
		{name: "undecodable", mutate: func(r *RawTopUp) { r.DecodeErr = errors.New("quoted units") }, reason: ErrMalformedItem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validTopUp("t1")
			if tt.mutate != nil {
				tt.mutate(&raw)
			}

			res := ValidateAndStage(nil, []RawTopUp{raw})

			if tt.reason == nil {
				require.Len(t, res.AcceptedTopUps, 1)
				assert.Empty(t, res.Rejected)
				return
			}

			assert.Empty(t, res.AcceptedTopUps)
			require.Len(t, res.Rejected, 1)
			assert.Equal(t, KindTopUp, res.Rejected[0].Kind)
			assert.Contains(t, res.Rejected[0].Reason, tt.reason.Error())
		})
	}
}

func TestValidateKeepsGoingAfterRejections(t *testing.T) {
	bad := validReading("bad")
	bad.Value = nil

	res := ValidateAndStage(
		[]RawReading{validReading("a"), bad, validReading("b")},
		[]RawTopUp{validTopUp("t1")},
	)

	assert.Len(t, res.AcceptedReadings, 2)
	assert.Len(t, res.AcceptedTopUps, 1)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 1, res.Rejected[0].Index)
	assert.Equal(t, "bad", res.Rejected[0].Key)
}

func TestValidateMalformedItemDoesNotClaimKey(t *testing.T) {
	broken := validReading("k")
	broken.DecodeErr = errors.New("quoted value")

	res := ValidateAndStage([]RawReading{validReading("a"), broken, validReading("k")}, nil)

	require.Len(t, res.AcceptedReadings, 2)
	assert.Equal(t, "k", res.AcceptedReadings[1].Key)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 1, res.Rejected[0].Index)
	assert.Equal(t, "k", res.Rejected[0].Key)
	assert.Contains(t, res.Rejected[0].Reason, "malformed item: quoted value")
}

func TestValidateDuplicateKeys(t *testing.T) {
	first := validReading("dup")
	second := validReading("dup")
	second.Value = ptr(units.MustParse("999"))

	res := ValidateAndStage([]RawReading{first, second}, []RawTopUp{validTopUp("x"), validTopUp("x")})

	require.Len(t, res.AcceptedReadings, 1)
	assert.Equal(t, "120", res.AcceptedReadings[0].Value.String())
	require.Len(t, res.AcceptedTopUps, 1)
	require.Len(t, res.Rejected, 2)
	for _, r := range res.Rejected {
		assert.Equal(t, ErrDuplicateKey.Error(), r.Reason)
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	readings := []RawReading{validReading("a"), validReading("b")}
	topUps := []RawTopUp{validTopUp("t")}

	first := ValidateAndStage(readings, topUps)
	second := ValidateAndStage(readings, topUps)

	assert.Equal(t, first.AcceptedReadings, second.AcceptedReadings)
	assert.Equal(t, first.AcceptedTopUps, second.AcceptedTopUps)
}
