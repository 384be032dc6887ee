package fingerprint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikitaSitlivy/fingercloak-api/errors"
	"github.com/NikitaSitlivy/fingercloak-api/snapshot"
)

func richPayload(canvasHash string) *snapshot.RawPayload {
	hc := 8.0
	dpr := 1.5
	return &snapshot.RawPayload{
		Env: &snapshot.RawEnv{
			UA: "Mozilla/5.0 Chrome/120", Platform: "Win32",
			Languages: []string{"en-US"}, HardwareConcurrency: &hc,
		},
		Screen: &snapshot.RawScreen{DPR: &dpr},
		WebGL:  &snapshot.RawWebGL{Supported: true, Vendor: "Google", Renderer: "ANGLE (NVIDIA)"},
		Canvas: &snapshot.RawCanvas{Hash: canvasHash},
		Intl:   &snapshot.RawIntl{Locale: "en-US", TimeZone: "America/Denver"},
	}
}

func TestCompareIdenticalDevices(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Save(ctx, SubmitInput{IP: "1.1.1.1", UA: "Mozilla/5.0 Chrome/120", Payload: richPayload("cafe")})
	require.NoError(t, err)
	b, err := svc.Save(ctx, SubmitInput{IP: "2.2.2.2", UA: "Mozilla/5.0 Chrome/120", Payload: richPayload("cafe")})
	require.NoError(t, err)

	cmp, err := svc.Compare(a.ID, b.ID)
	require.NoError(t, err)

	assert.True(t, cmp.SameStable)
	assert.Equal(t, 0, cmp.ContentHashHamming)
	// 50 + 30 (stable) - 0 + 10 (ua product) = 90
	assert.Equal(t, 90, cmp.CompatScore)
	assert.Equal(t, a.ID, cmp.A.ID)
	assert.Equal(t, b.ID, cmp.B.ID)
}

func TestCompareDifferentDevices(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Save(ctx, SubmitInput{IP: "1.1.1.1", UA: "Mozilla/5.0 Chrome/120", Payload: richPayload("cafe")})
	require.NoError(t, err)

	other := richPayload("d00d")
	other.Env.UA = "Opera/9.80"
	other.WebGL.Renderer = "Apple GPU"
	other.Intl.TimeZone = "Asia/Tokyo"
	b, err := svc.Save(ctx, SubmitInput{IP: "2.2.2.2", UA: "Opera/9.80", Payload: other})
	require.NoError(t, err)

	cmp, err := svc.Compare(a.ID, b.ID)
	require.NoError(t, err)

	assert.False(t, cmp.SameStable)
	assert.Greater(t, cmp.ContentHashHamming, 0)
	assert.Less(t, cmp.CompatScore, 50)
}

func TestCompareScoreBounds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Save(ctx, SubmitInput{IP: "1.1.1.1", UA: "ua", Payload: richPayload("x")})
	require.NoError(t, err)
	b, err := svc.Save(ctx, SubmitInput{IP: "1.1.1.1", UA: "ua", Payload: richPayload("y")})
	require.NoError(t, err)

	cmp, err := svc.Compare(a.ID, b.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cmp.CompatScore, 0)
	assert.LessOrEqual(t, cmp.CompatScore, 100)
}

func TestCompareMissingSnapshot(t *testing.T) {
	svc := newTestService(t)

	a, err := svc.Save(context.Background(), SubmitInput{IP: "1.1.1.1", UA: "ua", Payload: richPayload("x")})
	require.NoError(t, err)

	_, err = svc.Compare(a.ID, "ghost")
	assert.True(t, errors.IsNotFound(err))

	_, err = svc.Compare("ghost", a.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestCompareFactors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Save(ctx, SubmitInput{IP: "1.1.1.1", UA: "Mozilla/5.0 Chrome/120", Payload: richPayload("cafe")})
	require.NoError(t, err)
	b, err := svc.Save(ctx, SubmitInput{IP: "2.2.2.2", UA: "Mozilla/5.0 Chrome/120", Payload: richPayload("cafe")})
	require.NoError(t, err)

	cmp, err := svc.Compare(a.ID, b.ID)
	require.NoError(t, err)

	assert.NotEmpty(t, cmp.TopFactors)
	assert.LessOrEqual(t, len(cmp.TopFactors), 6)
	for _, f := range cmp.TopFactors {
		assert.Contains(t, []string{"pro", "con"}, f.Kind)
	}
	assert.Equal(t, "pro", cmp.TopFactors[0].Kind)
	assert.Equal(t, "stable id matches", cmp.TopFactors[0].Msg)
}

func TestCompareDiffGroups(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Save(ctx, SubmitInput{IP: "1.1.1.1", UA: "ua", Payload: richPayload("cafe")})
	require.NoError(t, err)

	other := richPayload("cafe")
	other.Intl.TimeZone = "Europe/Berlin"
	b, err := svc.Save(ctx, SubmitInput{IP: "1.1.1.1", UA: "ua", Payload: other})
	require.NoError(t, err)

	cmp, err := svc.Compare(a.ID, b.ID)
	require.NoError(t, err)

	for _, section := range []string{"env", "screen", "webgl", "webgl2", "webgpu", "intl", "canvas", "audio"} {
		assert.Contains(t, cmp.Diff, section)
	}

	tz := cmp.Diff["intl"]["timeZone"]
	assert.False(t, tz.Same)
	assert.Equal(t, "America/Denver", tz.A)
	assert.Equal(t, "Europe/Berlin", tz.B)

	ua := cmp.Diff["env"]["ua"]
	assert.True(t, ua.Same)

	canvas := cmp.Diff["canvas"]["hash"]
	assert.True(t, canvas.Same)
}
