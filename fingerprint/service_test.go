package fingerprint

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikitaSitlivy/fingercloak-api/chunkstore"
	"github.com/NikitaSitlivy/fingercloak-api/errors"
	"github.com/NikitaSitlivy/fingercloak-api/kvstore"
	"github.com/NikitaSitlivy/fingercloak-api/snapshot"
	"github.com/NikitaSitlivy/fingercloak-api/snapstore"
	"github.com/NikitaSitlivy/fingercloak-api/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	backend := kvstore.NewMemory(time.Minute, nil)
	chunks, err := chunkstore.New(backend, time.Minute)
	require.NoError(t, err)

	snaps, err := snapstore.New("")
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = snaps.Close(ctx)
		_ = backend.Close(ctx)
	})

	svc, err := New(chunks, snaps, "test-salt", nil)
	require.NoError(t, err)
	return svc
}

func submitPayload(sessionID string) *snapshot.RawPayload {
	return &snapshot.RawPayload{
		Meta: &snapshot.RawMeta{SessionID: sessionID},
		Env:  &snapshot.RawEnv{UA: "Mozilla/5.0 Chrome/120", Platform: "Win32"},
	}
}

func TestSaveRichPayload(t *testing.T) {
	svc := newTestService(t)

	payload := testutil.SampleRawPayload("sess-rich")
	res, err := svc.Save(context.Background(), SubmitInput{
		IP: "203.0.113.9", UA: payload.Env.UA, Payload: payload,
	})
	require.NoError(t, err)

	assert.Equal(t, "sess-rich", res.CorrelationID)
	assert.Equal(t, "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)", res.WebGL.Renderer)
	assert.Equal(t, "9f2c4e11ab03d6f0", res.Canvas.Hash)
	assert.Equal(t, "77ab120c", res.Audio.Hash)
	assert.NotZero(t, res.Derived.Scores.Total)
	assert.NotEmpty(t, res.Derived.Scores.Band)
}

func TestSaveBasicSnapshot(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.Save(context.Background(), SubmitInput{
		IP: "203.0.113.9", UA: "Mozilla/5.0 Chrome/120", Origin: "https://example.com",
		Payload: submitPayload(""),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.NotZero(t, res.TS)
	assert.Len(t, res.StableID, 64)
	assert.Len(t, res.ContentHash, 64)
	assert.Len(t, res.IPHash, 32)
	assert.NotContains(t, res.IPHash, "203.0.113.9")
	assert.Equal(t, snapshot.SchemaVersion, res.SchemaVersion)
	assert.Nil(t, res.Network)
	assert.False(t, res.NetworkFound.Edge)
}

func TestSaveMergesBufferedChunks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.chunks.Add(ctx, "sess-1", chunkstore.KindTLS, json.RawMessage(`{"ja3":"771"}`))
	require.NoError(t, err)
	_, err = svc.chunks.Add(ctx, "sess-1", chunkstore.KindDNS, json.RawMessage(`{"resolvers":["8.8.8.8"]}`))
	require.NoError(t, err)

	res, err := svc.Save(ctx, SubmitInput{
		IP: "1.2.3.4", UA: "ua", Payload: submitPayload("sess-1"),
	})
	require.NoError(t, err)

	require.NotNil(t, res.Network)
	assert.True(t, res.NetworkFound.TLS)
	assert.True(t, res.NetworkFound.DNS)
	assert.False(t, res.NetworkFound.Edge)
	assert.JSONEq(t, `{"ja3":"771"}`, string(res.Network.TLS))

	// Lease read: chunks survive the submit.
	parts, err := svc.chunks.Peek(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, parts, 2)
}

func TestSaveServerFallbacksOnlyWhenEdgeSilent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	headers := &snapshot.HeaderInfo{Order: []string{"accept", "user-agent"}, Hash: "h1"}
	geo := &snapshot.GeoInfo{Country: "DE", ASN: "AS3320"}

	// No edge chunk: both fallbacks attach.
	res, err := svc.Save(ctx, SubmitInput{
		IP: "1.2.3.4", UA: "ua", Payload: submitPayload("sess-a"),
		HeadersSrv: headers, GeoSrv: geo,
	})
	require.NoError(t, err)
	assert.True(t, res.NetworkFound.HeadersSrv)
	assert.True(t, res.NetworkFound.GeoSrv)

	// Edge chunk carrying headers and geo: fallbacks are skipped.
	_, err = svc.chunks.Add(ctx, "sess-b", chunkstore.KindEdge,
		json.RawMessage(`{"headers":{"order":["x"]},"geo":{"country":"FR"}}`))
	require.NoError(t, err)

	res, err = svc.Save(ctx, SubmitInput{
		IP: "1.2.3.4", UA: "ua", Payload: submitPayload("sess-b"),
		HeadersSrv: headers, GeoSrv: geo,
	})
	require.NoError(t, err)
	assert.True(t, res.NetworkFound.Edge)
	assert.False(t, res.NetworkFound.HeadersSrv)
	assert.False(t, res.NetworkFound.GeoSrv)
}

func TestSaveAttachesRDAP(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.Save(context.Background(), SubmitInput{
		IP: "1.2.3.4", UA: "ua", Payload: submitPayload(""),
		RDAP: json.RawMessage(`{"asn":"AS13335","org":"Cloudflare"}`),
	})
	require.NoError(t, err)
	assert.True(t, res.NetworkFound.RDAP)
	require.NotNil(t, res.Network)
	assert.JSONEq(t, `{"asn":"AS13335","org":"Cloudflare"}`, string(res.Network.RDAP))
}

func TestSaveNilPayload(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.Save(context.Background(), SubmitInput{IP: "1.2.3.4", UA: "ua"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "ua", res.Env.UA)
}

func TestGetAndSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Save(ctx, SubmitInput{IP: "1.1.1.1", UA: "ua", Payload: submitPayload("sess-9")})
	require.NoError(t, err)
	_, err = svc.Save(ctx, SubmitInput{IP: "1.1.1.1", UA: "ua", Payload: submitPayload("sess-9")})
	require.NoError(t, err)

	got, err := svc.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	session, err := svc.Session("sess-9")
	require.NoError(t, err)
	assert.Equal(t, 2, session.Total)
	assert.Len(t, session.Items, 2)
	assert.LessOrEqual(t, session.Items[0].TS, session.Items[1].TS)

	_, err = svc.Session("unknown")
	assert.True(t, errors.IsNotFound(err))
}

func TestStatsAndVersion(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Save(context.Background(), SubmitInput{IP: "1.1.1.1", UA: "ua", Payload: submitPayload("")})
	require.NoError(t, err)

	st := svc.Stats()
	assert.Equal(t, 1, st.Total)

	v := svc.VersionInfo()
	assert.Equal(t, "fingercloak", v.API)
	assert.Equal(t, Version, v.Version)
}

func TestSearchThroughService(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Save(context.Background(), SubmitInput{IP: "1.1.1.1", UA: "Mozilla/5.0 Chrome/120", Payload: submitPayload("")})
	require.NoError(t, err)

	found := svc.Search(snapstore.Query{UA: "chrome"})
	assert.Len(t, found, 1)
}
