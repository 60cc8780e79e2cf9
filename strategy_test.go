package credauth_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	oa "github.com/panyam/credauth"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    oa.Strategy
		wantErr bool
	}{
		{"", oa.StrategySaltedHash, false},
		{"plaintext", oa.StrategyPlaintext, false},
		{" Reversible ", oa.StrategyReversible, false},
		{"UNSALTED-HASH", oa.StrategyUnsaltedHash, false},
		{"salted-hash", oa.StrategySaltedHash, false},
		{"rot13", "", true},
	}
	for _, tt := range tests {
		got, err := oa.ParseStrategy(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, oa.ErrConfiguration, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewProtectorUnknownStrategy(t *testing.T) {
	_, err := oa.NewProtector("rot13", "", 0)
	assert.ErrorIs(t, err, oa.ErrConfiguration)
}

func TestReversibleNeedsSecret(t *testing.T) {
	_, err := oa.NewProtector(oa.StrategyReversible, "", 0)
	assert.ErrorIs(t, err, oa.ErrConfiguration)
}

func TestProtectorsRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, strategy := range allStrategies {
		t.Run(string(strategy), func(t *testing.T) {
			p := newProtector(t, strategy)
			assert.Equal(t, strategy, p.Strategy())

			for _, secret := range []string{"hunter2", "pässwörd ✓", strings.Repeat("x", 64)} {
				credential, err := p.Seal(ctx, secret)
				require.NoError(t, err)
				ok, err := p.Verify(ctx, secret, credential)
				require.NoError(t, err)
				assert.True(t, ok, secret)

				ok, err = p.Verify(ctx, secret+"!", credential)
				require.NoError(t, err)
				assert.False(t, ok)
			}

			// garbage credentials never verify and never error
			ok, err := p.Verify(ctx, "hunter2", "not-a-real-credential")
			assert.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestUnsaltedHashIsHexMD5(t *testing.T) {
	p := newProtector(t, oa.StrategyUnsaltedHash)
	credential, err := p.Seal(context.Background(), "hunter2")
	require.NoError(t, err)
	sum := md5.Sum([]byte("hunter2"))
	assert.Equal(t, hex.EncodeToString(sum[:]), credential)
}

func TestReversibleDecrypts(t *testing.T) {
	ctx := context.Background()
	p := newProtector(t, oa.StrategyReversible)
	a, err := p.Seal(ctx, "hunter2")
	require.NoError(t, err)
	b, err := p.Seal(ctx, "hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "fresh nonce per seal")

	decrypter, ok := p.(interface{ Decrypt(string) (string, error) })
	require.True(t, ok)
	plain, err := decrypter.Decrypt(a)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)

	// a different process secret cannot open it
	other, err := oa.NewProtector(oa.StrategyReversible, "another-secret", 0)
	require.NoError(t, err)
	ok, err = other.Verify(ctx, "hunter2", a)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaltedHashWorkFactor(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		workFactor int
		want       int
	}{
		{0, oa.DefaultWorkFactor},
		{1, bcrypt.MinCost},
		{5, 5},
	}
	for _, tt := range tests {
		credential, err := oa.NewSaltedHashProtector(tt.workFactor).Seal(ctx, "pw")
		require.NoError(t, err)
		cost, err := bcrypt.Cost([]byte(credential))
		require.NoError(t, err)
		assert.Equal(t, tt.want, cost)
	}
}

func TestSaltedHashTimingIgnoresMismatchPosition(t *testing.T) {
	if testing.Short() {
		t.Skip("timing comparison")
	}
	ctx := context.Background()
	p := oa.NewSaltedHashProtector(8)
	secret := strings.Repeat("a", 32)
	credential, err := p.Seal(ctx, secret)
	require.NoError(t, err)

	measure := func(candidate string) time.Duration {
		const rounds = 10
		start := time.Now()
		for range rounds {
			p.Verify(ctx, candidate, credential)
		}
		return time.Since(start) / rounds
	}
	measure(secret)

	early := measure("b" + secret[1:])
	late := measure(secret[:31] + "b")
	ratio := float64(early) / float64(late)
	assert.InDelta(t, 1.0, ratio, 0.5, "early=%v late=%v", early, late)
}
