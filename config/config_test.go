package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
Admin = "0x1111111111111111111111111111111111111111"
VaultAddress = "0x2222222222222222222222222222222222222222"
OracleID = "oracle-main"
RouterID = "router-main"
InitialCapacity = "1000000"
WithdrawalCeiling = "10000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "refvault", cfg.Service)
	require.Equal(t, "local", cfg.Env)
	require.Equal(t, "USD6", cfg.ReferenceAsset)
	require.Equal(t, "WNATIVE", cfg.WrappedNative)
	require.Equal(t, uint64(100), cfg.SlippageBps)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestEngineParams(t *testing.T) {
	path := writeConfig(t, `
Service = "refvault"
Env = "test"
Admin = "0x1111111111111111111111111111111111111111"
VaultAddress = "0x2222222222222222222222222222222222222222"
ReferenceAsset = "usd6"
WrappedNative = "wnative"
OracleID = "oracle-main"
RouterID = "router-main"
InitialCapacity = "1_000_000.50"
WithdrawalCeiling = "10000"
SlippageBps = 250
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	params, err := cfg.EngineParams()
	require.NoError(t, err)
	require.Equal(t, "USD6", params.ReferenceAsset)
	require.Equal(t, "WNATIVE", params.WrappedNative)
	require.Equal(t, uint64(250), params.SlippageBps)
	require.Equal(t, "1000000500000", params.CapacityLimit.String())
	require.Equal(t, "10000000000", params.WithdrawalCeiling.String())
	require.False(t, params.Admin.IsZero())
}

func TestEngineParamsRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad admin": `
Admin = "not-an-address"
VaultAddress = "0x2222222222222222222222222222222222222222"
OracleID = "o"
RouterID = "r"
InitialCapacity = "100"
WithdrawalCeiling = "10"
`,
		"bad amount": `
Admin = "0x1111111111111111111111111111111111111111"
VaultAddress = "0x2222222222222222222222222222222222222222"
OracleID = "o"
RouterID = "r"
InitialCapacity = "1.2345678"
WithdrawalCeiling = "10"
`,
		"ceiling above capacity": `
Admin = "0x1111111111111111111111111111111111111111"
VaultAddress = "0x2222222222222222222222222222222222222222"
OracleID = "o"
RouterID = "r"
InitialCapacity = "10"
WithdrawalCeiling = "100"
`,
		"slippage out of band": `
Admin = "0x1111111111111111111111111111111111111111"
VaultAddress = "0x2222222222222222222222222222222222222222"
OracleID = "o"
RouterID = "r"
InitialCapacity = "100"
WithdrawalCeiling = "10"
SlippageBps = 900
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, body))
			require.NoError(t, err)
			_, err = cfg.EngineParams()
			require.Error(t, err)
		})
	}
}
