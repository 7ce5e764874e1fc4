// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli_test

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/H0llyW00dzZ/x509-path-validator/src/cli"
	x509certs "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/store"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/testpki"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/validate"
	"github.com/H0llyW00dzZ/x509-path-validator/src/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ocsp"
)

const version = "1.3.3.7-testing"

// fixture is a hierarchy written to disk as PEM files.
type fixture struct {
	h     *testpki.Hierarchy
	dir   string
	leaf  string
	inter string
	root  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := testpki.NewHierarchy(t)
	f := &fixture{h: h, dir: t.TempDir()}
	f.leaf = f.writeCert(t, "leaf.pem", h.Leaf.Cert)
	f.inter = f.writeCert(t, "inter.pem", h.Intermediate.Cert)
	f.root = f.writeCert(t, "root.pem", h.Root.Cert)
	return f
}

func (f *fixture) write(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func (f *fixture) writeCert(t *testing.T, name string, cert *x509.Certificate) string {
	t.Helper()
	return f.write(t, name, x509certs.New().EncodePEM(cert))
}

func (f *fixture) writeCRL(t *testing.T, name string, revoked ...*big.Int) string {
	t.Helper()
	crl := testpki.CRL(t, f.h.Intermediate, testpki.CRLOptions{Revoked: revoked})
	return f.write(t, name, pem.EncodeToMemory(&pem.Block{Type: x509certs.BlockCRL, Bytes: crl.Raw}))
}

// execute runs a fresh command with args, returning stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := executeCapture(t, args...)
	return stdout, err
}

// executeCapture is [execute] that also returns stderr.
func executeCapture(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(validate.ConfigEnv, "")

	var stdout, stderr bytes.Buffer
	cmd := cli.NewCommand(version, logger.NewCLILogger())
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestExecute_NoInputFile(t *testing.T) {
	f := newFixture(t)
	_, err := execute(t, "--roots", f.root)
	assert.ErrorIs(t, err, cli.ErrInputFileRequired)
	assert.False(t, cli.OperationPerformed)
}

func TestExecute_NoRoots(t *testing.T) {
	f := newFixture(t)
	_, err := execute(t, f.leaf)
	assert.ErrorIs(t, err, cli.ErrNoTrustRoots)
}

func TestExecute_InvalidFile(t *testing.T) {
	f := newFixture(t)
	invalid := f.write(t, "invalid.cer", []byte("invalid data"))

	_, err := execute(t, "-f", invalid, "--roots", f.root)
	assert.Error(t, err)
}

func TestExecute_NonExistentFile(t *testing.T) {
	f := newFixture(t)
	_, err := execute(t, "-f", filepath.Join(f.dir, "nonexistent.cer"), "--roots", f.root)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExecute_FlagErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{name: "Unknown usage", args: []string{"--usage", "code-signing"}, wantErr: x509chain.ErrUnknownUsage},
		{name: "Unknown format", args: []string{"--format", "xml"}, wantErr: cli.ErrUnknownFormat},
		{name: "Invalid config", args: []string{"--config", f.write(t, "bad.json", []byte(`{"policy":{"minimumKeyStrength":-5}}`))}, wantErr: validate.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{f.leaf, "--roots", f.root, "-i", f.inter}, tt.args...)
			_, err := execute(t, args...)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := execute(t, f.leaf, "--roots", f.root, "--at", "yesterday")
	assert.ErrorContains(t, err, "invalid --at")
}

func TestExecute_Validation(t *testing.T) {
	f := newFixture(t)
	goodCRL := f.writeCRL(t, "good.crl")
	revokedCRL := f.writeCRL(t, "revoked.crl", f.h.Leaf.Cert.SerialNumber)

	tests := []struct {
		name     string
		args     []string
		wantErr  error
		contains []string
	}{
		{
			name:     "Table",
			args:     []string{"--hostname", "leaf.example.com", "--usage", "tls-server"},
			contains: []string{"Result: Verified (VERIFIED)", "leaf.example.com", "Test Root", "OCSP_NO_HTTP"},
		},
		{
			name:     "Tree",
			args:     []string{"--format", "tree"},
			contains: []string{"└── [✓] Test Root", "Result: Verified"},
		},
		{
			name:     "YAML",
			args:     []string{"--format", "yaml", "--crl", goodCRL},
			contains: []string{"successful: true", "VALID_CRL_CHECKED"},
		},
		{
			name:     "Revoked",
			args:     []string{"--crl", revokedCRL},
			wantErr:  cli.ErrValidationFailed,
			contains: []string{"CERT_IS_REVOKED"},
		},
		{
			name:     "Hostname mismatch",
			args:     []string{"--hostname", "other.example.com"},
			wantErr:  cli.ErrValidationFailed,
			contains: []string{"CERT_NAME_NOMATCH"},
		},
		{
			name:     "Revocation required",
			args:     []string{"--require-revocation"},
			wantErr:  cli.ErrValidationFailed,
			contains: []string{"NO_REVOCATION_DATA"},
		},
		{
			name:     "Expired at a later time",
			args:     []string{"--at", time.Now().Add(48 * time.Hour).Format(time.RFC3339)},
			wantErr:  cli.ErrValidationFailed,
			contains: []string{"CERT_HAS_EXPIRED"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{f.leaf, "--roots", f.root, "-i", f.inter}, tt.args...)
			out, err := execute(t, args...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, cli.OperationPerformed)
				assert.False(t, cli.OperationPerformedSuccessfully)
			} else {
				require.NoError(t, err)
				assert.True(t, cli.OperationPerformedSuccessfully)
			}
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestExecute_JSONWithOCSPResponse(t *testing.T) {
	f := newFixture(t)
	der := testpki.OCSPResponse(t, f.h.Intermediate, f.h.Leaf.Cert, testpki.OCSPOptions{
		Status:     ocsp.Good,
		NextUpdate: time.Now().Add(time.Hour),
	})
	response := f.write(t, "leaf.ocsp", der)

	out, err := execute(t, f.leaf, "--roots", f.root, "-i", f.inter,
		"--ocsp-response", response, "--require-revocation", "--format", "json")
	require.NoError(t, err)

	var report validate.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Successful)
	assert.Equal(t, "VERIFIED", report.Code)
	require.Len(t, report.Path.Certificates, 3)
	assert.Contains(t, report.Path.Certificates[0].Status, "OCSP_RESPONSE_GOOD")
}

func TestExecute_OnlineWithBoltCache(t *testing.T) {
	srv := testpki.NewServer(t)
	f := &fixture{h: srv.Hierarchy, dir: t.TempDir()}
	leaf := f.writeCert(t, "leaf.pem", srv.Hierarchy.Leaf.Cert)
	inter := f.writeCert(t, "inter.pem", srv.Hierarchy.Intermediate.Cert)
	root := f.writeCert(t, "root.pem", srv.Hierarchy.Root.Cert)
	db := filepath.Join(f.dir, "crls.db")

	out, err := execute(t, leaf, "--roots", root, "-i", inter,
		"--ocsp-timeout", "2s", "--cache-db", db, "--require-revocation", "--log-json")
	require.NoError(t, err)
	assert.Contains(t, out, "OCSP_RESPONSE_GOOD")
	assert.FileExists(t, db)
	assert.Equal(t, 3, srv.Requests(), "two CRLs and one OCSP query")

	_, err = execute(t, leaf, "--roots", root, "-i", inter,
		"--ocsp-timeout", "2s", "--cache-db", db)
	require.NoError(t, err)
	assert.Equal(t, 4, srv.Requests(), "CRLs come from the database the second time")
}

func TestExecute_ExportChain(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(f.dir, "chain.pem")

	_, err := execute(t, f.leaf, "--roots", f.root, "-i", f.inter, "--export-chain", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	certs, err := x509certs.New().DecodeMultiple(data)
	require.NoError(t, err)
	require.Len(t, certs, 3)
	assert.True(t, f.h.Leaf.Cert.Equal(certs[0]))
	assert.True(t, f.h.Intermediate.Cert.Equal(certs[1]))
	assert.True(t, f.h.Root.Cert.Equal(certs[2]))
}

func TestExecute_CacheMaintenance(t *testing.T) {
	f := newFixture(t)

	t.Run("Stale CRLs are pruned on open", func(t *testing.T) {
		db := filepath.Join(f.dir, "stale.db")
		cache, err := store.OpenBoltCache(db, time.Second, nil)
		require.NoError(t, err)
		require.NoError(t, cache.AddCRL(testpki.CRL(t, f.h.Root, testpki.CRLOptions{
			ThisUpdate: time.Now().Add(-72 * time.Hour),
			NextUpdate: time.Now().Add(-48 * time.Hour),
		})))
		require.Equal(t, 1, cache.CRLs())
		require.NoError(t, cache.Close())

		_, stderr, err := executeCapture(t, f.leaf, "--roots", f.root, "-i", f.inter, "--cache-db", db, "--log-json")
		require.NoError(t, err)
		assert.Contains(t, stderr, "pruned 1 stale CRL(s)")

		cache, err = store.OpenBoltCache(db, time.Second, nil)
		require.NoError(t, err)
		defer cache.Close()
		assert.Zero(t, cache.CRLs())
	})

	t.Run("In-memory cache reports its statistics", func(t *testing.T) {
		_, stderr, err := executeCapture(t, f.leaf, "--roots", f.root, "-i", f.inter, "--log-json")
		require.NoError(t, err)
		assert.Contains(t, stderr, "CRL Cache Statistics")
	})
}
