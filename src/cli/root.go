// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/helper/posix"
	x509certs "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/revocation"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/store"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/validate"
	"github.com/H0llyW00dzZ/x509-path-validator/src/logger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInputFileRequired is returned when neither a certificate file nor a
	// remote endpoint is given.
	ErrInputFileRequired = errors.New("cli: input certificate file or --remote is required")
	// ErrNoTrustRoots is returned without any --roots file.
	ErrNoTrustRoots = errors.New("cli: at least one --roots file is required")
	// ErrUnknownFormat is returned for an unsupported --format value.
	ErrUnknownFormat = errors.New("cli: unknown output format")
	// ErrValidationFailed is returned when the certificate does not validate.
	ErrValidationFailed = errors.New("cli: validation failed")
)

// OperationPerformed reports whether the last execution got as far as a
// validation; OperationPerformedSuccessfully whether that validation
// succeeded.
var (
	OperationPerformed             bool
	OperationPerformedSuccessfully bool
)

const (
	defaultRemoteTimeout = 10 * time.Second
	boltOpenTimeout      = time.Second
)

// options holds the flag values of one command instance.
type options struct {
	file                 string
	roots                []string
	intermediates        []string
	crls                 []string
	ocspResponses        []string
	hostname             string
	usage                string
	at                   string
	ocspTimeout          time.Duration
	requireRevocation    bool
	ocspAllIntermediates bool
	minKeyStrength       int
	configPath           string
	format               string
	cacheDB              string
	exportChain          string
	remote               string
	fetchAIA             int
	verbose              bool
	logJSON              bool
}

// Execute runs the root command with os.Args and returns its error.
//
// Parameters:
//   - ctx: Context cancelled on termination signals
//   - version: Version string reported by --version and the User-Agent
//   - log: Logger for progress messages, used with --verbose
//
// Returns:
//   - error: Flag, input or validation failure
func Execute(ctx context.Context, version string, log logger.Logger) error {
	return NewCommand(version, log).ExecuteContext(ctx)
}

// NewCommand builds the root command. Each call has its own flag state.
func NewCommand(version string, log logger.Logger) *cobra.Command {
	opts := &options{}
	exe := posix.ExecutableName()
	cmd := &cobra.Command{
		Use:   exe + " [CERT_FILE]",
		Short: "X.509 certification path validator",
		Long: `Builds every certification path from an end-entity certificate to a trusted root,
verifies it and checks revocation through CRLs and OCSP.

The end entity comes first in CERT_FILE (PEM, DER or PKCS#7); further certificates
in the file are used as untrusted intermediates.`,
		Example: fmt.Sprintf(`  %[1]s leaf.pem -i intermediate.pem -r root.pem --crl intermediate.crl
  %[1]s --remote example.com -r roots.pem --ocsp-timeout 5s --format json`, exe),
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.file = args[0]
			}
			return run(cmd, opts, version, log)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "end-entity certificate file")
	f.StringSliceVarP(&opts.roots, "roots", "r", nil, "trusted root certificate files")
	f.StringSliceVarP(&opts.intermediates, "intermediates", "i", nil, "untrusted intermediate certificate files")
	f.StringSliceVar(&opts.crls, "crl", nil, "CRL files (PEM or DER)")
	f.StringSliceVar(&opts.ocspResponses, "ocsp-response", nil, "DER OCSP response files, one per path position starting at the end entity")
	f.StringVarP(&opts.hostname, "hostname", "n", "", "hostname the end entity must match")
	f.StringVarP(&opts.usage, "usage", "u", "", "required usage: tls-server, tls-client, ca, ocsp-responder, encryption")
	f.StringVar(&opts.at, "at", "", "validation time in RFC 3339 (default: now)")
	f.DurationVar(&opts.ocspTimeout, "ocsp-timeout", 0, "timeout per OCSP/CRL fetch; enables network access")
	f.BoolVar(&opts.requireRevocation, "require-revocation", false, "require revocation information for the end entity")
	f.BoolVar(&opts.ocspAllIntermediates, "ocsp-all-intermediates", false, "check and require revocation information for intermediates too")
	f.IntVar(&opts.minKeyStrength, "min-key-strength", validate.DefaultMinimumKeyStrength, "minimum key strength in bits of security")
	f.StringVarP(&opts.configPath, "config", "c", "", "configuration file (JSON or YAML), default $"+validate.ConfigEnv)
	f.StringVarP(&opts.format, "format", "o", "table", "output format: table, tree, json, yaml")
	f.StringVar(&opts.cacheDB, "cache-db", "", "persist fetched CRLs in this bbolt database")
	f.StringVar(&opts.exportChain, "export-chain", "", "write the selected path as a PEM bundle to this file")
	f.StringVar(&opts.remote, "remote", "", "fetch the chain from a TLS endpoint HOST[:PORT]")
	f.IntVar(&opts.fetchAIA, "fetch-aia", 0, "download up to N missing issuers via AIA (needs --ocsp-timeout)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log validation progress to stderr")
	f.BoolVar(&opts.logJSON, "log-json", false, "log as JSON lines (implies --verbose)")

	return cmd
}

func run(cmd *cobra.Command, opts *options, version string, log logger.Logger) error {
	OperationPerformed, OperationPerformedSuccessfully = false, false
	ctx := cmd.Context()

	switch opts.format {
	case "table", "tree", "json", "yaml":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.format)
	}

	config, err := validate.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	restrictions, timeout := applyFlags(cmd, opts, config)

	usage, err := x509chain.ParseUsage(opts.usage)
	if err != nil {
		return err
	}
	refTime, err := parseTime(opts.at)
	if err != nil {
		return err
	}

	certs, hostname, err := loadSubject(ctx, opts)
	if err != nil {
		return err
	}
	codec := x509certs.New()
	for _, path := range opts.intermediates {
		more, err := readCertificates(codec, path)
		if err != nil {
			return err
		}
		certs = append(certs, more...)
	}

	trusted, err := loadTrustStore(codec, opts)
	if err != nil {
		return err
	}
	responses, err := loadOCSPResponses(opts.ocspResponses)
	if err != nil {
		return err
	}

	progress := progressLogger(cmd, opts, log)
	cache, closeCache, err := openCache(ctx, opts, config, progress)
	if err != nil {
		return err
	}
	defer closeCache()

	transport := x509chain.NewHTTPConfig(version)
	transport.MaxRedirects = config.Network.MaxRedirects

	aia := config.Network.AIAFetchLimit
	if cmd.Flags().Changed("fetch-aia") {
		aia = opts.fetchAIA
	}

	v := validate.New(
		validate.WithTransport(transport),
		validate.WithCRLCache(cache),
		validate.WithLogger(progress),
		validate.WithAIAFetching(aia),
	)
	res, err := v.Validate(ctx, validate.Request{
		Certificates:  certs,
		Restrictions:  restrictions,
		Stores:        []store.Store{trusted},
		Hostname:      hostname,
		Usage:         usage,
		ReferenceTime: refTime,
		OCSPTimeout:   timeout,
		OCSPResponses: responses,
	})
	if err != nil {
		return err
	}
	OperationPerformed = true

	if err := render(cmd.OutOrStdout(), opts.format, res); err != nil {
		return err
	}
	if opts.exportChain != "" && len(res.Path()) > 0 {
		if err := os.WriteFile(opts.exportChain, codec.EncodeMultiplePEM(res.Path().X509()), 0o644); err != nil {
			return fmt.Errorf("error writing %s: %w", opts.exportChain, err)
		}
	}
	if !res.Successful() {
		return fmt.Errorf("%w: %s", ErrValidationFailed, res.Code().Name())
	}
	OperationPerformedSuccessfully = true
	return nil
}

// applyFlags overlays explicitly set flags on the configuration file.
func applyFlags(cmd *cobra.Command, opts *options, config *validate.Config) (validate.Restrictions, time.Duration) {
	flags := cmd.Flags()
	if flags.Changed("require-revocation") {
		config.Policy.RequireRevocationInformation = opts.requireRevocation
	}
	if flags.Changed("ocsp-all-intermediates") {
		config.Policy.OCSPAllIntermediates = opts.ocspAllIntermediates
	}
	if flags.Changed("min-key-strength") {
		config.Policy.MinimumKeyStrength = opts.minKeyStrength
	}

	timeout := config.OCSPTimeout()
	if flags.Changed("ocsp-timeout") {
		timeout = opts.ocspTimeout
	}
	return config.Restrictions(), timeout
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at: %w", err)
	}
	return t, nil
}

// loadSubject returns the end entity and any certificates sent along with
// it, plus the hostname to check.
func loadSubject(ctx context.Context, opts *options) ([]*x509.Certificate, string, error) {
	if opts.remote != "" {
		host, port, err := splitHostPort(opts.remote)
		if err != nil {
			return nil, "", err
		}
		timeout := opts.ocspTimeout
		if timeout <= 0 {
			timeout = defaultRemoteTimeout
		}
		chain, err := x509chain.FetchRemoteChain(ctx, host, port, timeout)
		if err != nil {
			return nil, "", err
		}
		hostname := opts.hostname
		if hostname == "" {
			hostname = host
		}
		return x509chain.Path(chain).X509(), hostname, nil
	}

	if opts.file == "" {
		return nil, "", ErrInputFileRequired
	}
	certs, err := readCertificates(x509certs.New(), opts.file)
	if err != nil {
		return nil, "", err
	}
	return certs, opts.hostname, nil
}

func splitHostPort(remote string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(remote)
	if err != nil {
		return remote, 443, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in --remote %q", remote)
	}
	return host, port, nil
}

func readCertificates(codec *x509certs.Certificate, path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	certs, err := codec.DecodeMultiple(data)
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}
	return certs, nil
}

// loadTrustStore reads the roots and the offline CRLs into one store.
func loadTrustStore(codec *x509certs.Certificate, opts *options) (*store.MemoryStore, error) {
	if len(opts.roots) == 0 {
		return nil, ErrNoTrustRoots
	}
	var roots []*x509.Certificate
	for _, path := range opts.roots {
		certs, err := readCertificates(codec, path)
		if err != nil {
			return nil, err
		}
		roots = append(roots, certs...)
	}
	trusted := store.NewMemoryStoreX509(roots...)

	for _, path := range opts.crls {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", path, err)
		}
		crls, err := codec.DecodeCRLs(data)
		if err != nil {
			return nil, fmt.Errorf("error decoding %s: %w", path, err)
		}
		for _, crl := range crls {
			if err := trusted.AddCRL(crl); err != nil {
				return nil, err
			}
		}
	}
	return trusted, nil
}

func loadOCSPResponses(paths []string) ([]*revocation.OCSPResponse, error) {
	var responses []*revocation.OCSPResponse
	for _, path := range paths {
		der, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", path, err)
		}
		responses = append(responses, revocation.ParseOCSPResponse(der))
	}
	return responses, nil
}

// openCache opens the bbolt cache when a database path is configured and
// falls back to an in-memory LRU cache otherwise. Stale CRLs are pruned from
// the database on open; the LRU cache is cleaned in the background until the
// returned close function runs.
func openCache(ctx context.Context, opts *options, config *validate.Config, log logger.Logger) (store.CRLCache, func(), error) {
	path := config.Cache.Path
	if opts.cacheDB != "" {
		path = opts.cacheDB
	}
	if path != "" {
		db, err := store.OpenBoltCache(path, boltOpenTimeout, nil)
		if err != nil {
			return nil, nil, err
		}
		removed, err := db.Prune()
		if err != nil {
			log.Printf("CRL cache %s: %v", path, err)
		} else if removed > 0 {
			log.Printf("CRL cache %s: pruned %d stale CRL(s)", path, removed)
		}
		return db, func() { _ = db.Close() }, nil
	}

	lru := store.NewLRUCache(store.LRUConfig{
		MaxSize:  config.Cache.MaxSize,
		FreshFor: time.Duration(config.Cache.FreshFor) * time.Second,
	}, nil)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		lru.Run(ctx)
	}()
	return lru, func() {
		cancel()
		<-done
		log.Println(lru.Stats())
	}, nil
}

func progressLogger(cmd *cobra.Command, opts *options, log logger.Logger) logger.Logger {
	switch {
	case opts.logJSON:
		return logger.NewJSONLogger(cmd.ErrOrStderr(), false).With("validator")
	case opts.verbose && log != nil:
		return log
	}
	return logger.Nop()
}

func render(w io.Writer, format string, res *validate.Result) error {
	switch format {
	case "table":
		if len(res.Path()) > 0 {
			fmt.Fprint(w, res.Path().RenderTable(res.Status()))
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Result: %s (%s)\n", res.ResultString(), res.Code().Name())
		if warnings := res.WarningsString(); warnings != "" {
			fmt.Fprintf(w, "Warnings: %s\n", warnings)
		}
	case "tree":
		if len(res.Path()) > 0 {
			fmt.Fprint(w, res.Path().RenderASCIITree(res.Status()))
		}
		fmt.Fprintf(w, "Result: %s (%s)\n", res.ResultString(), res.Code().Name())
	case "json":
		data, err := json.MarshalIndent(res.Report(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	case "yaml":
		data, err := yaml.Marshal(res.Report())
		if err != nil {
			return err
		}
		fmt.Fprint(w, string(data))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return nil
}
